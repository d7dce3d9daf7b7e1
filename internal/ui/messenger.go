package ui

import (
	"fmt"
	"io"
	"sync"
)

// Messenger shows short transient messages to the user.
type Messenger interface {
	Show(text string)
}

// WriterMessenger prints each message on its own line.
type WriterMessenger struct {
	mu     sync.Mutex
	w      io.Writer
	prefix string
}

// NewWriterMessenger writes messages to w, each preceded by prefix.
func NewWriterMessenger(w io.Writer, prefix string) *WriterMessenger {
	return &WriterMessenger{w: w, prefix: prefix}
}

func (m *WriterMessenger) Show(text string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	fmt.Fprintf(m.w, "%s%s\n", m.prefix, text)
}

// Recorder keeps messages in memory.
type Recorder struct {
	mu       sync.Mutex
	messages []string
}

func (r *Recorder) Show(text string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.messages = append(r.messages, text)
}

// Messages returns a copy of everything shown so far.
func (r *Recorder) Messages() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.messages...)
}

// Last returns the most recent message, or "".
func (r *Recorder) Last() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.messages) == 0 {
		return ""
	}
	return r.messages[len(r.messages)-1]
}
