package console

import (
	"bufio"
	"fmt"
	"io"
	"strings"

	"golang.org/x/term"
)

// PasswordReader reads a secret without echoing it where possible.
type PasswordReader interface {
	ReadPassword(prompt string) (string, error)
}

// TerminalPasswords reads from a terminal file descriptor with echo off.
type TerminalPasswords struct {
	fd  int
	out io.Writer
}

// NewTerminalPasswords reads secrets from fd, writing prompts to out.
func NewTerminalPasswords(fd int, out io.Writer) *TerminalPasswords {
	return &TerminalPasswords{fd: fd, out: out}
}

// IsTerminal reports whether fd is an interactive terminal.
func IsTerminal(fd int) bool {
	return term.IsTerminal(fd)
}

func (t *TerminalPasswords) ReadPassword(prompt string) (string, error) {
	fmt.Fprint(t.out, prompt)
	secret, err := term.ReadPassword(t.fd)
	fmt.Fprintln(t.out)
	if err != nil {
		return "", err
	}
	return string(secret), nil
}

type linePasswords struct {
	in  *bufio.Reader
	out io.Writer
}

func (l *linePasswords) ReadPassword(prompt string) (string, error) {
	fmt.Fprint(l.out, prompt)
	return readLine(l.in)
}

func readLine(in *bufio.Reader) (string, error) {
	line, err := in.ReadString('\n')
	if err != nil && (err != io.EOF || line == "") {
		return "", err
	}
	return strings.TrimRight(line, "\r\n"), nil
}
