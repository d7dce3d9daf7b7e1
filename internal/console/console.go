// Package console renders the current screen as a numbered menu and feeds
// the user's choices to the screen handlers.
package console

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/gwlsn/signin/internal/auth"
	"github.com/gwlsn/signin/internal/nav"
	"github.com/gwlsn/signin/internal/screen"
	"github.com/gwlsn/signin/internal/ui"
)

const defaultTick = time.Second

// Options wires a Console.
type Options struct {
	In        io.Reader
	Out       io.Writer
	// Passwords defaults to reading a plain line from In.
	Passwords PasswordReader
	Navigator *nav.Navigator
	Loop      *ui.Loop
	Login     *screen.Login
	Home      *screen.Home
	Signup    *screen.Signup
	// Tick is the interval between progress dots while a request runs.
	Tick time.Duration
}

// Console is the interactive terminal front end.
type Console struct {
	in        *bufio.Reader
	out       io.Writer
	passwords PasswordReader
	nav       *nav.Navigator
	loop      *ui.Loop
	login     *screen.Login
	home      *screen.Home
	signup    *screen.Signup
	tick      time.Duration
}

func New(opts Options) *Console {
	in := bufio.NewReader(opts.In)
	passwords := opts.Passwords
	if passwords == nil {
		passwords = &linePasswords{in: in, out: opts.Out}
	}
	tick := opts.Tick
	if tick <= 0 {
		tick = defaultTick
	}
	return &Console{
		in:        in,
		out:       opts.Out,
		passwords: passwords,
		nav:       opts.Navigator,
		loop:      opts.Loop,
		login:     opts.Login,
		home:      opts.Home,
		signup:    opts.Signup,
		tick:      tick,
	}
}

type menuItem struct {
	label  string
	action func(ctx context.Context) error
}

var errQuit = errors.New("quit")

// Run shows menus until the user quits, input ends, or ctx is done.
func (c *Console) Run(ctx context.Context) error {
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		items := c.menu()
		fmt.Fprintln(c.out)
		c.header()
		for i, item := range items {
			fmt.Fprintf(c.out, "  %d) %s\n", i+1, item.label)
		}
		fmt.Fprintln(c.out, "  q) Quit")

		choice, err := c.prompt("> ")
		if err != nil {
			if errors.Is(err, io.EOF) {
				return nil
			}
			return err
		}
		choice = strings.TrimSpace(choice)
		if choice == "q" || choice == "quit" {
			return nil
		}
		n, err := strconv.Atoi(choice)
		if err != nil || n < 1 || n > len(items) {
			fmt.Fprintf(c.out, "Unknown option %q\n", choice)
			continue
		}
		if err := items[n-1].action(ctx); err != nil {
			if errors.Is(err, errQuit) || errors.Is(err, io.EOF) {
				return nil
			}
			return err
		}
	}
}

func (c *Console) header() {
	switch c.nav.Current() {
	case nav.Login:
		if c.login.ResetOpen() {
			fmt.Fprintln(c.out, "== Forgot Password ==")
			return
		}
		fmt.Fprintln(c.out, "== Login ==")
	case nav.Home:
		fmt.Fprintln(c.out, "== Home ==")
		if s, ok := c.home.Session(); ok {
			who := s.Email
			if who == "" {
				who = s.UserID
			}
			fmt.Fprintf(c.out, "Signed in as %s (%s)\n", who, s.Provider)
		}
	case nav.Signup:
		fmt.Fprintln(c.out, "== Sign Up ==")
	}
}

func (c *Console) menu() []menuItem {
	switch c.nav.Current() {
	case nav.Login:
		if c.login.ResetOpen() {
			return []menuItem{
				{"Send reset link", c.submitReset},
				{"Cancel", func(context.Context) error { c.login.CancelReset(); return nil }},
			}
		}
		items := []menuItem{{"Sign in with email", c.signIn}}
		for _, name := range c.login.Providers() {
			items = append(items, menuItem{"Sign in with " + name, func(ctx context.Context) error {
				return c.await(ctx, c.login.SignInWith(ctx, name))
			}})
		}
		return append(items,
			menuItem{"Forgot password", func(context.Context) error { c.login.OpenReset(); return nil }},
			menuItem{"Sign up", func(context.Context) error { c.login.GoToSignup(); return nil }},
		)
	case nav.Home:
		items := []menuItem{{"Logout", func(ctx context.Context) error {
			return c.await(ctx, c.home.Logout(ctx))
		}}}
		for _, name := range c.login.Providers() {
			items = append(items, menuItem{"Logout from " + name, func(ctx context.Context) error {
				return c.await(ctx, c.home.LogoutFederated(ctx, name))
			}})
		}
		return items
	case nav.Signup:
		return []menuItem{{"Back to login", func(context.Context) error { c.signup.Back(); return nil }}}
	default:
		return nil
	}
}

func (c *Console) signIn(ctx context.Context) error {
	email, err := c.prompt("Email: ")
	if err != nil {
		return err
	}
	password, err := c.passwords.ReadPassword("Password: ")
	if err != nil {
		return err
	}
	c.login.SetIdentifier(email)
	c.login.SetSecret(password)
	pending := c.login.Submit(ctx)
	c.login.SetSecret("")
	return c.await(ctx, pending)
}

func (c *Console) submitReset(ctx context.Context) error {
	email, err := c.prompt("Registered email: ")
	if err != nil {
		return err
	}
	c.login.SetResetIdentifier(email)
	return c.await(ctx, c.login.SubmitReset(ctx))
}

// await prints progress dots until pending resolves, then lets its
// completion handler run before the next menu is drawn.
func (c *Console) await(ctx context.Context, pending *auth.Pending) error {
	ticker := time.NewTicker(c.tick)
	defer ticker.Stop()

	dots := false
	for waiting := true; waiting; {
		select {
		case <-pending.Done():
			waiting = false
		case <-ticker.C:
			fmt.Fprint(c.out, ".")
			dots = true
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	if dots {
		fmt.Fprintln(c.out)
	}
	return c.loop.Sync(ctx)
}

func (c *Console) prompt(label string) (string, error) {
	fmt.Fprint(c.out, label)
	return readLine(c.in)
}
