package nav

import (
	"errors"
	"reflect"
	"testing"
)

func TestNavigate(t *testing.T) {
	tests := []struct {
		name  string
		setup []Route
		dest  Route
		opts  []Option
		want  []Route
	}{
		{"push", nil, Home, nil, []Route{Login, Home}},
		{"pop login inclusive", nil, Home, []Option{PopUpTo(Login, true)}, []Route{Home}},
		{"pop login exclusive", []Route{Signup}, Home, []Option{PopUpTo(Login, false)}, []Route{Login, Home}},
		{"pop missing route", nil, Home, []Option{PopUpTo(Signup, true)}, []Route{Login, Home}},
		{"pop nearest match", []Route{Home, Login}, Home, []Option{PopUpTo(Login, true)}, []Route{Login, Home, Home}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			n := New(Login)
			for _, r := range tt.setup {
				if err := n.Navigate(r); err != nil {
					t.Fatalf("setup: %v", err)
				}
			}
			if err := n.Navigate(tt.dest, tt.opts...); err != nil {
				t.Fatalf("Navigate() error: %v", err)
			}
			if got := n.BackStack(); !reflect.DeepEqual(got, tt.want) {
				t.Errorf("BackStack() = %v, want %v", got, tt.want)
			}
			if n.Current() != tt.dest {
				t.Errorf("Current() = %q, want %q", n.Current(), tt.dest)
			}
		})
	}
}

func TestNavigateUnknownRoute(t *testing.T) {
	n := New(Login)
	if err := n.Navigate("settings"); !errors.Is(err, ErrUnknownRoute) {
		t.Fatalf("error = %v, want ErrUnknownRoute", err)
	}
	if got := n.BackStack(); !reflect.DeepEqual(got, []Route{Login}) {
		t.Errorf("stack changed on failed navigation: %v", got)
	}
}

func TestBack(t *testing.T) {
	n := New(Login)
	if n.Back() {
		t.Error("Back() on a single entry should report false")
	}
	n.Navigate(Home, PopUpTo(Login, true))
	if n.Back() {
		t.Error("login was popped, so home has nothing to go back to")
	}
	n.Navigate(Signup)
	if !n.Back() || n.Current() != Home {
		t.Errorf("after Back() current = %q, want home", n.Current())
	}
}

func TestBackStackIsCopy(t *testing.T) {
	n := New(Login)
	stack := n.BackStack()
	stack[0] = Home
	if n.Current() != Login {
		t.Error("mutating BackStack() result changed the navigator")
	}
}
