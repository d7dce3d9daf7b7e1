package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/exec"
	"os/signal"
	"runtime"
	"syscall"

	"github.com/gwlsn/signin/internal/auth"
	"github.com/gwlsn/signin/internal/auth/identitytoolkit"
	"github.com/gwlsn/signin/internal/auth/local"
	"github.com/gwlsn/signin/internal/auth/oidc"
	"github.com/gwlsn/signin/internal/config"
	"github.com/gwlsn/signin/internal/console"
	"github.com/gwlsn/signin/internal/flow"
	"github.com/gwlsn/signin/internal/logger"
	"github.com/gwlsn/signin/internal/nav"
	"github.com/gwlsn/signin/internal/screen"
	"github.com/gwlsn/signin/internal/ui"
)

func main() {
	configPath := flag.String("config", "signin.yaml", "path to the config file")
	logLevel := flag.String("log-level", "", "override log level (debug, info, warn, error)")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}
	if *logLevel != "" {
		cfg.LogLevel = *logLevel
	}
	logger.Init(cfg.LogLevel)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg); err != nil {
		logger.Error("signin exited", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Config) error {
	backend, err := newBackend(cfg.Backend)
	if err != nil {
		return err
	}
	logger.Info("Auth backend ready", "backend", backend.Name())

	registry := auth.NewRegistry()
	if cfg.Federated.Enabled {
		provider, err := oidc.NewProvider(ctx, oidc.Options{
			Name:           cfg.Federated.Name,
			ProviderID:     cfg.Federated.ProviderID,
			Issuer:         cfg.Federated.Issuer,
			ClientID:       cfg.Federated.ClientID,
			ClientSecret:   cfg.Federated.ClientSecret,
			RedirectURL:    cfg.Federated.RedirectURL,
			Scopes:         cfg.Federated.Scopes,
			ConsentTimeout: cfg.Federated.ConsentTimeout,
			Opener:         openBrowser,
		})
		if err != nil {
			// Keep the entry so the menu explains why it does not work.
			logger.Warn("Federated sign-in unavailable", "provider", cfg.Federated.Name, "error", err)
			registry.Register(auth.NewNoopProvider(cfg.Federated.Name))
		} else {
			registry.Register(provider)
		}
	}

	loop := ui.NewLoop()
	loopCtx, stopLoop := context.WithCancel(ctx)
	defer stopLoop()
	go loop.Run(loopCtx)

	navigator := nav.New(nav.Login)
	deps := screen.Deps{
		Requestor: flow.NewRequestor(backend, registry),
		Navigator: navigator,
		Loop:      loop,
		Messenger: ui.NewWriterMessenger(os.Stdout, "* "),
	}

	opts := console.Options{
		In:        os.Stdin,
		Out:       os.Stdout,
		Navigator: navigator,
		Loop:      loop,
		Login:     screen.NewLogin(deps),
		Home:      screen.NewHome(deps),
		Signup:    screen.NewSignup(deps),
	}
	if fd := int(os.Stdin.Fd()); console.IsTerminal(fd) {
		opts.Passwords = console.NewTerminalPasswords(fd, os.Stdout)
	}

	err = console.New(opts).Run(ctx)
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

func newBackend(cfg config.BackendConfig) (auth.Backend, error) {
	switch cfg.Mode {
	case config.BackendLocal:
		return local.NewBackend(cfg.Users, cfg.HashAlgo, cfg.SessionSecret, cfg.SessionTTL)
	case config.BackendIdentityToolkit:
		client, err := identitytoolkit.NewClient(cfg.URL, cfg.APIKey, cfg.Timeout,
			identitytoolkit.WithRequestURI(cfg.RequestURI))
		if err != nil {
			return nil, err
		}
		return client, nil
	default:
		return nil, fmt.Errorf("unknown backend mode %q", cfg.Mode)
	}
}

// openBrowser prints the consent URL and tries to open it.
func openBrowser(authURL string) error {
	fmt.Printf("\nOpen this link to continue sign-in:\n%s\n", authURL)

	var cmd *exec.Cmd
	switch runtime.GOOS {
	case "darwin":
		cmd = exec.Command("open", authURL)
	case "windows":
		cmd = exec.Command("rundll32", "url.dll,FileProtocolHandler", authURL)
	default:
		cmd = exec.Command("xdg-open", authURL)
	}
	if err := cmd.Start(); err != nil {
		logger.Debug("Could not launch a browser", "error", err)
		return nil
	}
	go cmd.Wait()
	return nil
}
