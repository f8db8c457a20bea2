package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"sort"
	"syscall"

	"github.com/instantmart/admin-console/config"
	"github.com/instantmart/admin-console/internal/bootstrap"
	"github.com/instantmart/admin-console/internal/domain/notification"
	"github.com/instantmart/admin-console/internal/ports"
)

type commandFn func(ctx *commandContext, args []string) error

type command struct {
	name        string
	description string
	run         commandFn
}

type commandContext struct {
	Ctx    context.Context
	Logger *slog.Logger
	Config config.AppConfig
	In     io.Reader
	Out    io.Writer
	Err    io.Writer
	// Storage overrides the configured session storage; tests use it.
	Storage ports.TokenStorage
}

// errUsage marks bad invocations; main exits 2 for them.
var errUsage = errors.New("usage")

func usagef(format string, args ...any) error {
	return fmt.Errorf("%w: "+format, append([]any{errUsage}, args...)...)
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := bootstrap.LoadConfig()
	if err != nil {
		slog.ErrorContext(ctx, "load config", "error", err)
		os.Exit(1) //nolint:forbidigo // CLI must signal configuration load failure to shell scripts
	}
	// Logs go to stderr so command output stays clean.
	logger := bootstrap.InitLoggerTo(os.Stderr, cfg.LogLevel)

	cmdCtx := &commandContext{
		Ctx:    ctx,
		Logger: logger,
		Config: cfg,
		In:     os.Stdin,
		Out:    os.Stdout,
		Err:    os.Stderr,
	}
	if runErr := run(cmdCtx, os.Args[1:]); runErr != nil {
		if runErr != errUsage { //nolint:errorlint // a bare errUsage has already printed usage
			_ = writef(cmdCtx.Err, "error: %v\n", runErr)
		}
		if errors.Is(runErr, errUsage) {
			os.Exit(2) //nolint:forbidigo // CLI must exit with failure status on bad usage
		}
		os.Exit(1) //nolint:forbidigo // CLI must propagate command execution failure to callers
	}
}

func run(cmdCtx *commandContext, args []string) error {
	if len(args) == 0 {
		if err := printUsage(cmdCtx.Err); err != nil {
			return err
		}
		return errUsage
	}
	cmd, ok := commands()[args[0]]
	if !ok {
		if err := writef(cmdCtx.Err, "unknown command %q\n\n", args[0]); err != nil {
			return err
		}
		if err := printUsage(cmdCtx.Err); err != nil {
			return err
		}
		return errUsage
	}
	if err := cmd.run(cmdCtx, args[1:]); err != nil {
		return fmt.Errorf("%s: %w", cmd.name, err)
	}
	return nil
}

func commands() map[string]command {
	return map[string]command{
		"login": {
			name:        "login",
			description: "Sign in as an operator and store the session",
			run:         runLogin,
		},
		"logout": {
			name:        "logout",
			description: "Forget the stored session",
			run:         runLogout,
		},
		"whoami": {
			name:        "whoami",
			description: "Show the signed-in operator and their permissions",
			run:         runWhoAmI,
		},
		"request": {
			name:        "request",
			description: "Send an authenticated request to the backend API",
			run:         runRequest,
		},
		"notifications": {
			name:        "notifications",
			description: "List notifications for the signed-in operator",
			run:         runNotifications,
		},
		"unread": {
			name:        "unread",
			description: "Print the unread notification count",
			run:         runUnread,
		},
		"mark-read": {
			name:        "mark-read",
			description: "Mark notifications as read by id",
			run:         runMarkRead,
		},
		"delete-notification": {
			name:        "delete-notification",
			description: "Delete a notification by id",
			run:         runDeleteNotification,
		},
		"watch": {
			name:        "watch",
			description: "Stream live notifications until interrupted",
			run:         runWatch,
		},
	}
}

func printUsage(w io.Writer) error {
	if err := writef(w, "Usage: instantmart-admin <command> [flags]\n\n"); err != nil {
		return err
	}
	if err := writef(w, "Available commands:\n"); err != nil {
		return err
	}
	cmds := commands()
	names := make([]string, 0, len(cmds))
	for name := range cmds {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		if err := writef(w, "  %-22s %s\n", name, cmds[name].description); err != nil {
			return err
		}
	}
	return nil
}

// openConsole assembles the services for one command. onAlert may be nil.
func (c *commandContext) openConsole(onAlert func(notification.Notification)) (*bootstrap.Console, error) {
	if c.Storage == nil && c.Config.Storage.Backend == config.StorageMemory {
		c.Logger.Warn("STORAGE_BACKEND=memory does not keep the session between commands")
	}
	return bootstrap.NewConsole(c.Ctx, bootstrap.ConsoleOptions{
		Config:    c.Config,
		Logger:    c.Logger,
		Navigator: &bootstrap.PromptNavigator{Out: c.Err},
		Storage:   c.Storage,
		OnAlert:   onAlert,
	})
}

// withConsole runs fn against an opened console and closes it afterwards.
func (c *commandContext) withConsole(fn func(*bootstrap.Console) error) error {
	console, err := c.openConsole(nil)
	if err != nil {
		return err
	}
	defer func() {
		if closeErr := console.Close(); closeErr != nil {
			c.Logger.Warn("console close failed", "error", closeErr)
		}
	}()
	return fn(console)
}

func writef(w io.Writer, format string, args ...any) error {
	_, err := fmt.Fprintf(w, format, args...)
	return err
}
