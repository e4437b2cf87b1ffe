package telegram

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"

	"go.uber.org/zap"

	"github.com/gotd/contrib/middleware/floodwait"
	"github.com/gotd/td/session"
	"github.com/gotd/td/telegram"
	tdauth "github.com/gotd/td/telegram/auth"

	"github.com/scipunch/technews/config"
)

const sessionFile = "telegram-session.json"

// ErrNotLoggedIn is returned by non-interactive runs when the stored session is missing or expired
var ErrNotLoggedIn = errors.New("telegram session is not authorized, run with -telegram-login")

// ClientRunner is a function that runs with an authenticated client
type ClientRunner func(ctx context.Context, client *telegram.Client) error

// Session describes where the telegram session lives and who owns it
type Session struct {
	Dir         string
	Credentials config.TelegramCredentials
	Logger      *zap.Logger
	// Interactive allows prompting for the login code and 2FA password
	Interactive bool
}

// Run creates a Telegram client, ensures it is authorized and runs the provided function
func Run(ctx context.Context, s Session, runner ClientRunner) error {
	logger := s.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	sessionStorage := &session.FileStorage{
		Path: filepath.Join(s.Dir, sessionFile),
	}

	waiter := floodwait.NewWaiter().WithCallback(func(ctx context.Context, wait floodwait.FloodWait) {
		slog.Warn("telegram rate limit", "retry_after", wait.Duration)
	})

	client := telegram.NewClient(s.Credentials.AppID, s.Credentials.AppHash, telegram.Options{
		SessionStorage: sessionStorage,
		Logger:         logger,
		Middlewares:    []telegram.Middleware{waiter},
	})

	return waiter.Run(ctx, func(ctx context.Context) error {
		return client.Run(ctx, func(ctx context.Context) error {
			if err := authorize(ctx, client, s); err != nil {
				return err
			}
			return runner(ctx, client)
		})
	})
}

func authorize(ctx context.Context, client *telegram.Client, s Session) error {
	if s.Interactive {
		flow := tdauth.NewFlow(
			&TerminalAuthenticator{PhoneNumber: s.Credentials.PhoneNumber},
			tdauth.SendCodeOptions{},
		)
		if err := client.Auth().IfNecessary(ctx, flow); err != nil {
			return fmt.Errorf("authentication failed: %w", err)
		}
	} else {
		status, err := client.Auth().Status(ctx)
		if err != nil {
			return fmt.Errorf("failed to check authorization status: %w", err)
		}
		if !status.Authorized {
			return ErrNotLoggedIn
		}
	}

	self, err := client.Self(ctx)
	if err != nil {
		return fmt.Errorf("failed to get self info: %w", err)
	}
	name := self.FirstName
	if self.Username != "" {
		name = fmt.Sprintf("%s (@%s)", name, self.Username)
	}
	slog.Debug("telegram authenticated", "as", name)
	return nil
}

// Login runs the interactive login flow and stores the session for later non-interactive runs
func Login(ctx context.Context, s Session) error {
	s.Interactive = true
	return Run(ctx, s, func(ctx context.Context, client *telegram.Client) error {
		slog.Info("telegram session stored", "at", filepath.Join(s.Dir, sessionFile))
		return nil
	})
}
