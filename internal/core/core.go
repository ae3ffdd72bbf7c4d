// Package core assembles the send pipeline from settings. The desktop app
// and the CLI share it so both execute jobs the same way.
package core

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"render-sender/internal/diagnostics"
	"render-sender/internal/domain"
	"render-sender/internal/history"
	"render-sender/internal/jobs"
	"render-sender/internal/sender"
	"render-sender/internal/telegram"
	"render-sender/internal/transcode"
)

const (
	maxEvents         = 1000
	tokenCheckTimeout = 15 * time.Second
)

// Core owns the long-lived pieces behind one process.
type Core struct {
	Service *sender.Service
	History *history.Store

	logger  *slog.Logger
	mu      sync.Mutex
	checker *diagnostics.Checker
}

// New builds the pipeline. A history database that cannot be opened is
// logged and skipped; sending still works without it.
func New(settings domain.Settings, logger *slog.Logger) *Core {
	if logger == nil {
		logger = slog.Default()
	}

	var recorder sender.HistoryRecorder
	store, err := history.Open(settings.HistoryPath)
	if err != nil {
		logger.Warn("send history disabled", "path", settings.HistoryPath, "error", err)
	} else {
		recorder = store
	}

	runner := sender.NewRunner(transcode.New(settings.FFmpegPath), "", logger)
	service := sender.NewService(sender.Deps{
		Runner:   runner,
		Uploader: NewUploader(settings),
		Settings: settings,
		Tracker:  jobs.NewTracker(),
		Events:   jobs.NewEventBus(maxEvents),
		History:  recorder,
		Logger:   logger,
	})

	return &Core{
		Service: service,
		History: store,
		logger:  logger,
		checker: diagnostics.NewChecker(VerifyToken(settings.BotAPIURL)),
	}
}

// Start launches the send worker.
func (c *Core) Start(ctx context.Context) {
	c.Service.Start(ctx)
}

// Reconfigure applies new settings to jobs submitted afterwards.
func (c *Core) Reconfigure(settings domain.Settings) {
	c.Service.Configure(settings, NewUploader(settings))

	c.mu.Lock()
	c.checker = diagnostics.NewChecker(VerifyToken(settings.BotAPIURL))
	c.mu.Unlock()
}

// Diagnose runs the startup checks against settings.
func (c *Core) Diagnose(ctx context.Context, settings domain.Settings) domain.DiagnosticReport {
	c.mu.Lock()
	checker := c.checker
	c.mu.Unlock()
	return checker.Run(ctx, settings)
}

// RecentHistory lists the newest recorded sends.
func (c *Core) RecentHistory(ctx context.Context, limit int) ([]history.Entry, error) {
	if c.History == nil {
		return nil, errors.New("send history is not available")
	}
	return c.History.Recent(ctx, limit)
}

// Close releases the history database.
func (c *Core) Close() error {
	if c.History == nil {
		return nil
	}
	return c.History.Close()
}

// NewUploader returns the Bot API client for settings. Without a usable
// token it returns an uploader that fails every send with the reason.
func NewUploader(settings domain.Settings) sender.Uploader {
	client, err := telegram.New(settings.BotToken,
		telegram.WithBaseURL(settings.BotAPIURL),
		telegram.WithTimeout(settings.UploadTimeout()),
	)
	if err != nil {
		return unavailableUploader{err: err}
	}
	return client
}

// VerifyToken returns a diagnostics hook that calls getMe.
func VerifyToken(baseURL string) diagnostics.TokenVerifier {
	return func(ctx context.Context, token string) error {
		client, err := telegram.New(token,
			telegram.WithBaseURL(baseURL),
			telegram.WithTimeout(tokenCheckTimeout),
		)
		if err != nil {
			return err
		}
		user, err := client.GetMe(ctx)
		if err != nil {
			return err
		}
		if !user.IsBot {
			return fmt.Errorf("token belongs to %q, which is not a bot", strings.TrimSpace(user.Username))
		}
		return nil
	}
}

type unavailableUploader struct {
	err error
}

func (u unavailableUploader) SendGroup(context.Context, string, []sender.MediaItem) error {
	return fmt.Errorf("uploader unavailable: %w", u.err)
}
