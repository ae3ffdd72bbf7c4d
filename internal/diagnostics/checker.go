package diagnostics

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"render-sender/internal/config"
	"render-sender/internal/domain"
)

// Check IDs exposed to the UI.
const (
	IDFFmpeg      = "tool_ffmpeg"
	IDBotToken    = "bot_token"
	IDPrimaryChat = "primary_chat"
	IDTempDir     = "temp_dir"
)

// TokenVerifier asks the bot API whether token is valid.
type TokenVerifier func(ctx context.Context, token string) error

// Checker validates external tools, bot credentials and the scratch directory.
type Checker struct {
	lookPath   func(string) (string, error)
	mkdirAll   func(string, os.FileMode) error
	createTemp func(string, string) (*os.File, error)
	remove     func(string) error
	tempDir    func() string
	verify     TokenVerifier
}

// NewChecker builds a checker using real OS dependencies. verify may be nil,
// in which case the token is only checked for presence.
func NewChecker(verify TokenVerifier) *Checker {
	return &Checker{
		lookPath:   exec.LookPath,
		mkdirAll:   os.MkdirAll,
		createTemp: os.CreateTemp,
		remove:     os.Remove,
		tempDir:    os.TempDir,
		verify:     verify,
	}
}

// Run executes all checks concurrently and returns a report in stable order.
func (c *Checker) Run(ctx context.Context, settings domain.Settings) domain.DiagnosticReport {
	checks := []func(context.Context) domain.DiagnosticItem{
		func(context.Context) domain.DiagnosticItem { return c.checkFFmpeg(settings.FFmpegPath) },
		func(ctx context.Context) domain.DiagnosticItem { return c.checkBotToken(ctx, settings.BotToken) },
		func(context.Context) domain.DiagnosticItem { return c.checkPrimaryChat(settings) },
		func(context.Context) domain.DiagnosticItem { return c.checkTempDir() },
	}

	items := make([]domain.DiagnosticItem, len(checks))
	g, gctx := errgroup.WithContext(ctx)
	for i, check := range checks {
		g.Go(func() error {
			items[i] = check(gctx)
			return nil
		})
	}
	_ = g.Wait()

	hasFailures := false
	for _, item := range items {
		if item.Status == domain.DiagnosticStatusFail {
			hasFailures = true
			break
		}
	}

	return domain.DiagnosticReport{
		GeneratedAt: time.Now().UTC(),
		HasFailures: hasFailures,
		Items:       items,
	}
}

// checkFFmpeg verifies the configured ffmpeg binary resolves.
func (c *Checker) checkFFmpeg(ffmpegPath string) domain.DiagnosticItem {
	name := strings.TrimSpace(ffmpegPath)
	if name == "" {
		name = "ffmpeg"
	}

	path, err := c.lookPath(name)
	if err != nil {
		return domain.DiagnosticItem{
			ID:      IDFFmpeg,
			Name:    "ffmpeg",
			Status:  domain.DiagnosticStatusFail,
			Message: fmt.Sprintf("Tool not found: %s", name),
			Hint:    "Install ffmpeg or set ffmpeg_path. Large videos cannot be re-encoded without it.",
			Fixable: true,
		}
	}

	return domain.DiagnosticItem{
		ID:      IDFFmpeg,
		Name:    "ffmpeg",
		Status:  domain.DiagnosticStatusPass,
		Message: fmt.Sprintf("Found at %s", path),
	}
}

func (c *Checker) checkBotToken(ctx context.Context, token string) domain.DiagnosticItem {
	item := domain.DiagnosticItem{
		ID:   IDBotToken,
		Name: "Bot token",
	}

	token = strings.TrimSpace(token)
	if token == "" {
		item.Status = domain.DiagnosticStatusFail
		item.Message = "Bot token is empty."
		item.Hint = "Set bot_token in settings or export TELEGRAM_BOT_TOKEN."
		return item
	}

	if c.verify != nil {
		if err := c.verify(ctx, token); err != nil {
			item.Status = domain.DiagnosticStatusFail
			item.Message = fmt.Sprintf("Bot token rejected: %v", err)
			item.Hint = "Check the token issued by BotFather."
			return item
		}
	}

	item.Status = domain.DiagnosticStatusPass
	item.Message = fmt.Sprintf("Token configured (%s)", config.MaskToken(token))
	return item
}

func (c *Checker) checkPrimaryChat(settings domain.Settings) domain.DiagnosticItem {
	item := domain.DiagnosticItem{
		ID:   IDPrimaryChat,
		Name: "Destination chat",
	}

	if settings.TestMode {
		if strings.TrimSpace(settings.TestChatID) == "" {
			item.Status = domain.DiagnosticStatusFail
			item.Message = "Test mode is on but test chat is empty."
			item.Hint = "Set test_chat_id or turn off test_mode."
			return item
		}
		item.Status = domain.DiagnosticStatusPass
		item.Message = fmt.Sprintf("Test mode: sending to %s", settings.TestChatID)
		return item
	}

	if strings.TrimSpace(settings.PrimaryChatID) == "" {
		item.Status = domain.DiagnosticStatusFail
		item.Message = "Primary chat is empty."
		item.Hint = "Set primary_chat_id to the chat or channel that receives renders."
		return item
	}

	item.Status = domain.DiagnosticStatusPass
	item.Message = fmt.Sprintf("Primary chat %s", settings.PrimaryChatID)
	if settings.MirrorChatID != "" && settings.MirrorProject != "" {
		item.Message += fmt.Sprintf(", %s mirrored to %s", settings.MirrorProject, settings.MirrorChatID)
	}
	return item
}

// checkTempDir validates that transcode workspaces can be created.
func (c *Checker) checkTempDir() domain.DiagnosticItem {
	item := domain.DiagnosticItem{
		ID:   IDTempDir,
		Name: "Temp directory",
	}

	dir := c.tempDir()
	if err := c.mkdirAll(dir, 0o755); err != nil {
		item.Status = domain.DiagnosticStatusFail
		item.Message = fmt.Sprintf("Cannot create temp directory: %s", dir)
		item.Hint = "Set TMPDIR to a writable location."
		item.Fixable = true
		return item
	}

	tmpFile, err := c.createTemp(dir, ".write-check-*")
	if err != nil {
		item.Status = domain.DiagnosticStatusFail
		item.Message = fmt.Sprintf("Temp directory is not writable: %s", dir)
		item.Hint = "Set TMPDIR to a writable location."
		item.Fixable = true
		return item
	}

	tmpPath := tmpFile.Name()
	_ = tmpFile.Close()
	_ = c.remove(tmpPath)

	item.Status = domain.DiagnosticStatusPass
	item.Message = fmt.Sprintf("Writable directory: %s", dir)
	return item
}

// NewCheckerForTests creates checker with injectable dependencies.
func NewCheckerForTests(
	lookPath func(string) (string, error),
	mkdirAll func(string, os.FileMode) error,
	createTemp func(string, string) (*os.File, error),
	remove func(string) error,
	tempDir func() string,
	verify TokenVerifier,
) *Checker {
	return &Checker{
		lookPath:   lookPath,
		mkdirAll:   mkdirAll,
		createTemp: createTemp,
		remove:     remove,
		tempDir:    tempDir,
		verify:     verify,
	}
}
