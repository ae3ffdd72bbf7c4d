package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"

	"github.com/gofrs/flock"
	"github.com/wailsapp/wails/v2"
	"github.com/wailsapp/wails/v2/pkg/options"
	"github.com/wailsapp/wails/v2/pkg/options/assetserver"

	"render-sender/internal/config"
	"render-sender/internal/core"
	"render-sender/internal/domain"
	"render-sender/internal/fileset"
	"render-sender/internal/jobs"
	"render-sender/internal/logging"
	"render-sender/internal/sender"

	wailsruntime "github.com/wailsapp/wails/v2/pkg/runtime"
)

// ErrAlreadyRunning is returned when another instance holds the app lock.
var ErrAlreadyRunning = errors.New("render-sender is already running")

var mediaDialogFilter = []wailsruntime.FileFilter{
	{
		DisplayName: "Renders",
		Pattern:     "*.mp4;*.mov;*.m4v;*.mkv;*.webm;*.avi;*.jpg;*.jpeg;*.png;*.webp",
	},
	{
		DisplayName: "All files",
		Pattern:     "*",
	},
}

// FileEntry is one row of the attachment list.
type FileEntry struct {
	Path  string `json:"path"`
	Label string `json:"label"`
}

// ProjectState is the project selector content.
type ProjectState struct {
	Projects []string `json:"projects"`
	Current  string   `json:"current"`
}

// App wires configuration, the send pipeline, and UI runtime callbacks.
type App struct {
	Store       config.Store
	Diagnostics domain.DiagnosticReport

	settings domain.Settings
	files    *fileset.Set
	core     *core.Core
	events   *jobs.EventBus
	logger   *slog.Logger
	assets   fs.FS
	lock     *flock.Flock

	mu         sync.Mutex
	runtimeCtx context.Context
}

// New builds the application with persisted settings and startup diagnostics.
func New() (*App, error) {
	return NewWithAssets(nil)
}

// NewWithAssets builds the application and optionally configures embedded frontend assets.
func NewWithAssets(assets fs.FS) (*App, error) {
	lock, err := acquireInstanceLock(config.DefaultDir())
	if err != nil {
		return nil, err
	}

	store := config.NewTOMLStore(config.DefaultPath())
	settings, err := store.Load()
	if err != nil {
		_ = lock.Unlock()
		return nil, fmt.Errorf("load settings: %w", err)
	}

	logger, err := logging.New(settings.LogLevel, os.Stderr)
	if err != nil {
		logger, _ = logging.New("info", os.Stderr)
		logger.Warn("invalid log level, using info", "log_level", settings.LogLevel)
	}

	app := newApp(store, settings, core.New(settings, logger), logger)
	app.assets = assets
	app.lock = lock
	app.Diagnostics = app.core.Diagnose(context.Background(), settings)
	app.core.Start(context.Background())
	return app, nil
}

// newApp assembles an App around an already built core.
func newApp(store config.Store, settings domain.Settings, c *core.Core, logger *slog.Logger) *App {
	app := &App{
		Store:    store,
		settings: settings,
		files:    fileset.New(),
		core:     c,
		events:   c.Service.Events(),
		logger:   logger,
	}
	app.events.Listen(app.emitEvent)
	return app
}

// acquireInstanceLock keeps a second desktop instance from starting.
func acquireInstanceLock(dir string) (*flock.Flock, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create app directory: %w", err)
	}

	lock := flock.New(filepath.Join(dir, "app.lock"))
	ok, err := lock.TryLock()
	if err != nil {
		return nil, fmt.Errorf("acquire app lock: %w", err)
	}
	if !ok {
		return nil, ErrAlreadyRunning
	}
	return lock, nil
}

// Run starts the Wails desktop application and binds backend methods.
func (a *App) Run() error {
	assetOptions := &assetserver.Options{}
	if a.assets != nil {
		assetOptions.Assets = a.assets
	} else {
		assetOptions.Handler = http.FileServer(http.Dir("./frontend"))
	}

	return wails.Run(&options.App{
		Title:       "Render Sender",
		Width:       520,
		Height:      640,
		AssetServer: assetOptions,
		OnStartup:   a.Startup,
		OnShutdown:  a.Shutdown,
		Bind:        []interface{}{a},
	})
}

// Startup stores Wails runtime context for push events.
func (a *App) Startup(ctx context.Context) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.runtimeCtx = ctx
}

// Shutdown drops the runtime context and releases process resources.
func (a *App) Shutdown(context.Context) {
	a.mu.Lock()
	a.runtimeCtx = nil
	a.mu.Unlock()

	if err := a.core.Close(); err != nil {
		a.logger.Warn("close history", "error", err)
	}
	if a.lock != nil {
		_ = a.lock.Unlock()
	}
}

// PickFiles opens a native multi-file dialog and adds the selection.
func (a *App) PickFiles() ([]FileEntry, error) {
	ctx, err := a.runtimeContext()
	if err != nil {
		return nil, err
	}

	a.mu.Lock()
	lastFolder := a.settings.LastFolder
	a.mu.Unlock()

	paths, err := wailsruntime.OpenMultipleFilesDialog(ctx, wailsruntime.OpenDialogOptions{
		Title:            "Select renders",
		DefaultDirectory: lastFolder,
		Filters:          mediaDialogFilter,
	})
	if err != nil {
		return nil, err
	}
	if len(paths) > 0 {
		a.rememberFolder(filepath.Dir(paths[0]))
	}
	return a.AddFiles(paths), nil
}

// AddFiles adds dropped or picked paths, ignoring duplicates.
func (a *App) AddFiles(paths []string) []FileEntry {
	cleaned := make([]string, 0, len(paths))
	for _, p := range paths {
		cleaned = append(cleaned, strings.TrimSpace(p))
	}
	a.files.AddAll(cleaned...)
	return a.Files()
}

// RemoveFile drops the row at index.
func (a *App) RemoveFile(index int) []FileEntry {
	a.files.RemoveAt(index)
	return a.Files()
}

// ClearFiles empties the attachment list.
func (a *App) ClearFiles() {
	a.files.Clear()
}

// Files lists the attachments with their display labels.
func (a *App) Files() []FileEntry {
	paths := a.files.Snapshot()
	out := make([]FileEntry, len(paths))
	for i, p := range paths {
		out[i] = FileEntry{Path: p, Label: fileset.Label(p)}
	}
	return out
}

// GetProjects returns the configured projects and the selected one.
func (a *App) GetProjects() ProjectState {
	a.mu.Lock()
	defer a.mu.Unlock()
	return ProjectState{
		Projects: append([]string(nil), a.settings.Projects...),
		Current:  a.settings.CurrentProject,
	}
}

// SetProject selects a project and persists the choice.
func (a *App) SetProject(name string) (ProjectState, error) {
	name = strings.TrimSpace(name)

	a.mu.Lock()
	if !slices.Contains(a.settings.Projects, name) {
		a.mu.Unlock()
		return ProjectState{}, fmt.Errorf("unknown project: %q", name)
	}
	a.settings.CurrentProject = name
	settings := a.settings
	a.mu.Unlock()

	if err := a.Store.Save(settings); err != nil {
		return ProjectState{}, fmt.Errorf("save settings: %w", err)
	}
	return a.GetProjects(), nil
}

// Send composes the caption, queues the current attachments and clears the
// list. It returns as soon as the job is queued.
func (a *App) Send(msg sender.Message) (domain.Job, error) {
	if strings.TrimSpace(msg.Project) == "" {
		a.mu.Lock()
		msg.Project = a.settings.CurrentProject
		a.mu.Unlock()
	}

	caption, err := sender.ComposeCaption(msg)
	if err != nil {
		return domain.Job{}, err
	}

	files := a.files.Take()
	id, err := a.core.Service.Submit(sender.Request{
		Files:   files,
		Caption: caption,
		Project: msg.Project,
	})
	if err != nil {
		a.files.Restore(files)
		return domain.Job{}, err
	}

	job, _ := a.core.Service.Tracker().Get(id)
	return job, nil
}

// Jobs lists every job of this session in submission order.
func (a *App) Jobs() []domain.Job {
	return a.core.Service.Tracker().List()
}

// JobEvents returns all events with sequence greater than sinceSeq.
func (a *App) JobEvents(sinceSeq int64) []jobs.Event {
	return a.events.Since(sinceSeq)
}

// JobLog returns the retained events of one job.
func (a *App) JobLog(jobID string) []jobs.Event {
	return a.events.ForJob(jobID)
}

// GetDiagnostics returns the latest cached diagnostics report.
func (a *App) GetDiagnostics() domain.DiagnosticReport {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.Diagnostics
}

// GetSettings loads and returns the latest persisted settings.
func (a *App) GetSettings() (domain.Settings, error) {
	settings, err := a.Store.Load()
	if err != nil {
		return domain.Settings{}, fmt.Errorf("load settings: %w", err)
	}

	a.mu.Lock()
	a.settings = settings
	a.mu.Unlock()

	return settings, nil
}

// SaveSettings normalizes and persists settings, applies them to new jobs,
// then refreshes diagnostics.
func (a *App) SaveSettings(settings domain.Settings) (domain.Settings, error) {
	normalized := normalizeSettings(settings)
	if err := config.Validate(normalized); err != nil {
		return domain.Settings{}, fmt.Errorf("invalid settings: %w", err)
	}
	if err := a.Store.Save(normalized); err != nil {
		return domain.Settings{}, fmt.Errorf("save settings: %w", err)
	}

	a.core.Reconfigure(normalized)
	a.refreshDiagnosticsFromSettings(normalized)
	return normalized, nil
}

// RefreshDiagnostics reloads settings and reruns dependency checks.
func (a *App) RefreshDiagnostics() (domain.DiagnosticReport, error) {
	settings, err := a.Store.Load()
	if err != nil {
		return domain.DiagnosticReport{}, fmt.Errorf("load settings: %w", err)
	}
	return a.refreshDiagnosticsFromSettings(settings), nil
}

func (a *App) refreshDiagnosticsFromSettings(settings domain.Settings) domain.DiagnosticReport {
	report := a.core.Diagnose(context.Background(), settings)

	a.mu.Lock()
	defer a.mu.Unlock()
	a.settings = settings
	a.Diagnostics = report
	return report
}

// emitEvent forwards job events to the UI as runtime push notifications.
func (a *App) emitEvent(event jobs.Event) {
	a.mu.Lock()
	ctx := a.runtimeCtx
	a.mu.Unlock()
	if ctx != nil {
		wailsruntime.EventsEmit(ctx, "job:event", event)
	}
}

// rememberFolder persists the directory the last pick came from.
func (a *App) rememberFolder(dir string) {
	a.mu.Lock()
	if a.settings.LastFolder == dir {
		a.mu.Unlock()
		return
	}
	a.settings.LastFolder = dir
	settings := a.settings
	a.mu.Unlock()

	if err := a.Store.Save(settings); err != nil {
		a.logger.Warn("save last folder", "error", err)
	}
}

// runtimeContext returns current Wails runtime context for dialog APIs.
func (a *App) runtimeContext() (context.Context, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.runtimeCtx == nil {
		return nil, fmt.Errorf("runtime context is not initialized")
	}
	return a.runtimeCtx, nil
}

// normalizeSettings trims user inputs and fills defaults for empty fields.
func normalizeSettings(settings domain.Settings) domain.Settings {
	settings.BotToken = strings.TrimSpace(settings.BotToken)
	settings.BotAPIURL = strings.TrimSpace(settings.BotAPIURL)
	settings.PrimaryChatID = strings.TrimSpace(settings.PrimaryChatID)
	settings.MirrorChatID = strings.TrimSpace(settings.MirrorChatID)
	settings.MirrorProject = strings.TrimSpace(settings.MirrorProject)
	settings.TestChatID = strings.TrimSpace(settings.TestChatID)
	settings.FFmpegPath = strings.TrimSpace(settings.FFmpegPath)
	settings.LogLevel = strings.ToLower(strings.TrimSpace(settings.LogLevel))

	projects := make([]string, 0, len(settings.Projects))
	for _, p := range settings.Projects {
		if p = strings.TrimSpace(p); p != "" && !slices.Contains(projects, p) {
			projects = append(projects, p)
		}
	}
	settings.Projects = projects
	if !slices.Contains(projects, settings.CurrentProject) {
		settings.CurrentProject = ""
	}
	return config.ApplyDefaults(settings)
}
