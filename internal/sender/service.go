package sender

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"sync"

	"github.com/google/uuid"

	"render-sender/internal/dispatch"
	"render-sender/internal/domain"
	"render-sender/internal/history"
	"render-sender/internal/jobs"
)

// HistoryRecorder persists job outcomes.
type HistoryRecorder interface {
	Record(ctx context.Context, e history.Entry) error
	Finish(ctx context.Context, id string, status domain.JobStatus, errMsg string) error
}

// Deps are the collaborators a Service needs.
type Deps struct {
	Runner   *Runner
	Uploader Uploader
	Settings domain.Settings
	Tracker  *jobs.Tracker
	Events   *jobs.EventBus
	History  HistoryRecorder
	Logger   *slog.Logger
}

// Service accepts send requests and executes them on one background worker.
type Service struct {
	queue   *dispatch.Queue
	runner  *Runner
	tracker *jobs.Tracker
	events  *jobs.EventBus
	history HistoryRecorder
	logger  *slog.Logger

	mu       sync.RWMutex
	settings domain.Settings
	uploader Uploader
}

// NewService wires the dispatch queue to the job runner. Call Start to
// launch the worker.
func NewService(deps Deps) *Service {
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	if deps.Tracker == nil {
		deps.Tracker = jobs.NewTracker()
	}
	if deps.Events == nil {
		deps.Events = jobs.NewEventBus(0)
	}

	s := &Service{
		runner:   deps.Runner,
		tracker:  deps.Tracker,
		events:   deps.Events,
		history:  deps.History,
		logger:   deps.Logger,
		settings: deps.Settings,
		uploader: deps.Uploader,
	}
	s.queue = dispatch.New(
		dispatch.WithLogger(deps.Logger),
		dispatch.WithResultHandler(s.handleResult),
	)
	return s
}

// Start launches the background worker for the lifetime of ctx.
func (s *Service) Start(ctx context.Context) {
	s.queue.Start(ctx)
}

// Wait blocks until every submitted job has finished or ctx ends.
func (s *Service) Wait(ctx context.Context) error {
	return s.queue.Wait(ctx)
}

// Pending returns the number of jobs not yet picked up by the worker.
func (s *Service) Pending() int {
	return s.queue.Pending()
}

// Configure swaps settings and transport for jobs submitted from now on.
// Jobs already queued keep the values they were submitted with.
func (s *Service) Configure(settings domain.Settings, up Uploader) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.settings = settings
	if up != nil {
		s.uploader = up
	}
}

// Settings returns the settings new jobs are built from.
func (s *Service) Settings() domain.Settings {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.settings
}

// Tracker exposes job status for callers that render progress.
func (s *Service) Tracker() *jobs.Tracker {
	return s.tracker
}

// Events exposes the job event buffer.
func (s *Service) Events() *jobs.EventBus {
	return s.events
}

// Submit validates req, snapshots it and enqueues it. Input errors are
// returned synchronously and nothing is queued.
func (s *Service) Submit(req Request) (string, error) {
	if len(req.Files) == 0 {
		return "", ErrNoFiles
	}
	if strings.TrimSpace(req.Caption) == "" {
		return "", ErrNoCaption
	}
	if strings.TrimSpace(req.Project) == "" {
		return "", ErrNoProject
	}

	s.mu.RLock()
	settings := s.settings
	up := s.uploader
	s.mu.RUnlock()

	destinations := settings.Destinations(req.Project)
	if len(destinations) == 0 {
		return "", ErrNoDestination
	}

	job := Job{
		ID:           uuid.NewString(),
		Files:        append([]string(nil), req.Files...),
		Caption:      req.Caption,
		Project:      req.Project,
		Destinations: destinations,
		Threshold:    settings.ThresholdBytes(),
	}

	if err := s.tracker.Add(domain.Job{
		ID:      job.ID,
		Project: job.Project,
		Caption: job.Caption,
		Files:   job.Files,
	}); err != nil {
		return "", err
	}
	s.recordHistory(job)
	s.publish(jobs.Event{
		JobID:   job.ID,
		Type:    jobs.EventTypeStatus,
		Status:  domain.JobStatusQueued,
		Message: "Job queued",
		Project: job.Project,
		Files:   job.Files,
	})

	s.queue.Submit(dispatch.Task{
		ID:   job.ID,
		Name: "send " + job.Project,
		Run: func(ctx context.Context) error {
			return s.runner.Run(ctx, job, up, s.handleStage)
		},
	})
	return job.ID, nil
}

func (s *Service) handleStage(jobID string, status domain.JobStatus) {
	if err := s.tracker.Transition(jobID, status); err != nil {
		s.logger.Warn("job transition rejected", "job_id", jobID, "status", status, "error", err)
		return
	}
	s.publish(jobs.Event{
		JobID:   jobID,
		Type:    jobs.EventTypeStatus,
		Status:  status,
		Message: "Job " + string(status),
	})
}

// handleResult runs on the worker after every job.
func (s *Service) handleResult(res dispatch.Result) {
	ctx := context.Background()

	if res.OK() {
		if err := s.tracker.Transition(res.TaskID, domain.JobStatusDone); err != nil {
			s.logger.Warn("job transition rejected", "job_id", res.TaskID, "error", err)
		}
		s.finishHistory(ctx, res.TaskID, domain.JobStatusDone, "")
		s.publish(jobs.Event{
			JobID:   res.TaskID,
			Type:    jobs.EventTypeResult,
			Status:  domain.JobStatusDone,
			Message: "Message sent",
		})
		return
	}

	reason := res.Err.Error()
	if err := s.tracker.Fail(res.TaskID, reason); err != nil {
		s.logger.Warn("job transition rejected", "job_id", res.TaskID, "error", err)
	}
	s.finishHistory(ctx, res.TaskID, domain.JobStatusFailed, reason)

	message := "Send failed"
	var jobErr *JobError
	if errors.As(res.Err, &jobErr) {
		message = "Send failed during " + jobErr.Stage
	}
	s.publish(jobs.Event{
		JobID:   res.TaskID,
		Type:    jobs.EventTypeError,
		Status:  domain.JobStatusFailed,
		Message: message + ": " + reason,
	})
}

func (s *Service) publish(event jobs.Event) {
	s.events.Publish(event)
}

func (s *Service) recordHistory(job Job) {
	if s.history == nil {
		return
	}
	err := s.history.Record(context.Background(), history.Entry{
		ID:      job.ID,
		Project: job.Project,
		Caption: job.Caption,
		Files:   job.Files,
	})
	if err != nil {
		s.logger.Warn("record history", "job_id", job.ID, "error", err)
	}
}

func (s *Service) finishHistory(ctx context.Context, id string, status domain.JobStatus, reason string) {
	if s.history == nil {
		return
	}
	if err := s.history.Finish(ctx, id, status, reason); err != nil {
		s.logger.Warn("finish history", "job_id", id, "error", err)
	}
}
