package sender

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/dustin/go-humanize"

	"render-sender/internal/domain"
	"render-sender/internal/transcode"
)

// Transcoder re-encodes src into dst.
type Transcoder interface {
	Transcode(ctx context.Context, src, dst string) (transcode.CommandLog, error)
}

// StageFunc is notified when a job enters a new stage.
type StageFunc func(jobID string, status domain.JobStatus)

// Runner executes send jobs. It is only ever called from the queue worker.
type Runner struct {
	transcoder   Transcoder
	tempDir      string
	logger       *slog.Logger
	stat         func(name string) (os.FileInfo, error)
	newWorkspace func(baseDir string) (*transcode.Workspace, error)
}

// NewRunner builds a runner writing transcoded files under tempDir
// (os.TempDir when empty).
func NewRunner(transcoder Transcoder, tempDir string, logger *slog.Logger) *Runner {
	if logger == nil {
		logger = slog.Default()
	}
	return &Runner{
		transcoder:   transcoder,
		tempDir:      tempDir,
		logger:       logger,
		stat:         os.Stat,
		newWorkspace: transcode.NewWorkspace,
	}
}

// Run transcodes what needs it, then uploads the group to every destination.
// Temporary artifacts are removed whether or not the upload succeeds.
func (r *Runner) Run(ctx context.Context, job Job, up Uploader, onStage StageFunc) (err error) {
	if len(job.Files) == 0 {
		return ErrNoFiles
	}
	if len(job.Destinations) == 0 {
		return ErrNoDestination
	}
	log := r.logger.With("job_id", job.ID, "project", job.Project)

	var ws *transcode.Workspace
	defer func() {
		if cleanupErr := ws.Cleanup(); cleanupErr != nil {
			log.Warn("cleanup transcode workspace", "error", cleanupErr)
		}
	}()

	uploads := make([]string, 0, len(job.Files))
	for i, path := range job.Files {
		info, statErr := r.stat(path)
		if statErr != nil {
			return &JobError{Stage: StageRead, Path: path, Err: statErr}
		}
		if info.IsDir() {
			return &JobError{Stage: StageRead, Path: path, Err: fmt.Errorf("is a directory")}
		}

		if !transcode.NeedsTranscode(info.Size(), job.Threshold) {
			log.Debug("uploading original", "path", path, "size", humanize.IBytes(uint64(info.Size())))
			uploads = append(uploads, path)
			continue
		}
		if KindOf(path) != KindVideo {
			return &JobError{Stage: StageRead, Path: path, Err: ErrOversizedStill}
		}

		if ws == nil {
			notify(onStage, job.ID, domain.JobStatusTranscoding)
			if ws, err = r.newWorkspace(r.tempDir); err != nil {
				return &JobError{Stage: StageTranscode, Path: path, Err: err}
			}
		}

		dst := ws.Path(i)
		log.Info("transcoding oversized file",
			"path", path,
			"size", humanize.IBytes(uint64(info.Size())),
			"threshold", humanize.IBytes(uint64(job.Threshold)))
		if _, err := r.transcoder.Transcode(ctx, path, dst); err != nil {
			return &JobError{Stage: StageTranscode, Path: path, Err: err}
		}
		uploads = append(uploads, dst)
	}

	notify(onStage, job.ID, domain.JobStatusUploading)
	items := BuildGroup(uploads, job.Caption)
	for _, dest := range job.Destinations {
		if err := up.SendGroup(ctx, dest, items); err != nil {
			return &JobError{Stage: StageUpload, Destination: dest, Err: err}
		}
		log.Info("group uploaded", "destination", dest, "items", len(items))
	}
	return nil
}

func notify(fn StageFunc, jobID string, status domain.JobStatus) {
	if fn != nil {
		fn(jobID, status)
	}
}
