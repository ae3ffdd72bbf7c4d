// Package transcode decides which files are too large to upload as-is and
// re-encodes them with ffmpeg into a per-job temporary workspace.
package transcode

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// DefaultThreshold is the reference upload limit: 45 MiB.
const DefaultThreshold int64 = 45 * 1024 * 1024

// NeedsTranscode reports whether a file of size bytes exceeds threshold.
// A file exactly at the threshold is uploaded unchanged.
func NeedsTranscode(size, threshold int64) bool {
	return size > threshold
}

// Error is a transcode failure with the ffmpeg invocation attached.
type Error struct {
	Source     string     `json:"source"`
	Message    string     `json:"message"`
	CommandLog CommandLog `json:"commandLog"`
	Err        error      `json:"-"`
}

// Error formats transcode failures for logs and UI.
func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	if e.CommandLog.Command == "" {
		return fmt.Sprintf("transcode %s: %s", e.Source, e.Message)
	}
	return fmt.Sprintf("transcode %s: %s (cmd=%s exit=%d)",
		e.Source, e.Message, e.CommandLog.Command, e.CommandLog.ExitCode)
}

// Unwrap exposes underlying error for errors.Is / errors.As.
func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// Transcoder re-encodes video through ffmpeg.
type Transcoder struct {
	ffmpegPath string
	runner     commandRunner
	stat       func(name string) (os.FileInfo, error)
}

// New constructs a transcoder using the given ffmpeg binary.
func New(ffmpegPath string) *Transcoder {
	if strings.TrimSpace(ffmpegPath) == "" {
		ffmpegPath = "ffmpeg"
	}
	return &Transcoder{
		ffmpegPath: ffmpegPath,
		runner:     &execRunner{},
		stat:       os.Stat,
	}
}

// Transcode writes a reduced-size copy of src to dst. src is only read.
func (t *Transcoder) Transcode(ctx context.Context, src, dst string) (CommandLog, error) {
	if filepath.Clean(src) == filepath.Clean(dst) {
		return CommandLog{}, &Error{Source: src, Message: "output path equals source"}
	}
	if _, err := t.stat(src); err != nil {
		return CommandLog{}, &Error{
			Source:  src,
			Message: "cannot access source media",
			Err:     err,
		}
	}

	args := buildFFmpegArgs(src, dst)
	res, runErr := t.runner.Run(ctx, t.ffmpegPath, args...)
	log := CommandLog{
		Command:  t.ffmpegPath,
		Args:     args,
		ExitCode: res.ExitCode,
		Stdout:   res.Stdout,
		Stderr:   res.Stderr,
	}
	if runErr != nil {
		return log, &Error{
			Source:     src,
			Message:    "ffmpeg re-encode failed",
			CommandLog: log,
			Err:        runErr,
		}
	}

	if _, err := t.stat(dst); err != nil {
		return log, &Error{
			Source:     src,
			Message:    "ffmpeg completed but output file is missing",
			CommandLog: log,
			Err:        err,
		}
	}
	return log, nil
}

// buildFFmpegArgs builds H.264/AAC re-encode args tuned for chat uploads.
func buildFFmpegArgs(inputPath, outPath string) []string {
	return []string{
		"-hide_banner",
		"-nostdin",
		"-y",
		"-i", inputPath,
		"-c:v", "libx264",
		"-preset", "veryfast",
		"-crf", "28",
		"-c:a", "aac",
		"-b:a", "128k",
		"-movflags", "+faststart",
		outPath,
	}
}

// NewForTests constructs a transcoder with injectable dependencies.
func NewForTests(ffmpegPath string, runner commandRunner, stat func(string) (os.FileInfo, error)) *Transcoder {
	return &Transcoder{
		ffmpegPath: ffmpegPath,
		runner:     runner,
		stat:       stat,
	}
}
