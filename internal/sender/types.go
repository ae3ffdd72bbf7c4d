package sender

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
)

//go:generate mockgen -destination=mocks/mock_uploader.go -package=mocks . Uploader

var (
	// ErrNoFiles rejects a submit without attachments.
	ErrNoFiles = errors.New("no files to send")
	// ErrNoCaption rejects a submit with an empty caption.
	ErrNoCaption = errors.New("caption is required")
	// ErrNoProject rejects a submit without a project.
	ErrNoProject = errors.New("project is required")
	// ErrNoAsset rejects a message without an asset name.
	ErrNoAsset = errors.New("asset name is required")
	// ErrNoDestination is returned when settings resolve to no chat.
	ErrNoDestination = errors.New("no destination chat configured")
	// ErrOversizedStill is returned for a non-video file over the threshold.
	ErrOversizedStill = errors.New("file exceeds the size threshold and only videos are re-encoded")
)

// Kind is the media type used for one upload item.
type Kind string

const (
	KindVideo    Kind = "video"
	KindPhoto    Kind = "photo"
	KindDocument Kind = "document"
)

var kindByExt = map[string]Kind{
	".mp4":  KindVideo,
	".mov":  KindVideo,
	".m4v":  KindVideo,
	".mkv":  KindVideo,
	".webm": KindVideo,
	".avi":  KindVideo,
	".jpg":  KindPhoto,
	".jpeg": KindPhoto,
	".png":  KindPhoto,
	".webp": KindPhoto,
}

// KindOf guesses the upload kind from the file extension.
func KindOf(path string) Kind {
	if kind, ok := kindByExt[strings.ToLower(filepath.Ext(path))]; ok {
		return kind
	}
	return KindDocument
}

// MediaItem is one entry of an outgoing group.
type MediaItem struct {
	Path    string
	Kind    Kind
	Caption string
}

// Uploader delivers a media group to one chat.
type Uploader interface {
	SendGroup(ctx context.Context, chatID string, items []MediaItem) error
}

// Request is what the caller asks to send.
type Request struct {
	Files   []string
	Caption string
	Project string
}

// Job is the immutable snapshot executed by the worker.
type Job struct {
	ID           string
	Files        []string
	Caption      string
	Project      string
	Destinations []string
	Threshold    int64
}

// JobError is a job failure tagged with the stage that produced it.
type JobError struct {
	Stage       string
	Path        string
	Destination string
	Err         error
}

// Error formats job failures for logs and UI.
func (e *JobError) Error() string {
	if e == nil {
		return ""
	}
	switch {
	case e.Destination != "":
		return fmt.Sprintf("%s to %s: %v", e.Stage, e.Destination, e.Err)
	case e.Path != "":
		return fmt.Sprintf("%s %s: %v", e.Stage, e.Path, e.Err)
	default:
		return fmt.Sprintf("%s: %v", e.Stage, e.Err)
	}
}

// Unwrap exposes underlying error for errors.Is / errors.As.
func (e *JobError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

const (
	StageRead      = "read"
	StageTranscode = "transcode"
	StageUpload    = "upload"
)

// BuildGroup turns upload paths into media items. Only the first item
// carries the caption.
func BuildGroup(paths []string, caption string) []MediaItem {
	items := make([]MediaItem, 0, len(paths))
	for i, path := range paths {
		item := MediaItem{Path: path, Kind: KindOf(path)}
		if i == 0 {
			item.Caption = caption
		}
		items = append(items, item)
	}
	return items
}
