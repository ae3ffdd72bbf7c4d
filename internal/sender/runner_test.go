package sender_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"render-sender/internal/domain"
	"render-sender/internal/sender"
	"render-sender/internal/sender/mocks"
	"render-sender/internal/transcode"
)

const mib = 1024 * 1024

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// fakeTranscoder writes a small output file and records its calls.
type fakeTranscoder struct {
	mu    sync.Mutex
	calls []string
	err   error
}

func (f *fakeTranscoder) Transcode(_ context.Context, src, dst string) (transcode.CommandLog, error) {
	f.mu.Lock()
	f.calls = append(f.calls, src)
	f.mu.Unlock()
	if f.err != nil {
		return transcode.CommandLog{Command: "ffmpeg", ExitCode: 1}, f.err
	}
	if err := os.WriteFile(dst, []byte("small"), 0o644); err != nil {
		return transcode.CommandLog{}, err
	}
	return transcode.CommandLog{Command: "ffmpeg"}, nil
}

func (f *fakeTranscoder) Calls() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.calls...)
}

// sizedFile creates a sparse file of exactly size bytes.
func sizedFile(t *testing.T, dir, name string, size int64) string {
	t.Helper()
	path := filepath.Join(dir, name)
	f, err := os.Create(path)
	require.NoError(t, err)
	require.NoError(t, f.Truncate(size))
	require.NoError(t, f.Close())
	return path
}

func TestRunner_ThresholdBoundary(t *testing.T) {
	dir := t.TempDir()
	atLimit := sizedFile(t, dir, "at.mp4", transcode.DefaultThreshold)
	overLimit := sizedFile(t, dir, "over.mp4", transcode.DefaultThreshold+1)

	tr := &fakeTranscoder{}
	runner := sender.NewRunner(tr, t.TempDir(), testLogger())

	ctrl := gomock.NewController(t)
	up := mocks.NewMockUploader(ctrl)

	var uploaded []sender.MediaItem
	up.EXPECT().
		SendGroup(gomock.Any(), "-100", gomock.Any()).
		DoAndReturn(func(_ context.Context, _ string, items []sender.MediaItem) error {
			uploaded = items
			for _, item := range items {
				_, err := os.Stat(item.Path)
				require.NoError(t, err, "upload path must exist during upload")
			}
			return nil
		})

	job := sender.Job{
		ID:           "job-1",
		Files:        []string{atLimit, overLimit},
		Caption:      "boundary",
		Destinations: []string{"-100"},
		Threshold:    transcode.DefaultThreshold,
	}
	require.NoError(t, runner.Run(context.Background(), job, up, nil))

	assert.Equal(t, []string{overLimit}, tr.Calls())
	require.Len(t, uploaded, 2)
	assert.Equal(t, atLimit, uploaded[0].Path)
	assert.NotEqual(t, overLimit, uploaded[1].Path)
	assert.Equal(t, "transcoded-01.mp4", filepath.Base(uploaded[1].Path))

	info, err := os.Stat(overLimit)
	require.NoError(t, err)
	assert.Equal(t, transcode.DefaultThreshold+1, info.Size(), "original must be left untouched")

	_, err = os.Stat(uploaded[1].Path)
	assert.True(t, errors.Is(err, os.ErrNotExist), "transcoded artifact must be removed after upload")
}

func TestRunner_ReportsStages(t *testing.T) {
	dir := t.TempDir()
	big := sizedFile(t, dir, "big.mp4", 2*mib)

	ctrl := gomock.NewController(t)
	up := mocks.NewMockUploader(ctrl)
	up.EXPECT().SendGroup(gomock.Any(), gomock.Any(), gomock.Any()).Return(nil)

	var stages []domain.JobStatus
	runner := sender.NewRunner(&fakeTranscoder{}, t.TempDir(), testLogger())
	err := runner.Run(context.Background(), sender.Job{
		ID:           "job-1",
		Files:        []string{big},
		Caption:      "c",
		Destinations: []string{"-1"},
		Threshold:    mib,
	}, up, func(_ string, status domain.JobStatus) {
		stages = append(stages, status)
	})

	require.NoError(t, err)
	assert.Equal(t, []domain.JobStatus{domain.JobStatusTranscoding, domain.JobStatusUploading}, stages)
}

func TestRunner_UploadFailureStillCleansUp(t *testing.T) {
	dir := t.TempDir()
	big := sizedFile(t, dir, "big.mp4", 2*mib)
	workRoot := t.TempDir()

	ctrl := gomock.NewController(t)
	up := mocks.NewMockUploader(ctrl)
	up.EXPECT().
		SendGroup(gomock.Any(), "-1", gomock.Any()).
		Return(errors.New("connection reset"))

	runner := sender.NewRunner(&fakeTranscoder{}, workRoot, testLogger())
	err := runner.Run(context.Background(), sender.Job{
		ID:           "job-1",
		Files:        []string{big},
		Caption:      "c",
		Destinations: []string{"-1", "-2"},
		Threshold:    mib,
	}, up, nil)

	var jobErr *sender.JobError
	require.ErrorAs(t, err, &jobErr)
	assert.Equal(t, sender.StageUpload, jobErr.Stage)
	assert.Equal(t, "-1", jobErr.Destination)

	entries, readErr := os.ReadDir(workRoot)
	require.NoError(t, readErr)
	assert.Empty(t, entries, "workspace must be removed after a failed upload")
}

func TestRunner_TranscodeFailureSkipsUpload(t *testing.T) {
	dir := t.TempDir()
	big := sizedFile(t, dir, "big.mp4", 2*mib)

	ctrl := gomock.NewController(t)
	up := mocks.NewMockUploader(ctrl)

	runner := sender.NewRunner(&fakeTranscoder{err: errors.New("exit status 1")}, t.TempDir(), testLogger())
	err := runner.Run(context.Background(), sender.Job{
		ID:           "job-1",
		Files:        []string{big},
		Caption:      "c",
		Destinations: []string{"-1"},
		Threshold:    mib,
	}, up, nil)

	var jobErr *sender.JobError
	require.ErrorAs(t, err, &jobErr)
	assert.Equal(t, sender.StageTranscode, jobErr.Stage)
	assert.Equal(t, big, jobErr.Path)
}

func TestRunner_OversizedStillIsRejected(t *testing.T) {
	dir := t.TempDir()
	clip := sizedFile(t, dir, "clip.mp4", 2*mib)
	still := sizedFile(t, dir, "plate.png", 2*mib)

	ctrl := gomock.NewController(t)
	up := mocks.NewMockUploader(ctrl)

	tr := &fakeTranscoder{}
	runner := sender.NewRunner(tr, t.TempDir(), testLogger())
	err := runner.Run(context.Background(), sender.Job{
		ID:           "job-1",
		Files:        []string{clip, still},
		Caption:      "c",
		Destinations: []string{"-1"},
		Threshold:    mib,
	}, up, nil)

	var jobErr *sender.JobError
	require.ErrorAs(t, err, &jobErr)
	assert.Equal(t, sender.StageRead, jobErr.Stage)
	assert.Equal(t, still, jobErr.Path)
	assert.ErrorIs(t, err, sender.ErrOversizedStill)
	assert.Equal(t, []string{clip}, tr.Calls())
}

func TestRunner_UnreadableFile(t *testing.T) {
	ctrl := gomock.NewController(t)
	up := mocks.NewMockUploader(ctrl)

	missing := filepath.Join(t.TempDir(), "gone.mp4")
	runner := sender.NewRunner(&fakeTranscoder{}, t.TempDir(), testLogger())
	err := runner.Run(context.Background(), sender.Job{
		ID:           "job-1",
		Files:        []string{missing},
		Caption:      "c",
		Destinations: []string{"-1"},
		Threshold:    mib,
	}, up, nil)

	var jobErr *sender.JobError
	require.ErrorAs(t, err, &jobErr)
	assert.Equal(t, sender.StageRead, jobErr.Stage)
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestRunner_RejectsEmptyJob(t *testing.T) {
	runner := sender.NewRunner(&fakeTranscoder{}, t.TempDir(), testLogger())

	err := runner.Run(context.Background(), sender.Job{Destinations: []string{"-1"}}, nil, nil)
	assert.ErrorIs(t, err, sender.ErrNoFiles)

	err = runner.Run(context.Background(), sender.Job{Files: []string{"a.mp4"}}, nil, nil)
	assert.ErrorIs(t, err, sender.ErrNoDestination)
}
