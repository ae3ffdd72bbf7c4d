package transcode

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
)

// fakeRunner simulates command execution outcomes.
type fakeRunner struct {
	calls int
	run   func(ctx context.Context, name string, args ...string) (commandResult, error)
}

// Run delegates to injected behavior.
func (f *fakeRunner) Run(ctx context.Context, name string, args ...string) (commandResult, error) {
	f.calls++
	if f.run == nil {
		return commandResult{}, nil
	}
	return f.run(ctx, name, args...)
}

// TestNeedsTranscodeBoundary checks the threshold is exclusive.
func TestNeedsTranscodeBoundary(t *testing.T) {
	cases := []struct {
		size int64
		want bool
	}{
		{size: 0, want: false},
		{size: DefaultThreshold - 1, want: false},
		{size: DefaultThreshold, want: false},
		{size: DefaultThreshold + 1, want: true},
	}
	for _, tc := range cases {
		if got := NeedsTranscode(tc.size, DefaultThreshold); got != tc.want {
			t.Fatalf("NeedsTranscode(%d) = %v, want %v", tc.size, got, tc.want)
		}
	}
}

// TestTranscodeSuccessLeavesSourceUntouched checks the happy path.
func TestTranscodeSuccessLeavesSourceUntouched(t *testing.T) {
	root := t.TempDir()
	src := filepath.Join(root, "render.mp4")
	dst := filepath.Join(root, "out", "transcoded-00.mp4")
	mustWriteFile(t, src, "original-bytes")

	var gotName string
	var gotArgs []string
	runner := &fakeRunner{
		run: func(ctx context.Context, name string, args ...string) (commandResult, error) {
			gotName = name
			gotArgs = append([]string{}, args...)
			mustWriteFile(t, args[len(args)-1], "small")
			return commandResult{Stdout: "ok"}, nil
		},
	}

	tr := NewForTests("ffmpeg-custom", runner, os.Stat)
	log, err := tr.Transcode(context.Background(), src, dst)
	if err != nil {
		t.Fatalf("Transcode() error = %v", err)
	}
	if gotName != "ffmpeg-custom" {
		t.Fatalf("command = %q, want ffmpeg-custom", gotName)
	}
	if argValue(gotArgs, "-i") != src {
		t.Fatalf("input arg = %q, want %q", argValue(gotArgs, "-i"), src)
	}
	if gotArgs[len(gotArgs)-1] != dst {
		t.Fatalf("output arg = %q, want %q", gotArgs[len(gotArgs)-1], dst)
	}
	if log.Command != "ffmpeg-custom" {
		t.Fatalf("log command = %q", log.Command)
	}

	data, err := os.ReadFile(src)
	if err != nil {
		t.Fatalf("read source: %v", err)
	}
	if string(data) != "original-bytes" {
		t.Fatalf("source modified: %q", data)
	}
}

// TestTranscodeFFmpegFailure checks command failures carry logs.
func TestTranscodeFFmpegFailure(t *testing.T) {
	root := t.TempDir()
	src := filepath.Join(root, "render.mp4")
	mustWriteFile(t, src, "media")

	runner := &fakeRunner{
		run: func(ctx context.Context, name string, args ...string) (commandResult, error) {
			return commandResult{Stderr: "codec missing", ExitCode: 1}, errors.New("exit status 1")
		},
	}

	tr := NewForTests("ffmpeg", runner, os.Stat)
	_, err := tr.Transcode(context.Background(), src, filepath.Join(root, "out.mp4"))

	var tErr *Error
	if !errors.As(err, &tErr) {
		t.Fatalf("error = %T, want *Error", err)
	}
	if tErr.CommandLog.ExitCode != 1 || tErr.CommandLog.Stderr != "codec missing" {
		t.Fatalf("command log = %+v", tErr.CommandLog)
	}
}

// TestTranscodeMissingOutput checks ffmpeg exiting cleanly without output.
func TestTranscodeMissingOutput(t *testing.T) {
	root := t.TempDir()
	src := filepath.Join(root, "render.mp4")
	mustWriteFile(t, src, "media")

	tr := NewForTests("ffmpeg", &fakeRunner{}, os.Stat)
	_, err := tr.Transcode(context.Background(), src, filepath.Join(root, "out.mp4"))
	if !errors.Is(err, os.ErrNotExist) {
		t.Fatalf("error = %v, want not-exist", err)
	}
}

// TestTranscodeMissingSource fails before running ffmpeg.
func TestTranscodeMissingSource(t *testing.T) {
	runner := &fakeRunner{}
	tr := NewForTests("ffmpeg", runner, os.Stat)

	_, err := tr.Transcode(context.Background(), filepath.Join(t.TempDir(), "nope.mp4"), "out.mp4")
	if err == nil {
		t.Fatal("expected error")
	}
	if runner.calls != 0 {
		t.Fatalf("runner calls = %d, want 0", runner.calls)
	}
}

// TestTranscodeRejectsInPlaceOutput protects the source file.
func TestTranscodeRejectsInPlaceOutput(t *testing.T) {
	root := t.TempDir()
	src := filepath.Join(root, "render.mp4")
	mustWriteFile(t, src, "media")

	runner := &fakeRunner{}
	tr := NewForTests("ffmpeg", runner, os.Stat)
	if _, err := tr.Transcode(context.Background(), src, src); err == nil {
		t.Fatal("expected error")
	}
	if runner.calls != 0 {
		t.Fatalf("runner calls = %d, want 0", runner.calls)
	}
}

// TestWorkspacePathsAndCleanup checks deterministic naming and removal.
func TestWorkspacePathsAndCleanup(t *testing.T) {
	ws, err := NewWorkspace(t.TempDir())
	if err != nil {
		t.Fatalf("NewWorkspace() error = %v", err)
	}

	if got := filepath.Base(ws.Path(3)); got != "transcoded-03.mp4" {
		t.Fatalf("path = %q", got)
	}
	if ws.Path(1) == ws.Path(2) {
		t.Fatal("expected distinct paths per index")
	}

	dir := ws.Dir()
	mustWriteFile(t, ws.Path(0), "data")
	if err := ws.Cleanup(); err != nil {
		t.Fatalf("cleanup: %v", err)
	}
	if _, err := os.Stat(dir); !errors.Is(err, os.ErrNotExist) {
		t.Fatalf("expected workspace removed, stat err = %v", err)
	}
	if err := ws.Cleanup(); err != nil {
		t.Fatalf("second cleanup: %v", err)
	}
}

// TestBuildFFmpegArgsEncodesH264 checks encoder selection.
func TestBuildFFmpegArgsEncodesH264(t *testing.T) {
	args := buildFFmpegArgs("in.mov", "out.mp4")
	if argValue(args, "-c:v") != "libx264" {
		t.Fatalf("video codec = %q", argValue(args, "-c:v"))
	}
	if args[len(args)-1] != "out.mp4" {
		t.Fatalf("last arg = %q", args[len(args)-1])
	}
}

func mustWriteFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir %s: %v", path, err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
}

func argValue(args []string, flag string) string {
	for i := 0; i < len(args)-1; i++ {
		if args[i] == flag {
			return args[i+1]
		}
	}
	return ""
}
