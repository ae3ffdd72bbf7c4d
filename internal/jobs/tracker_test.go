package jobs

import (
	"errors"
	"testing"

	"render-sender/internal/domain"
)

// TestTrackerLifecycle verifies normal progression to done state.
func TestTrackerLifecycle(t *testing.T) {
	tr := NewTracker()
	if err := tr.Add(domain.Job{ID: "job-1", Files: []string{"a.mp4"}}); err != nil {
		t.Fatalf("add: %v", err)
	}
	if tr.Pending() != 1 {
		t.Fatalf("pending = %d, want 1", tr.Pending())
	}

	for _, status := range []domain.JobStatus{
		domain.JobStatusTranscoding,
		domain.JobStatusUploading,
		domain.JobStatusDone,
	} {
		if err := tr.Transition("job-1", status); err != nil {
			t.Fatalf("transition to %s: %v", status, err)
		}
	}

	job, ok := tr.Current()
	if !ok {
		t.Fatal("expected current job")
	}
	if job.Status != domain.JobStatusDone {
		t.Fatalf("status = %s, want done", job.Status)
	}
	if tr.Pending() != 0 {
		t.Fatalf("pending = %d, want 0", tr.Pending())
	}
}

// TestTrackerRejectsInvalidTransition checks state machine constraints.
func TestTrackerRejectsInvalidTransition(t *testing.T) {
	tr := NewTracker()
	if err := tr.Add(domain.Job{ID: "job-1"}); err != nil {
		t.Fatalf("add: %v", err)
	}

	if err := tr.Transition("job-1", domain.JobStatusDone); err == nil {
		t.Fatal("expected invalid transition error")
	}
	if err := tr.Fail("job-1", "boom"); err != nil {
		t.Fatalf("fail: %v", err)
	}
	if err := tr.Transition("job-1", domain.JobStatusUploading); err == nil {
		t.Fatal("expected terminal state to be final")
	}

	job, _ := tr.Get("job-1")
	if job.Error != "boom" {
		t.Fatalf("error = %q, want boom", job.Error)
	}
}

// TestTrackerUnknownAndDuplicate checks registration errors.
func TestTrackerUnknownAndDuplicate(t *testing.T) {
	tr := NewTracker()
	if err := tr.Transition("missing", domain.JobStatusUploading); !errors.Is(err, ErrUnknownJob) {
		t.Fatalf("error = %v, want %v", err, ErrUnknownJob)
	}

	if err := tr.Add(domain.Job{ID: "job-1"}); err != nil {
		t.Fatalf("add: %v", err)
	}
	if err := tr.Add(domain.Job{ID: "job-1"}); !errors.Is(err, ErrDuplicateJob) {
		t.Fatalf("error = %v, want %v", err, ErrDuplicateJob)
	}
}

// TestTrackerListKeepsSubmissionOrder checks List ordering and copies.
func TestTrackerListKeepsSubmissionOrder(t *testing.T) {
	tr := NewTracker()
	for _, id := range []string{"c", "a", "b"} {
		if err := tr.Add(domain.Job{ID: id, Files: []string{id + ".mp4"}}); err != nil {
			t.Fatalf("add %s: %v", id, err)
		}
	}

	list := tr.List()
	if len(list) != 3 || list[0].ID != "c" || list[1].ID != "a" || list[2].ID != "b" {
		t.Fatalf("unexpected order: %+v", list)
	}

	list[0].Files[0] = "mutated"
	job, _ := tr.Get("c")
	if job.Files[0] != "c.mp4" {
		t.Fatalf("tracker state mutated through List: %+v", job)
	}
}

// TestTrackerCurrentFollowsWorker checks Current tracks the latest started job.
func TestTrackerCurrentFollowsWorker(t *testing.T) {
	tr := NewTracker()
	_ = tr.Add(domain.Job{ID: "one"})
	_ = tr.Add(domain.Job{ID: "two"})

	if _, ok := tr.Current(); ok {
		t.Fatal("no job started yet")
	}

	_ = tr.Transition("one", domain.JobStatusUploading)
	_ = tr.Transition("one", domain.JobStatusDone)
	_ = tr.Transition("two", domain.JobStatusTranscoding)

	job, ok := tr.Current()
	if !ok || job.ID != "two" {
		t.Fatalf("current = %+v, want two", job)
	}
}

// TestTrackerPrunesOldestFinished keeps active jobs and the newest finished ones.
func TestTrackerPrunesOldestFinished(t *testing.T) {
	tr := NewTracker()
	tr.keepFinished = 2

	if err := tr.Add(domain.Job{ID: "active"}); err != nil {
		t.Fatalf("add: %v", err)
	}
	for _, id := range []string{"f1", "f2", "f3"} {
		if err := tr.Add(domain.Job{ID: id}); err != nil {
			t.Fatalf("add %s: %v", id, err)
		}
		if err := tr.Fail(id, "boom"); err != nil {
			t.Fatalf("fail %s: %v", id, err)
		}
	}

	if _, ok := tr.Get("f1"); ok {
		t.Fatal("oldest finished job should be pruned")
	}
	var ids []string
	for _, job := range tr.List() {
		ids = append(ids, job.ID)
	}
	if len(ids) != 3 || ids[0] != "active" || ids[1] != "f2" || ids[2] != "f3" {
		t.Fatalf("retained jobs = %v, want [active f2 f3]", ids)
	}
	if tr.Pending() != 1 {
		t.Fatalf("pending = %d, want 1", tr.Pending())
	}
}
