package server

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/vidrelay/vidrelay/internal/core/platform"
)

func waitForStatus(t *testing.T, jq *JobQueue, id string, want JobStatus) *Job {
	t.Helper()

	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		if job := jq.GetJob(id); job != nil && job.Status == want {
			return job
		}
		time.Sleep(10 * time.Millisecond)
	}
	job := jq.GetJob(id)
	t.Fatalf("job %s never reached %s; last seen %+v", id, want, job)
	return nil
}

func TestJobQueueCompletes(t *testing.T) {
	var calls atomic.Int32
	jq := NewJobQueue(2, func(ctx context.Context, job *Job, progressFn func(downloaded, total int64)) error {
		calls.Add(1)
		progressFn(50, 100)
		return nil
	})
	jq.Start()
	defer jq.Stop()

	job, err := jq.AddJob("https://youtu.be/dQw4w9WgXcQ", platform.YouTube, "mp4", "Video", "")
	if err != nil {
		t.Fatal(err)
	}
	if job.ID == "" {
		t.Fatal("job has no ID")
	}

	done := waitForStatus(t, jq, job.ID, JobStatusCompleted)
	if done.Progress != 100 {
		t.Errorf("Progress = %v; want 100", done.Progress)
	}
	if calls.Load() != 1 {
		t.Errorf("download ran %d times", calls.Load())
	}
}

func TestJobQueueFailure(t *testing.T) {
	jq := NewJobQueue(1, func(ctx context.Context, job *Job, progressFn func(downloaded, total int64)) error {
		return errors.New("upstream exploded")
	})
	jq.Start()
	defer jq.Stop()

	job, err := jq.AddJob("https://youtu.be/x", platform.YouTube, "mp4", "", "")
	if err != nil {
		t.Fatal(err)
	}

	failed := waitForStatus(t, jq, job.ID, JobStatusFailed)
	if failed.Error != "upstream exploded" {
		t.Errorf("Error = %q", failed.Error)
	}
}

func TestJobQueueCancel(t *testing.T) {
	started := make(chan struct{})
	jq := NewJobQueue(1, func(ctx context.Context, job *Job, progressFn func(downloaded, total int64)) error {
		close(started)
		<-ctx.Done()
		return ctx.Err()
	})
	jq.Start()
	defer jq.Stop()

	job, err := jq.AddJob("https://youtu.be/x", platform.YouTube, "mp4", "", "")
	if err != nil {
		t.Fatal(err)
	}

	<-started
	if !jq.CancelJob(job.ID) {
		t.Fatal("CancelJob returned false for a running job")
	}

	waitForStatus(t, jq, job.ID, JobStatusCancelled)
}

func TestAddJobAfterStop(t *testing.T) {
	jq := NewJobQueue(1, func(ctx context.Context, job *Job, progressFn func(downloaded, total int64)) error {
		return nil
	})
	jq.Start()
	jq.Stop()

	if _, err := jq.AddJob("https://youtu.be/x", platform.YouTube, "mp4", "", ""); err == nil {
		t.Fatal("AddJob succeeded on a stopped queue")
	}
	if len(jq.GetAllJobs()) != 0 {
		t.Error("job was tracked despite the queue being stopped")
	}
}

func TestStopIsIdempotent(t *testing.T) {
	jq := NewJobQueue(1, func(ctx context.Context, job *Job, progressFn func(downloaded, total int64)) error {
		return nil
	})
	jq.Start()
	jq.Stop()
	jq.Stop()
}

func TestCancelUnknownJob(t *testing.T) {
	jq := NewJobQueue(1, func(ctx context.Context, job *Job, progressFn func(downloaded, total int64)) error {
		return nil
	})

	if jq.CancelJob("nope") {
		t.Error("CancelJob returned true for an unknown job")
	}
}

func TestRemoveJobOnlyWhenFinished(t *testing.T) {
	jq := NewJobQueue(1, func(ctx context.Context, job *Job, progressFn func(downloaded, total int64)) error {
		return nil
	})
	jq.Start()
	defer jq.Stop()

	job, err := jq.AddJob("https://youtu.be/x", platform.YouTube, "mp4", "", "")
	if err != nil {
		t.Fatal(err)
	}

	waitForStatus(t, jq, job.ID, JobStatusCompleted)

	if !jq.RemoveJob(job.ID) {
		t.Error("RemoveJob returned false for a completed job")
	}
	if jq.GetJob(job.ID) != nil {
		t.Error("job still present after removal")
	}
}

func TestClearHistory(t *testing.T) {
	jq := NewJobQueue(2, func(ctx context.Context, job *Job, progressFn func(downloaded, total int64)) error {
		return nil
	})
	jq.Start()
	defer jq.Stop()

	var ids []string
	for i := 0; i < 3; i++ {
		job, err := jq.AddJob("https://youtu.be/x", platform.YouTube, "mp4", "", "")
		if err != nil {
			t.Fatal(err)
		}
		ids = append(ids, job.ID)
	}
	for _, id := range ids {
		waitForStatus(t, jq, id, JobStatusCompleted)
	}

	if cleared := jq.ClearHistory(); cleared != 3 {
		t.Errorf("ClearHistory = %d; want 3", cleared)
	}
	if len(jq.GetAllJobs()) != 0 {
		t.Error("jobs remain after ClearHistory")
	}
}

func TestSetFilename(t *testing.T) {
	block := make(chan struct{})
	jq := NewJobQueue(1, func(ctx context.Context, job *Job, progressFn func(downloaded, total int64)) error {
		<-block
		return nil
	})
	jq.Start()
	defer jq.Stop()
	defer close(block)

	job, err := jq.AddJob("https://youtu.be/x", platform.YouTube, "mp4", "", "")
	if err != nil {
		t.Fatal(err)
	}

	jq.SetFilename(job.ID, "Video_123.mp4")
	if got := jq.GetJob(job.ID).Filename; got != "Video_123.mp4" {
		t.Errorf("Filename = %q", got)
	}
}
