package server

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/vidrelay/vidrelay/internal/core/platform"
)

// JobStatus represents the current state of a persisted download job.
type JobStatus string

const (
	JobStatusQueued      JobStatus = "queued"
	JobStatusDownloading JobStatus = "downloading"
	JobStatusCompleted   JobStatus = "completed"
	JobStatusFailed      JobStatus = "failed"
	JobStatusCancelled   JobStatus = "cancelled"
)

// Job is a persisted download: the resolved media is fetched into the
// output directory instead of being streamed to the requesting client.
type Job struct {
	ID         string            `json:"id"`
	URL        string            `json:"url"`
	Platform   platform.Platform `json:"platform"`
	Format     string            `json:"format"`
	Title      string            `json:"title,omitempty"`
	Filename   string            `json:"filename,omitempty"`
	Status     JobStatus         `json:"status"`
	Progress   float64           `json:"progress"`
	Downloaded int64             `json:"downloaded"`
	Total      int64             `json:"total"` // -1 when unknown
	Error      string            `json:"error,omitempty"`
	CreatedAt  time.Time         `json:"created_at"`
	UpdatedAt  time.Time         `json:"updated_at"`

	cancel context.CancelFunc `json:"-"`
	ctx    context.Context    `json:"-"`
}

// DownloadFunc performs the actual fetch for a job and reports byte
// progress through progressFn.
type DownloadFunc func(ctx context.Context, job *Job, progressFn func(downloaded, total int64)) error

// JobQueue runs persisted downloads on a bounded worker pool.
type JobQueue struct {
	jobs          map[string]*Job
	mu            sync.RWMutex
	queue         chan *Job
	closed        bool
	maxConcurrent int
	downloadFn    DownloadFunc
	wg            sync.WaitGroup
	cleanupTicker *time.Ticker
	stopCleanup   chan struct{}
}

// NewJobQueue creates a job queue with the given concurrency limit.
func NewJobQueue(maxConcurrent int, downloadFn DownloadFunc) *JobQueue {
	if maxConcurrent <= 0 {
		maxConcurrent = 4
	}

	return &JobQueue{
		jobs:          make(map[string]*Job),
		queue:         make(chan *Job, 100),
		maxConcurrent: maxConcurrent,
		downloadFn:    downloadFn,
		stopCleanup:   make(chan struct{}),
	}
}

// Start begins the worker pool and the cleanup routine.
func (jq *JobQueue) Start() {
	for i := 0; i < jq.maxConcurrent; i++ {
		jq.wg.Add(1)
		go jq.worker()
	}

	// Every 10 minutes, drop finished jobs older than 1 hour.
	jq.cleanupTicker = time.NewTicker(10 * time.Minute)
	go jq.cleanupLoop()
}

// Stop shuts down the worker pool after in-flight jobs finish. The
// closed flag and the channel close happen under the same lock AddJob
// holds while sending, so a racing enqueue either lands before the
// close or is refused.
func (jq *JobQueue) Stop() {
	jq.mu.Lock()
	if jq.closed {
		jq.mu.Unlock()
		return
	}
	jq.closed = true
	close(jq.queue)
	close(jq.stopCleanup)
	jq.mu.Unlock()

	if jq.cleanupTicker != nil {
		jq.cleanupTicker.Stop()
	}
	jq.wg.Wait()
}

func (jq *JobQueue) worker() {
	defer jq.wg.Done()

	for job := range jq.queue {
		jq.processJob(job)
	}
}

func (jq *JobQueue) processJob(job *Job) {
	jq.updateJobStatus(job.ID, JobStatusDownloading, 0, "")

	progressFn := func(downloaded, total int64) {
		jq.updateJobProgressBytes(job.ID, downloaded, total)
	}

	err := jq.downloadFn(job.ctx, job, progressFn)
	if err != nil {
		if job.ctx.Err() == context.Canceled {
			jq.updateJobStatus(job.ID, JobStatusCancelled, 0, "cancelled by user")
		} else {
			jq.updateJobStatus(job.ID, JobStatusFailed, 0, err.Error())
		}
		return
	}

	jq.updateJobStatus(job.ID, JobStatusCompleted, 100, "")
}

func (jq *JobQueue) cleanupLoop() {
	for {
		select {
		case <-jq.cleanupTicker.C:
			jq.cleanupOldJobs()
		case <-jq.stopCleanup:
			return
		}
	}
}

func (jq *JobQueue) cleanupOldJobs() {
	jq.mu.Lock()
	defer jq.mu.Unlock()

	cutoff := time.Now().Add(-1 * time.Hour)
	for id, job := range jq.jobs {
		if jobFinished(job.Status) && job.UpdatedAt.Before(cutoff) {
			delete(jq.jobs, id)
		}
	}
}

func jobFinished(s JobStatus) bool {
	return s == JobStatusCompleted || s == JobStatusFailed || s == JobStatusCancelled
}

// AddJob creates and queues a new persisted download.
func (jq *JobQueue) AddJob(url string, p platform.Platform, format, title, filename string) (*Job, error) {
	ctx, cancel := context.WithCancel(context.Background())

	job := &Job{
		ID:        uuid.NewString(),
		URL:       url,
		Platform:  p,
		Format:    format,
		Title:     title,
		Filename:  filename,
		Status:    JobStatusQueued,
		CreatedAt: time.Now(),
		UpdatedAt: time.Now(),
		ctx:       ctx,
		cancel:    cancel,
	}

	jq.mu.Lock()
	if jq.closed {
		jq.mu.Unlock()
		cancel()
		return nil, fmt.Errorf("job queue is shutting down")
	}
	jq.jobs[job.ID] = job

	select {
	case jq.queue <- job:
		jq.mu.Unlock()
		return job, nil
	default:
		delete(jq.jobs, job.ID)
		jq.mu.Unlock()
		cancel()
		return nil, fmt.Errorf("job queue is full")
	}
}

// GetJob returns a copy of the job, or nil when unknown.
func (jq *JobQueue) GetJob(id string) *Job {
	jq.mu.RLock()
	defer jq.mu.RUnlock()

	if job, ok := jq.jobs[id]; ok {
		jobCopy := *job
		return &jobCopy
	}
	return nil
}

// GetAllJobs returns copies of every tracked job.
func (jq *JobQueue) GetAllJobs() []*Job {
	jq.mu.RLock()
	defer jq.mu.RUnlock()

	jobs := make([]*Job, 0, len(jq.jobs))
	for _, job := range jq.jobs {
		jobCopy := *job
		jobs = append(jobs, &jobCopy)
	}
	return jobs
}

// CancelJob cancels a queued or running job.
func (jq *JobQueue) CancelJob(id string) bool {
	jq.mu.Lock()
	defer jq.mu.Unlock()

	job, ok := jq.jobs[id]
	if !ok {
		return false
	}
	if job.Status != JobStatusQueued && job.Status != JobStatusDownloading {
		return false
	}

	job.cancel()
	job.Status = JobStatusCancelled
	job.UpdatedAt = time.Now()
	return true
}

// RemoveJob deletes a finished job by ID.
func (jq *JobQueue) RemoveJob(id string) bool {
	jq.mu.Lock()
	defer jq.mu.Unlock()

	job, ok := jq.jobs[id]
	if !ok || !jobFinished(job.Status) {
		return false
	}

	delete(jq.jobs, id)
	return true
}

// ClearHistory removes all finished jobs and reports how many.
func (jq *JobQueue) ClearHistory() int {
	jq.mu.Lock()
	defer jq.mu.Unlock()

	count := 0
	for id, job := range jq.jobs {
		if jobFinished(job.Status) {
			delete(jq.jobs, id)
			count++
		}
	}
	return count
}

// SetFilename records the resolved output filename once known.
func (jq *JobQueue) SetFilename(id, filename string) {
	jq.mu.Lock()
	defer jq.mu.Unlock()

	if job, ok := jq.jobs[id]; ok {
		job.Filename = filename
		job.UpdatedAt = time.Now()
	}
}

func (jq *JobQueue) updateJobStatus(id string, status JobStatus, progress float64, errMsg string) {
	jq.mu.Lock()
	defer jq.mu.Unlock()

	if job, ok := jq.jobs[id]; ok {
		job.Status = status
		if progress > 0 {
			job.Progress = progress
		}
		if errMsg != "" {
			job.Error = errMsg
		}
		job.UpdatedAt = time.Now()
	}
}

func (jq *JobQueue) updateJobProgressBytes(id string, downloaded, total int64) {
	jq.mu.Lock()
	defer jq.mu.Unlock()

	if job, ok := jq.jobs[id]; ok {
		job.Downloaded = downloaded
		job.Total = total
		if total > 0 {
			job.Progress = float64(downloaded) / float64(total) * 100
		}
		job.UpdatedAt = time.Now()
	}
}
