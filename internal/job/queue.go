package job

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/audio-scribe/backend/internal/errors"
)

const jobColumns = `id, type, key, status, params, result, error, created_at, started_at, completed_at`

// JobQueue persists job state and runs each job in its own goroutine.
// Jobs are unordered and cannot be cancelled once scheduled.
type JobQueue struct {
	db       *sql.DB
	logger   logrus.FieldLogger
	mu       sync.RWMutex
	enqMu    sync.Mutex // serializes EnqueueOnce lookups
	handlers map[JobType]JobHandler
	wg       sync.WaitGroup
	ctx      context.Context
	cancel   context.CancelFunc
}

// NewJobQueue creates a job queue. Jobs left pending or running by a previous
// process are marked failed so the next request schedules them again.
func NewJobQueue(db *sql.DB, logger logrus.FieldLogger) *JobQueue {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	ctx, cancel := context.WithCancel(context.Background())
	q := &JobQueue{
		db:       db,
		logger:   logger,
		handlers: make(map[JobType]JobHandler),
		ctx:      ctx,
		cancel:   cancel,
	}
	q.failInterrupted()
	return q
}

// RegisterHandler registers a handler for a job type
func (q *JobQueue) RegisterHandler(jobType JobType, handler JobHandler) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.handlers[jobType] = handler
}

// Enqueue creates a new job and starts it
func (q *JobQueue) Enqueue(jobType JobType, key string, params interface{}) (*Job, error) {
	paramsJSON, err := json.Marshal(params)
	if err != nil {
		return nil, fmt.Errorf("marshal params: %w", err)
	}

	job := &Job{
		ID:        uuid.New().String(),
		Type:      jobType,
		Key:       key,
		Status:    StatusPending,
		Params:    paramsJSON,
		CreatedAt: time.Now(),
	}

	_, err = q.db.Exec(`
		INSERT INTO jobs (id, type, key, status, params, created_at)
		VALUES (?, ?, ?, ?, ?, ?)`,
		job.ID, job.Type, job.Key, job.Status, string(job.Params), job.CreatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("insert job: %w", err)
	}

	q.wg.Add(1)
	go func() {
		defer q.wg.Done()
		q.processJob(job.ID)
	}()

	return job, nil
}

// EnqueueOnce returns the active job for (jobType, key) if there is one,
// otherwise enqueues a new job. created reports which happened.
func (q *JobQueue) EnqueueOnce(jobType JobType, key string, params interface{}) (job *Job, created bool, err error) {
	q.enqMu.Lock()
	defer q.enqMu.Unlock()

	job, err = q.FindActive(jobType, key)
	if err != nil {
		return nil, false, err
	}
	if job != nil {
		return job, false, nil
	}

	job, err = q.Enqueue(jobType, key, params)
	if err != nil {
		return nil, false, err
	}
	return job, true, nil
}

// FindActive returns the newest pending or running job for (jobType, key), or nil.
func (q *JobQueue) FindActive(jobType JobType, key string) (*Job, error) {
	row := q.db.QueryRow(`
		SELECT `+jobColumns+`
		FROM jobs WHERE type = ? AND key = ? AND status IN (?, ?)
		ORDER BY created_at DESC LIMIT 1`,
		jobType, key, StatusPending, StatusRunning,
	)
	job, err := scanJob(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("find active job: %w", err)
	}
	return job, nil
}

// GetJob retrieves a job by ID
func (q *JobQueue) GetJob(id string) (*Job, error) {
	row := q.db.QueryRow(`SELECT `+jobColumns+` FROM jobs WHERE id = ?`, id)
	job, err := scanJob(row)
	if err == sql.ErrNoRows {
		return nil, errors.New(errors.CodeNotFound, "job not found")
	}
	if err != nil {
		return nil, err
	}
	return job, nil
}

// ListJobs returns all jobs ordered by creation time (newest first)
func (q *JobQueue) ListJobs() ([]*Job, error) {
	rows, err := q.db.Query(`SELECT ` + jobColumns + ` FROM jobs ORDER BY created_at DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	jobs := []*Job{}
	for rows.Next() {
		job, err := scanJob(rows)
		if err != nil {
			return nil, err
		}
		jobs = append(jobs, job)
	}
	return jobs, rows.Err()
}

// Wait blocks until every running job returns or ctx is done.
func (q *JobQueue) Wait(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		q.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Stop shuts down the queue; handlers see their context cancelled.
func (q *JobQueue) Stop() {
	q.cancel()
}

type scanner interface {
	Scan(dest ...interface{}) error
}

func scanJob(s scanner) (*Job, error) {
	job := &Job{}
	var params, result, errMsg sql.NullString
	var startedAt, completedAt sql.NullTime

	if err := s.Scan(&job.ID, &job.Type, &job.Key, &job.Status, &params,
		&result, &errMsg, &job.CreatedAt, &startedAt, &completedAt); err != nil {
		return nil, err
	}

	if params.Valid {
		job.Params = json.RawMessage(params.String)
	}
	if result.Valid {
		job.Result = json.RawMessage(result.String)
	}
	if errMsg.Valid {
		job.Error = errMsg.String
	}
	if startedAt.Valid {
		job.StartedAt = &startedAt.Time
	}
	if completedAt.Valid {
		job.CompletedAt = &completedAt.Time
	}
	return job, nil
}

// processJob runs a single job
func (q *JobQueue) processJob(jobID string) {
	job, err := q.GetJob(jobID)
	if err != nil {
		q.logger.WithError(err).WithField("job_id", jobID).Error("[job] failed to load job")
		return
	}

	if job.Status != StatusPending {
		return
	}

	q.mu.RLock()
	handler, ok := q.handlers[job.Type]
	q.mu.RUnlock()

	if !ok {
		q.failJob(job, fmt.Sprintf("no handler for job type: %s", job.Type))
		return
	}

	now := time.Now()
	job.StartedAt = &now
	job.Status = StatusRunning
	if _, err := q.db.Exec("UPDATE jobs SET status = ?, started_at = ? WHERE id = ?",
		StatusRunning, now, job.ID); err != nil {
		q.logger.WithError(err).WithField("job_id", job.ID).Warn("[job] failed to mark job running")
	}

	result, err := q.runHandler(handler, job)
	if err != nil {
		q.failJob(job, err.Error())
		return
	}
	q.completeJob(job, result)
}

// runHandler turns a handler panic into a job failure.
func (q *JobQueue) runHandler(handler JobHandler, job *Job) (result interface{}, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
	}()
	return handler(q.ctx, job)
}

func (q *JobQueue) completeJob(job *Job, result interface{}) {
	var resultJSON interface{}
	if result != nil {
		if b, err := json.Marshal(result); err == nil {
			resultJSON = string(b)
		}
	}

	now := time.Now()
	if _, err := q.db.Exec("UPDATE jobs SET status = ?, result = ?, completed_at = ? WHERE id = ?",
		StatusCompleted, resultJSON, now, job.ID); err != nil {
		q.logger.WithError(err).WithField("job_id", job.ID).Error("[job] failed to mark job completed")
		return
	}
	q.logger.WithFields(logrus.Fields{"job_id": job.ID, "key": job.Key}).Info("[job] job completed")
}

func (q *JobQueue) failJob(job *Job, errMsg string) {
	now := time.Now()
	if _, err := q.db.Exec("UPDATE jobs SET status = ?, error = ?, completed_at = ? WHERE id = ?",
		StatusFailed, errMsg, now, job.ID); err != nil {
		q.logger.WithError(err).WithField("job_id", job.ID).Error("[job] failed to mark job failed")
	}
	q.logger.WithFields(logrus.Fields{"job_id": job.ID, "key": job.Key}).Errorf("[job] job failed: %s", errMsg)
}

func (q *JobQueue) failInterrupted() {
	res, err := q.db.Exec("UPDATE jobs SET status = ?, error = ?, completed_at = ? WHERE status IN (?, ?)",
		StatusFailed, "interrupted by restart", time.Now(), StatusPending, StatusRunning)
	if err != nil {
		q.logger.WithError(err).Warn("[job] failed to clear interrupted jobs")
		return
	}
	if n, _ := res.RowsAffected(); n > 0 {
		q.logger.Infof("[job] marked %d interrupted jobs as failed", n)
	}
}
