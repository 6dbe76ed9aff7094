package job

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"io"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/audio-scribe/backend/internal/db"
	"github.com/audio-scribe/backend/internal/errors"
)

func quietLogger() *logrus.Logger {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return l
}

func openDB(t *testing.T) *sql.DB {
	t.Helper()
	d, err := db.NewSQLite(filepath.Join(t.TempDir(), "jobs.db"))
	require.NoError(t, err)
	t.Cleanup(func() { d.Close() })
	return d.DB()
}

func waitForStatus(t *testing.T, q *JobQueue, id string, want JobStatus) *Job {
	t.Helper()
	var job *Job
	require.Eventually(t, func() bool {
		var err error
		job, err = q.GetJob(id)
		return err == nil && job.Status == want
	}, 5*time.Second, 10*time.Millisecond)
	return job
}

func TestJobQueue_CompletesJob(t *testing.T) {
	q := NewJobQueue(openDB(t), quietLogger())
	defer q.Stop()

	q.RegisterHandler(JobTranscribe, func(ctx context.Context, job *Job) (interface{}, error) {
		var p TranscribeParams
		if err := json.Unmarshal(job.Params, &p); err != nil {
			return nil, err
		}
		return TranscribeResult{OutputPath: p.VideoID + ".json", Segments: 3}, nil
	})

	job, err := q.Enqueue(JobTranscribe, "abc/base", TranscribeParams{VideoID: "abc", Model: "base"})
	require.NoError(t, err)
	assert.Equal(t, StatusPending, job.Status)

	done := waitForStatus(t, q, job.ID, StatusCompleted)
	assert.Equal(t, "abc/base", done.Key)
	assert.NotNil(t, done.StartedAt)
	assert.NotNil(t, done.CompletedAt)

	var res TranscribeResult
	require.NoError(t, json.Unmarshal(done.Result, &res))
	assert.Equal(t, "abc.json", res.OutputPath)
	assert.Equal(t, 3, res.Segments)
}

func TestJobQueue_FailedJobRecordsError(t *testing.T) {
	q := NewJobQueue(openDB(t), quietLogger())
	defer q.Stop()

	q.RegisterHandler(JobTranscribe, func(ctx context.Context, job *Job) (interface{}, error) {
		return nil, fmt.Errorf("engine exploded")
	})

	job, err := q.Enqueue(JobTranscribe, "abc/base", TranscribeParams{VideoID: "abc", Model: "base"})
	require.NoError(t, err)

	failed := waitForStatus(t, q, job.ID, StatusFailed)
	assert.Equal(t, "engine exploded", failed.Error)
	assert.Empty(t, failed.Result)
}

func TestJobQueue_PanicFailsJob(t *testing.T) {
	q := NewJobQueue(openDB(t), quietLogger())
	defer q.Stop()

	q.RegisterHandler(JobTranscribe, func(ctx context.Context, job *Job) (interface{}, error) {
		panic("boom")
	})

	job, err := q.Enqueue(JobTranscribe, "k", nil)
	require.NoError(t, err)

	failed := waitForStatus(t, q, job.ID, StatusFailed)
	assert.Contains(t, failed.Error, "boom")
}

func TestJobQueue_NoHandler(t *testing.T) {
	q := NewJobQueue(openDB(t), quietLogger())
	defer q.Stop()

	job, err := q.Enqueue(JobType("unknown"), "k", nil)
	require.NoError(t, err)

	failed := waitForStatus(t, q, job.ID, StatusFailed)
	assert.Contains(t, failed.Error, "no handler")
}

func TestJobQueue_EnqueueOnceReusesActiveJob(t *testing.T) {
	q := NewJobQueue(openDB(t), quietLogger())
	defer q.Stop()

	release := make(chan struct{})
	q.RegisterHandler(JobTranscribe, func(ctx context.Context, job *Job) (interface{}, error) {
		<-release
		return nil, nil
	})

	first, created, err := q.EnqueueOnce(JobTranscribe, "abc/base", TranscribeParams{VideoID: "abc", Model: "base"})
	require.NoError(t, err)
	assert.True(t, created)

	second, created, err := q.EnqueueOnce(JobTranscribe, "abc/base", TranscribeParams{VideoID: "abc", Model: "base"})
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, first.ID, second.ID)

	other, created, err := q.EnqueueOnce(JobTranscribe, "abc/small", TranscribeParams{VideoID: "abc", Model: "small"})
	require.NoError(t, err)
	assert.True(t, created)
	assert.NotEqual(t, first.ID, other.ID)

	close(release)
	waitForStatus(t, q, first.ID, StatusCompleted)

	active, err := q.FindActive(JobTranscribe, "abc/base")
	require.NoError(t, err)
	assert.Nil(t, active)

	third, created, err := q.EnqueueOnce(JobTranscribe, "abc/base", TranscribeParams{VideoID: "abc", Model: "base"})
	require.NoError(t, err)
	assert.True(t, created)
	assert.NotEqual(t, first.ID, third.ID)
}

func TestJobQueue_EnqueueOnceConcurrent(t *testing.T) {
	q := NewJobQueue(openDB(t), quietLogger())
	defer q.Stop()

	release := make(chan struct{})
	q.RegisterHandler(JobTranscribe, func(ctx context.Context, job *Job) (interface{}, error) {
		<-release
		return nil, nil
	})

	var wg sync.WaitGroup
	ids := make([]string, 8)
	for i := range ids {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			job, _, err := q.EnqueueOnce(JobTranscribe, "same", nil)
			if assert.NoError(t, err) {
				ids[i] = job.ID
			}
		}(i)
	}
	wg.Wait()
	close(release)

	for _, id := range ids {
		assert.Equal(t, ids[0], id)
	}
	require.NoError(t, q.Wait(context.Background()))
}

func TestJobQueue_GetJobNotFound(t *testing.T) {
	q := NewJobQueue(openDB(t), quietLogger())
	defer q.Stop()

	_, err := q.GetJob("missing")
	assert.True(t, errors.Is(err, errors.CodeNotFound))
}

func TestJobQueue_ListJobsNewestFirst(t *testing.T) {
	q := NewJobQueue(openDB(t), quietLogger())
	defer q.Stop()
	q.RegisterHandler(JobTranscribe, func(ctx context.Context, job *Job) (interface{}, error) {
		return nil, nil
	})

	jobs, err := q.ListJobs()
	require.NoError(t, err)
	assert.Empty(t, jobs)

	first, err := q.Enqueue(JobTranscribe, "a", nil)
	require.NoError(t, err)
	time.Sleep(5 * time.Millisecond)
	second, err := q.Enqueue(JobTranscribe, "b", nil)
	require.NoError(t, err)
	require.NoError(t, q.Wait(context.Background()))

	jobs, err = q.ListJobs()
	require.NoError(t, err)
	require.Len(t, jobs, 2)
	assert.Equal(t, second.ID, jobs[0].ID)
	assert.Equal(t, first.ID, jobs[1].ID)
}

func TestNewJobQueue_FailsInterruptedJobs(t *testing.T) {
	sqlDB := openDB(t)
	_, err := sqlDB.Exec(`INSERT INTO jobs (id, type, key, status, params, created_at) VALUES (?, ?, ?, ?, ?, ?)`,
		"stale", JobTranscribe, "abc/base", StatusRunning, "{}", time.Now())
	require.NoError(t, err)

	q := NewJobQueue(sqlDB, quietLogger())
	defer q.Stop()

	job, err := q.GetJob("stale")
	require.NoError(t, err)
	assert.Equal(t, StatusFailed, job.Status)
	assert.Equal(t, "interrupted by restart", job.Error)

	active, err := q.FindActive(JobTranscribe, "abc/base")
	require.NoError(t, err)
	assert.Nil(t, active)
}

func TestJobStatus_Active(t *testing.T) {
	assert.True(t, StatusPending.Active())
	assert.True(t, StatusRunning.Active())
	assert.False(t, StatusCompleted.Active())
	assert.False(t, StatusFailed.Active())
}
