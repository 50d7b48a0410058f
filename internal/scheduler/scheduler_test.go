package scheduler

import (
	"bytes"
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/aristath/trailstop/internal/modules/ledger"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type countingJob struct {
	runs atomic.Int32
	err  error
}

func (j *countingJob) Run() error {
	j.runs.Add(1)
	return j.err
}

func (j *countingJob) Name() string { return "counting" }

func TestScheduler_AddJobRejectsBadSchedule(t *testing.T) {
	s := New(zerolog.Nop())
	assert.Error(t, s.AddJob("not a schedule", &countingJob{}))
	assert.NoError(t, s.AddJob("@hourly", &countingJob{}))
	assert.NoError(t, s.AddJob("0 0 * * * *", &countingJob{}))
}

func TestScheduler_RunsJobs(t *testing.T) {
	s := New(zerolog.Nop())
	job := &countingJob{err: errors.New("ignored")}
	require.NoError(t, s.AddJob("@every 1s", job))

	s.Start()
	defer s.Stop()

	assert.Eventually(t, func() bool { return job.runs.Load() >= 1 }, 3*time.Second, 50*time.Millisecond)
}

func TestScheduler_RunNow(t *testing.T) {
	s := New(zerolog.Nop())
	job := &countingJob{err: errors.New("boom")}

	assert.EqualError(t, s.RunNow(job), "boom")
	assert.Equal(t, int32(1), job.runs.Load())
}

type mockSummarizer struct {
	mock.Mock
}

func (m *mockSummarizer) Summary(ctx context.Context, since time.Time) (*ledger.Summary, error) {
	args := m.Called(ctx, since)
	if s := args.Get(0); s != nil {
		return s.(*ledger.Summary), args.Error(1)
	}
	return nil, args.Error(1)
}

func TestLedgerSummaryJob_Run(t *testing.T) {
	now := time.Date(2026, 7, 1, 12, 0, 0, 0, time.UTC)
	summarizer := &mockSummarizer{}
	summarizer.On("Summary", mock.Anything, now.Add(-time.Hour)).
		Return(&ledger.Summary{Executed: 2, Failed: 1, Currencies: []string{"BTC", "ETH"}}, nil)

	var buf bytes.Buffer
	job := NewLedgerSummaryJob(summarizer, 0, zerolog.New(&buf))
	job.now = func() time.Time { return now }

	assert.Equal(t, "ledger_summary", job.Name())
	require.NoError(t, job.Run())
	summarizer.AssertExpectations(t)

	assert.Contains(t, buf.String(), `"level":"warn"`)
	assert.Contains(t, buf.String(), `"executed":2`)
	assert.Contains(t, buf.String(), `"currencies":["BTC","ETH"]`)
}

func TestLedgerSummaryJob_Error(t *testing.T) {
	summarizer := &mockSummarizer{}
	summarizer.On("Summary", mock.Anything, mock.Anything).Return(nil, errors.New("db locked"))

	job := NewLedgerSummaryJob(summarizer, time.Hour, zerolog.Nop())
	err := job.Run()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "db locked")
}
