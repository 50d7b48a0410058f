package scheduler

import (
	"context"
	"fmt"
	"time"

	"github.com/aristath/trailstop/internal/modules/ledger"
	"github.com/rs/zerolog"
)

// LedgerSummarizer aggregates recorded liquidations
type LedgerSummarizer interface {
	Summary(ctx context.Context, since time.Time) (*ledger.Summary, error)
}

// LedgerSummaryJob logs how many liquidations happened during the last window
type LedgerSummaryJob struct {
	ledger LedgerSummarizer
	window time.Duration
	now    func() time.Time
	log    zerolog.Logger
}

// NewLedgerSummaryJob creates a new LedgerSummaryJob
func NewLedgerSummaryJob(summarizer LedgerSummarizer, window time.Duration, log zerolog.Logger) *LedgerSummaryJob {
	if window <= 0 {
		window = time.Hour
	}
	return &LedgerSummaryJob{
		ledger: summarizer,
		window: window,
		now:    time.Now,
		log:    log.With().Str("job", "ledger_summary").Logger(),
	}
}

// Name returns the job name
func (j *LedgerSummaryJob) Name() string {
	return "ledger_summary"
}

// Run executes the ledger summary job
func (j *LedgerSummaryJob) Run() error {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	summary, err := j.ledger.Summary(ctx, j.now().Add(-j.window))
	if err != nil {
		return fmt.Errorf("failed to summarize ledger: %w", err)
	}

	event := j.log.Info()
	if summary.Failed > 0 {
		event = j.log.Warn()
	}
	event.
		Dur("window", j.window).
		Int("executed", summary.Executed).
		Int("failed", summary.Failed).
		Strs("currencies", summary.Currencies).
		Msg("Liquidation summary")

	return nil
}
