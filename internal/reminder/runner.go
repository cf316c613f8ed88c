package reminder

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/robfig/cron/v3"
)

// Runner keeps a Scanner running on a cron schedule for deployments without
// an external job scheduler. SkipIfStillRunning guarantees a slow sweep is
// never overlapped by the next tick.
type Runner struct {
	cron    *cron.Cron
	scanner *Scanner
	log     *zap.SugaredLogger
}

// NewRunner wires the scanner onto the given five-field cron schedule.
// The schedule must tick at least every 2x the scanner tolerance (2 hours at
// the defaults) or due windows can fall between sweeps.
func NewRunner(schedule string, scanner *Scanner, log *zap.SugaredLogger) (*Runner, error) {
	parser := cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow)
	c := cron.New(
		cron.WithParser(parser),
		cron.WithChain(cron.SkipIfStillRunning(cron.DefaultLogger)),
	)

	r := &Runner{cron: c, scanner: scanner, log: log}
	if _, err := c.AddFunc(schedule, r.sweep); err != nil {
		return nil, fmt.Errorf("register reminder schedule %q: %w", schedule, err)
	}
	return r, nil
}

// Start begins scheduling sweeps in the background.
func (r *Runner) Start() {
	r.cron.Start()
	r.log.Infow("reminder runner started")
}

// Stop halts scheduling and waits for an in-flight sweep to finish.
func (r *Runner) Stop() {
	ctx := r.cron.Stop()
	<-ctx.Done()
	r.log.Infow("reminder runner stopped")
}

func (r *Runner) sweep() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	count, err := r.scanner.RunOnce(ctx, time.Now().UTC())
	if err != nil {
		r.log.Errorw("reminder sweep failed", "sent_before_failure", count, "error", err)
		return
	}
	r.log.Infow("reminder sweep finished", "sent", count)
}
