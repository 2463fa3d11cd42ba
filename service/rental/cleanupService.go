package rental

import (
	"context"
	"log/slog"
	"time"

	"equiprental/util/clock"
)

type SweepRepo interface {
	MarkOverdue(ctx context.Context, now time.Time) (int64, error)
}

// Cleaner persists the Rented -> OverDue edge that reads already derive
// lazily, so stored statuses stay close to effective ones.
type Cleaner interface {
	MarkOverdue(ctx context.Context) (int64, error)
	Run(ctx context.Context, every time.Duration)
}

type cleaner struct {
	r   SweepRepo
	clk clock.Clock
	log *slog.Logger
}

func NewCleaner(r SweepRepo, clk clock.Clock, log *slog.Logger) Cleaner {
	return &cleaner{r: r, clk: clk, log: log}
}

func (c *cleaner) MarkOverdue(ctx context.Context) (int64, error) {
	return c.r.MarkOverdue(ctx, c.clk.Now())
}

// Run sweeps every tick until ctx is done.
func (c *cleaner) Run(ctx context.Context, every time.Duration) {
	ticker := time.NewTicker(every)
	defer ticker.Stop()

	c.log.Info("overdue sweep started", "every", every.String())
	for {
		select {
		case <-ctx.Done():
			c.log.Info("overdue sweep stopped")
			return
		case <-ticker.C:
			n, err := c.MarkOverdue(ctx)
			if err != nil {
				c.log.Error("overdue sweep", "err", err)
				continue
			}
			if n > 0 {
				c.log.Info("overdue sweep", "marked", n)
			}
		}
	}
}
