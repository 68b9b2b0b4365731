package core

import (
	"context"
	"log/slog"
	"time"

	"farmchain/observability"
)

// Clock seals a block on every tick.
type Clock struct {
	node     *Node
	interval time.Duration
	logger   *slog.Logger
}

// NewClock returns a clock sealing a block on node every interval.
func NewClock(node *Node, interval time.Duration, logger *slog.Logger) *Clock {
	if logger == nil {
		logger = slog.Default()
	}
	return &Clock{node: node, interval: interval, logger: logger}
}

// Run produces blocks until ctx is cancelled.
func (c *Clock) Run(ctx context.Context) error {
	if c.interval <= 0 {
		<-ctx.Done()
		return ctx.Err()
	}
	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()
	last := time.Now()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case tick := <-ticker.C:
			head, err := c.node.Mine(1)
			if err != nil {
				c.logger.Error("block production failed", slog.Any("error", err))
				continue
			}
			observability.Chain().RecordBlockInterval(tick.Sub(last))
			last = tick
			c.logger.Debug("sealed block", slog.Uint64("height", head.Height), slog.Uint64("time", head.Time))
		}
	}
}
