package orchestrator

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/felixgeelhaar/brewprobe/internal/log"
	"github.com/felixgeelhaar/brewprobe/internal/report"
)

// DefaultCleanupTimeout bounds teardown after the run context is gone
const DefaultCleanupTimeout = 5 * time.Minute

// Cleaner removes whatever a run installed
type Cleaner func(ctx context.Context) error

// Guarantor runs a Cleaner at most once, detached from run cancellation.
// Failures are logged and reported as a status, never returned.
type Guarantor struct {
	clean   Cleaner
	timeout time.Duration
	logger  *log.Logger

	once   sync.Once
	status report.CleanupStatus
}

// NewGuarantor wraps clean. A zero timeout uses DefaultCleanupTimeout.
func NewGuarantor(clean Cleaner, timeout time.Duration, logger *log.Logger) *Guarantor {
	if timeout <= 0 {
		timeout = DefaultCleanupTimeout
	}
	return &Guarantor{clean: clean, timeout: timeout, logger: log.OrDefault(logger)}
}

// Run executes the cleaner on the first call and returns its status on every call
func (g *Guarantor) Run(ctx context.Context) report.CleanupStatus {
	g.once.Do(func() {
		g.status = g.run(ctx)
	})
	return g.status
}

func (g *Guarantor) run(ctx context.Context) (status report.CleanupStatus) {
	status.Attempted = true
	if g.clean == nil {
		status.OK = true
		return status
	}

	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), g.timeout)
	defer cancel()

	defer func() {
		if r := recover(); r != nil {
			status.OK = false
			status.Detail = fmt.Sprintf("panic: %v", r)
			g.logger.Error("cleanup panicked", "panic", r)
		}
	}()

	if err := g.clean(ctx); err != nil {
		g.logger.WithError(err).Warn("cleanup failed")
		status.Detail = err.Error()
		return status
	}

	status.OK = true
	return status
}
