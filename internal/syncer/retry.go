package syncer

import (
	"context"
	"errors"
	"time"

	"github.com/vbonduro/shopsync/internal/domain"
)

// RetryPolicy bounds how often a failed run is repeated. The delay before
// attempt n+1 is BaseDelay * 2^(n-1).
type RetryPolicy struct {
	Attempts  int
	BaseDelay time.Duration
}

func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{Attempts: 3, BaseDelay: time.Second}
}

// permanent errors are not worth another attempt within the same run.
func permanent(err error) bool {
	return errors.Is(err, domain.ErrDeviceNotConfigured) ||
		errors.Is(err, domain.ErrServerFault) ||
		errors.Is(err, context.Canceled)
}

// RunWithRetry repeats RunOnce with exponential backoff. After the last
// attempt the error is returned and affected records stay failed or pending
// for the next scheduled run.
func (s *Synchronizer) RunWithRetry(ctx context.Context) (*Result, error) {
	attempts := max(s.retry.Attempts, 1)
	delay := s.retry.BaseDelay

	var err error
	for attempt := 1; attempt <= attempts; attempt++ {
		var res *Result
		res, err = s.RunOnce(ctx)
		if err == nil {
			res.Attempts = attempt
			return res, nil
		}
		if permanent(err) || attempt == attempts {
			break
		}

		s.logger.Warn("sync attempt failed", "attempt", attempt, "retry_in", delay.String(), "error", err)
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(delay):
		}
		delay *= 2
	}

	s.logger.Error("sync gave up", "error", err)
	return nil, err
}
