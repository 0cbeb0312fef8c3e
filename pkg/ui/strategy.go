package ui

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/devicelab-dev/shift-runner/pkg/logger"
)

// Strategy is one way of performing an action. Attempt tries strategies in
// order until one succeeds.
type Strategy struct {
	Name string
	Run  func(ctx context.Context) error
}

// Attempt runs strategies in order and returns nil on the first success.
// When all fail the errors are joined, each prefixed with its strategy name.
func Attempt(ctx context.Context, strategies ...Strategy) error {
	var errs []error
	for _, s := range strategies {
		if err := ctx.Err(); err != nil {
			errs = append(errs, err)
			break
		}
		err := s.Run(ctx)
		if err == nil {
			if len(errs) > 0 {
				logger.Info("%s succeeded after %d failed attempt(s)", s.Name, len(errs))
			}
			return nil
		}
		logger.Warn("%s failed: %v", s.Name, err)
		errs = append(errs, fmt.Errorf("%s: %w", s.Name, err))
	}
	return errors.Join(errs...)
}

// Pause sleeps for d or until ctx is done.
func Pause(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
