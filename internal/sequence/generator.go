package sequence

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	apperrors "github.com/spec-kit/support-stream/pkg/errorutil"
)

// CounterStore issues the next value for a (prefix, year) counter under
// exclusive acquisition. Implementations must create the counter at zero on
// first use, survive the creation race (exactly one insert wins, the loser
// re-reads under lock), and make increment-then-persist atomic so numbers
// are never repeated or skipped.
type CounterStore interface {
	Increment(ctx context.Context, prefix string, year int) (int64, error)
}

const defaultLockTimeout = 5 * time.Second

// Generator mints PREFIX-YYYY-NNNN identifiers, unique and strictly
// increasing per (prefix, year) under concurrent callers.
type Generator struct {
	store       CounterStore
	lockTimeout time.Duration
	now         func() time.Time
	logger      *zap.Logger
}

// NewGenerator constructs a generator; a non-positive timeout falls back to
// the 5s default.
func NewGenerator(store CounterStore, lockTimeout time.Duration, logger *zap.Logger) *Generator {
	if lockTimeout <= 0 {
		lockTimeout = defaultLockTimeout
	}
	return &Generator{
		store:       store,
		lockTimeout: lockTimeout,
		now:         time.Now,
		logger:      logger,
	}
}

// Next issues the next number for the prefix in the current year. The wait
// for the counter lock is bounded; on timeout the caller gets an
// UNAVAILABLE error and may retry or proceed without a number.
func (g *Generator) Next(ctx context.Context, prefix string) (string, error) {
	prefix = strings.ToUpper(strings.TrimSpace(prefix))
	if len(prefix) < 3 {
		return "", apperrors.NewValidationError("sequence prefix must be at least 3 characters", nil)
	}

	year := g.now().Year()

	lockCtx, cancel := context.WithTimeout(ctx, g.lockTimeout)
	defer cancel()

	value, err := g.store.Increment(lockCtx, prefix, year)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			g.logger.Warn("sequence counter lock timed out",
				zap.String("prefix", prefix),
				zap.Int("year", year),
				zap.Duration("timeout", g.lockTimeout))
			return "", apperrors.NewUnavailable("sequence counter busy")
		}
		return "", err
	}

	return fmt.Sprintf("%s-%04d-%04d", prefix, year, value), nil
}
