package segment

import (
	"errors"
	"fmt"
	"log/slog"
)

// ErrInvalidIncrement is returned for a progress increment below 1.
var ErrInvalidIncrement = errors.New("progress increment must be a positive integer")

// Reporter logs a status line every N original caption indices.
type Reporter struct {
	every  int
	logger *slog.Logger
}

// NewReporter creates a Reporter for increment n.
func NewReporter(n int, logger *slog.Logger) (*Reporter, error) {
	if n <= 0 {
		return nil, fmt.Errorf("%w: got %d", ErrInvalidIncrement, n)
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Reporter{every: n, logger: logger}, nil
}

// Tick logs a status line if index is a multiple of the increment and
// reports whether it did.
func (r *Reporter) Tick(index int) bool {
	if index%r.every != 0 {
		return false
	}
	r.logger.Info("processing segment", slog.Int("segment", index))
	return true
}
