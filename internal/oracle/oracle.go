package oracle

import (
	"context"
	"errors"
	"fmt"

	"github.com/engage-agent/pkg/logger"
)

// ErrUnavailable means every transport failed. Callers treat this as
// "oracle unavailable" and fall back gracefully, never as a fatal
// pipeline error.
var ErrUnavailable = errors.New("oracle unavailable")

// IsUnavailable reports whether an error means the oracle could not be
// reached at all
func IsUnavailable(err error) bool {
	return errors.Is(err, ErrUnavailable)
}

// Transport is one way to reach the AI oracle
type Transport interface {
	// Name identifies the transport in logs
	Name() string

	// TryRun sends the prompt and returns the raw response text
	TryRun(ctx context.Context, prompt string) (string, error)
}

// Oracle runs a prompt through an ordered transport chain and uses the
// first success.
type Oracle struct {
	transports []Transport
	log        *logger.Logger
}

// New creates an oracle over the given transports, tried in order
func New(log *logger.Logger, transports ...Transport) *Oracle {
	return &Oracle{
		transports: transports,
		log:        log.WithComponent("oracle"),
	}
}

// Run sends the prompt to each transport in order and returns the first
// successful response. When all transports fail the error wraps
// ErrUnavailable.
func (o *Oracle) Run(ctx context.Context, prompt string) (string, error) {
	if len(o.transports) == 0 {
		return "", fmt.Errorf("no transports configured: %w", ErrUnavailable)
	}

	var lastErr error
	for _, t := range o.transports {
		response, err := t.TryRun(ctx, prompt)
		if err == nil {
			return response, nil
		}
		lastErr = err
		o.log.Warn().
			Err(err).
			Str("transport", t.Name()).
			Msg("Oracle transport failed, trying next")
	}

	return "", fmt.Errorf("all transports failed (last: %v): %w", lastErr, ErrUnavailable)
}
