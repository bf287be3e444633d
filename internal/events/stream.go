package events

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/starford/commitquest/internal/apperr"
	"github.com/starford/commitquest/internal/metrics"
)

var errStreamClosed = errors.New("events: stream closed by server")

// Opener opens the upstream event stream body.
type Opener interface {
	OpenStream(ctx context.Context) (io.ReadCloser, error)
}

// Stream holds one long-lived connection to the upstream event stream and
// reconnects with exponential backoff.
type Stream struct {
	open       Opener
	maxBackoff time.Duration
	logger     *slog.Logger
}

// NewStream creates a Stream. maxBackoff caps the reconnect delay.
func NewStream(open Opener, maxBackoff time.Duration, logger *slog.Logger) *Stream {
	if maxBackoff <= 0 {
		maxBackoff = 30 * time.Second
	}
	return &Stream{open: open, maxBackoff: maxBackoff, logger: logger}
}

func (s *Stream) newBackOff() *backoff.ExponentialBackOff {
	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = 500 * time.Millisecond
	bo.MaxInterval = s.maxBackoff
	bo.MaxElapsedTime = 0
	return bo
}

// Run delivers decoded events to out until ctx is cancelled, which returns
// nil. An unauthorized response stops the stream with an error. The backoff
// resets each time the server sends its connected hello.
func (s *Stream) Run(ctx context.Context, out chan<- Event) error {
	bo := s.newBackOff()

	op := func() error {
		body, err := s.open.OpenStream(ctx)
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, apperr.ErrUnauthorized) {
				return backoff.Permanent(err)
			}
			return err
		}
		defer body.Close()

		dec := NewDecoder(body)
		for {
			f, err := dec.Next()
			if err != nil {
				if ctx.Err() != nil {
					return backoff.Permanent(ctx.Err())
				}
				if errors.Is(err, io.EOF) {
					return errStreamClosed
				}
				return err
			}

			ev, err := Decode(f)
			if err != nil {
				s.logger.Warn("events: bad frame", slog.String("type", f.Type), slog.String("error", err.Error()))
				continue
			}
			metrics.UpstreamEvents.WithLabelValues(f.Type).Inc()
			if _, ok := ev.(Connected); ok {
				bo.Reset()
				s.logger.Info("events: connected")
			}

			select {
			case out <- ev:
			case <-ctx.Done():
				return backoff.Permanent(ctx.Err())
			}
		}
	}

	notify := func(err error, wait time.Duration) {
		s.logger.Warn("events: reconnecting",
			slog.String("error", err.Error()),
			slog.Duration("wait", wait))
	}

	err := backoff.RetryNotify(op, backoff.WithContext(bo, ctx), notify)
	if ctx.Err() != nil {
		return nil
	}
	return err
}
