package client

import (
	"context"
	"errors"
	"io"
	"iter"

	"github.com/diogo/perplexity-web-api-go/internal/metrics"
	"github.com/diogo/perplexity-web-api-go/pkg/models"
	"github.com/diogo/perplexity-web-api-go/pkg/sse"
	"go.uber.org/zap"
)

// Stream is a live sequence of events for one query. It is owned by a
// single consumer and must be closed.
type Stream struct {
	body   io.ReadCloser
	reader *sse.Reader
	cancel context.CancelFunc
	mode   models.Mode
	log    *zap.Logger

	events int
	done   bool
	err    error
}

func newStream(body io.ReadCloser, cancel context.CancelFunc, mode models.Mode, log *zap.Logger) *Stream {
	return &Stream{
		body:   body,
		reader: sse.NewReader(body),
		cancel: cancel,
		mode:   mode,
		log:    log,
	}
}

// Next returns the next event, or io.EOF once the stream ended.
//
// A frame that is not valid UTF-8 (sse.ErrInvalidUTF8) or not a JSON
// object (ErrMalformedPayload) is reported without ending the stream.
// Read failures end it.
func (s *Stream) Next() (*models.SearchEvent, error) {
	if s.done {
		if s.err != nil {
			return nil, s.err
		}
		return nil, io.EOF
	}

	frame, err := s.reader.ReadFrame()
	switch {
	case err == nil:
	case errors.Is(err, io.EOF):
		s.finish(nil)
		return nil, io.EOF
	case errors.Is(err, sse.ErrInvalidUTF8):
		metrics.FramesTotal.WithLabelValues("invalid").Inc()
		return nil, err
	default:
		err = &LegError{Leg: LegQuery, Err: err}
		s.finish(err)
		return nil, err
	}

	event, err := DecodeEvent([]byte(frame.Data))
	if err != nil {
		metrics.FramesTotal.WithLabelValues("malformed").Inc()
		return nil, err
	}

	metrics.FramesTotal.WithLabelValues("event").Inc()
	s.events++
	return event, nil
}

// All iterates over the remaining events. Breaking out of the loop closes
// the stream.
func (s *Stream) All() iter.Seq2[*models.SearchEvent, error] {
	return func(yield func(*models.SearchEvent, error) bool) {
		defer s.Close()
		for {
			event, err := s.Next()
			if errors.Is(err, io.EOF) {
				return
			}
			if !yield(event, err) {
				return
			}
			if s.done {
				return
			}
		}
	}
}

// Events returns the number of events decoded so far.
func (s *Stream) Events() int {
	return s.events
}

// Close cancels the request and releases the response body. Buffered
// bytes are dropped. It is safe to call more than once.
func (s *Stream) Close() error {
	s.finish(nil)
	return nil
}

func (s *Stream) finish(err error) {
	if s.body == nil {
		return
	}
	s.done = true
	s.err = err
	s.cancel()
	_ = s.body.Close()
	s.body = nil

	metrics.RequestsTotal.WithLabelValues(string(s.mode), metrics.Status(err)).Inc()
	if err != nil {
		s.log.Warn("answer stream failed", zap.Int("events", s.events), zap.Error(err))
		return
	}
	s.log.Debug("answer stream closed", zap.Int("events", s.events))
}
