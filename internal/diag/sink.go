// Package diag delivers engine diagnostic events to the log without ever
// blocking the request path.
package diag

import (
	"context"
	"log/slog"
	"sync"

	"https-redirect/internal/engine"
	"https-redirect/internal/metrics"
)

// DefaultBufferSize is used when the configured event buffer is not positive.
const DefaultBufferSize = 1024

type event struct {
	msg   string
	attrs []slog.Attr
}

// Sink implements engine.Recorder. Events are queued on a bounded channel
// and written by a single goroutine; when the queue is full the event is
// dropped and counted.
type Sink struct {
	events  chan event
	quit    chan struct{}
	done    chan struct{}
	logger  *slog.Logger
	metrics *metrics.Metrics

	startOnce sync.Once
	stopOnce  sync.Once
}

var _ engine.Recorder = (*Sink)(nil)

// NewSink creates a Sink with the given buffer size.
// The metrics parameter is optional; pass nil to disable event counters.
func NewSink(logger *slog.Logger, m *metrics.Metrics, size int) *Sink {
	if size <= 0 {
		size = DefaultBufferSize
	}
	return &Sink{
		events:  make(chan event, size),
		quit:    make(chan struct{}),
		done:    make(chan struct{}),
		logger:  logger.With("component", "diag"),
		metrics: m,
	}
}

// Start launches the writer goroutine. Calling it more than once is a no-op.
func (s *Sink) Start() {
	s.startOnce.Do(func() { go s.run() })
}

// Stop flushes queued events and stops the writer. Events recorded after
// Stop stay in the buffer or are dropped.
func (s *Sink) Stop() {
	s.stopOnce.Do(func() {
		close(s.quit)
	})
	s.startOnce.Do(func() { close(s.done) })
	<-s.done
}

func (s *Sink) run() {
	defer close(s.done)
	for {
		select {
		case ev := <-s.events:
			s.write(ev)
		case <-s.quit:
			for {
				select {
				case ev := <-s.events:
					s.write(ev)
				default:
					return
				}
			}
		}
	}
}

func (s *Sink) write(ev event) {
	s.logger.LogAttrs(context.Background(), slog.LevelInfo, ev.msg, ev.attrs...)
}

func (s *Sink) emit(ev event) {
	select {
	case s.events <- ev:
	default:
		if s.metrics != nil {
			s.metrics.DiagDroppedTotal.Inc()
		}
	}
}

// ExemptionMatched records that uri bypassed redirection via pattern.
func (s *Sink) ExemptionMatched(pattern, uri string) {
	if s.metrics != nil {
		s.metrics.ExemptionsTotal.WithLabelValues(pattern).Inc()
	}
	s.emit(event{
		msg:   "exemption matched",
		attrs: []slog.Attr{slog.String("pattern", pattern), slog.String("uri", uri)},
	})
}

// RedirectIssued records a redirect decision.
func (s *Sink) RedirectIssued(location string, statusCode int) {
	s.emit(event{
		msg:   "redirect issued",
		attrs: []slog.Attr{slog.String("location", location), slog.Int("status", statusCode)},
	})
}

// MalformedHost records a Host header passed through unmodified because its
// IPv6 literal has no closing bracket.
func (s *Sink) MalformedHost(host string) {
	if s.metrics != nil {
		s.metrics.MalformedHostsTotal.Inc()
	}
	s.emit(event{
		msg:   "malformed host header",
		attrs: []slog.Attr{slog.String("host", host)},
	})
}
