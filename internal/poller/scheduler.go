package poller

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime/debug"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/jpalmerr/votewatch/internal/metrics"
	"github.com/jpalmerr/votewatch/internal/store"
)

// ErrUnexpectedStatus is reported when the poll source answers with a
// non-2xx status code.
var ErrUnexpectedStatus = errors.New("unexpected status from poll source")

// Outcome is the result of one poll cycle.
type Outcome string

const (
	// OutcomeRecorded means a non-empty snapshot was handed to the recorder.
	OutcomeRecorded Outcome = metrics.OutcomeRecorded

	// OutcomeEmpty means the fetch succeeded but extraction yielded no votes.
	OutcomeEmpty Outcome = metrics.OutcomeEmpty

	// OutcomeFetchFailed means a transport error or non-2xx status.
	OutcomeFetchFailed Outcome = metrics.OutcomeFetchFailed
)

// Extractor turns a poll source response body into vote counts.
//
// Extractors must not fail on malformed input; they return an empty map
// instead. A panicking extractor is recovered and treated as empty.
type Extractor func(body []byte) map[string]int64

// Recorder receives every non-empty snapshot, in fetch order.
//
// Record is called synchronously from the poll loop; the next sleep starts
// only after it returns.
type Recorder interface {
	Record(ctx context.Context, s store.Snapshot)
}

// RecorderFunc adapts a function to [Recorder].
type RecorderFunc func(ctx context.Context, s store.Snapshot)

// Record calls f(ctx, s).
func (f RecorderFunc) Record(ctx context.Context, s store.Snapshot) {
	f(ctx, s)
}

// Source describes the poll source endpoint.
type Source struct {
	// URL is the endpoint polled on every cycle.
	URL string

	// Headers contains custom HTTP headers sent with every request.
	Headers map[string]string

	// Timeout bounds a single fetch. Zero means no timeout beyond the
	// scheduler's context.
	Timeout time.Duration
}

// Scheduler runs the poll loop for a single source.
//
// Each cycle fetches the source, extracts votes, and records a snapshot when
// the extraction is non-empty. The loop then sleeps for the interval, measured
// from the end of the cycle, and repeats until stopped.
//
// All lifecycle methods (Start, Stop) are safe for concurrent use.
type Scheduler struct {
	source    Source
	interval  time.Duration
	extractor Extractor
	recorder  Recorder
	client    *Client
	clock     clockwork.Clock
	logger    *slog.Logger

	mu        sync.Mutex
	started   bool
	stopped   bool
	cancel    context.CancelFunc
	wg        sync.WaitGroup
	lastCycle Outcome
}

// Option configures a [Scheduler].
type Option func(*Scheduler)

// WithClock replaces the clock used for sleeping and timestamps.
func WithClock(clock clockwork.Clock) Option {
	return func(s *Scheduler) {
		s.clock = clock
	}
}

// WithClient replaces the HTTP client used to fetch the source.
func WithClient(client *Client) Option {
	return func(s *Scheduler) {
		s.client = client
	}
}

// NewScheduler creates a new polling [Scheduler].
//
// Parameters:
//   - source: Endpoint to poll
//   - interval: Sleep between the end of one cycle and the next fetch
//   - extractor: Turns response bodies into vote counts
//   - recorder: Receives every non-empty snapshot
//   - logger: Logger for fetch failures and panics
//
// The scheduler must be started with [Scheduler.Start] and stopped with
// [Scheduler.Stop].
func NewScheduler(source Source, interval time.Duration, extractor Extractor, recorder Recorder, logger *slog.Logger, opts ...Option) *Scheduler {
	s := &Scheduler{
		source:    source,
		interval:  interval,
		extractor: extractor,
		recorder:  recorder,
		logger:    logger,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.client == nil {
		s.client = NewClient(0)
	}
	if s.clock == nil {
		s.clock = clockwork.NewRealClock()
	}
	return s
}

// Start begins the poll loop in a background goroutine.
//
// Start is non-blocking. The first cycle runs immediately; each following
// cycle runs one interval after the previous one finished. The loop continues
// until [Scheduler.Stop] is called or ctx is cancelled.
//
// If ctx is nil, context.Background() is used as the parent context.
// Start is idempotent, and a no-op after Stop.
func (s *Scheduler) Start(ctx context.Context) {
	s.mu.Lock()
	if s.started || s.stopped {
		s.mu.Unlock()
		return
	}
	s.started = true

	if ctx == nil {
		ctx = context.Background()
	}
	loopCtx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	s.wg.Add(1)
	s.mu.Unlock()

	s.logger.Info("polling started",
		"source_url", s.source.URL,
		"interval", s.interval.String(),
	)

	go func() {
		defer s.wg.Done()
		s.run(loopCtx)
	}()
}

// Stop halts the poll loop and waits for it to exit.
//
// An in-flight fetch is cancelled; a cycle already recording finishes its
// recording first. Stop is idempotent and safe to call before Start.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	if !s.stopped {
		s.stopped = true
		if s.cancel != nil {
			s.cancel()
		}
	}
	s.mu.Unlock()

	s.wg.Wait()
	s.client.Close()
}

// LastOutcome returns the outcome of the most recent completed cycle, or ""
// before the first one.
func (s *Scheduler) LastOutcome() Outcome {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastCycle
}

func (s *Scheduler) run(ctx context.Context) {
	for {
		s.PollOnce(ctx)

		timer := s.clock.NewTimer(s.interval)
		select {
		case <-ctx.Done():
			timer.Stop()
			return
		case <-timer.Chan():
		}
	}
}

// PollOnce runs a single fetch, extract, record cycle and reports its outcome.
//
// It never panics and never returns an error: every failure is logged and
// surfaces only as the outcome.
func (s *Scheduler) PollOnce(ctx context.Context) Outcome {
	outcome := s.cycle(ctx)

	metrics.PollCyclesTotal.WithLabelValues(string(outcome)).Inc()
	s.mu.Lock()
	s.lastCycle = outcome
	s.mu.Unlock()

	return outcome
}

func (s *Scheduler) cycle(ctx context.Context) Outcome {
	resp := s.client.Fetch(ctx, s.source.URL, s.source.Headers, s.source.Timeout)
	metrics.FetchDuration.Observe(resp.Latency.Seconds())

	if resp.Error != nil {
		if ctx.Err() != nil {
			// shutting down; not a source failure worth a warning
			s.logger.Debug("fetch cancelled", "source_url", s.source.URL)
			return OutcomeFetchFailed
		}
		s.logger.Warn("fetch failed",
			"source_url", s.source.URL,
			"latency_ms", resp.Latency.Milliseconds(),
			"error", resp.Error.Error(),
		)
		return OutcomeFetchFailed
	}

	if !resp.OK() {
		s.logger.Warn("fetch failed",
			"source_url", s.source.URL,
			"status_code", resp.StatusCode,
			"latency_ms", resp.Latency.Milliseconds(),
			"error", fmt.Errorf("%w: %d", ErrUnexpectedStatus, resp.StatusCode).Error(),
		)
		return OutcomeFetchFailed
	}

	s.logger.Debug("poll source response received",
		"source_url", s.source.URL,
		"status_code", resp.StatusCode,
		"latency_ms", resp.Latency.Milliseconds(),
		"bytes", len(resp.Body),
	)

	votes := s.safeExtract(resp.Body)
	if len(votes) == 0 {
		s.logger.Debug("extraction yielded no votes, snapshot discarded", "source_url", s.source.URL)
		return OutcomeEmpty
	}

	s.recorder.Record(ctx, store.NewSnapshot(s.clock.Now(), votes))
	return OutcomeRecorded
}

// safeExtract calls the extractor with panic recovery.
// A panic is logged with its stack and a correlation ID and yields no votes.
func (s *Scheduler) safeExtract(body []byte) (votes map[string]int64) {
	defer func() {
		if r := recover(); r != nil {
			correlationID := uuid.NewString()
			metrics.ExtractorPanicsTotal.Inc()
			s.logger.Error("extractor panic",
				"correlation_id", correlationID,
				"panic", fmt.Sprintf("%v", r),
				"stack", string(debug.Stack()),
			)
			votes = nil
		}
	}()
	return s.extractor(body)
}
