package liveview

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/livequestions/ama-api/internal/core/domain"
	"github.com/livequestions/ama-api/internal/core/ports"
	"github.com/livequestions/ama-api/internal/pkg/metrics"
)

const defaultRefreshInterval = 5 * time.Second

// Lister is the read side of the question store Sync needs.
type Lister interface {
	List(ctx context.Context) ([]domain.Question, error)
}

// Sync reconciles a View with the question store. A single goroutine
// serialises periodic snapshots and change-feed events; the feed is optional
// and, when it drops, the periodic refresh bounds staleness until the next
// tick resubscribes.
type Sync struct {
	store    Lister
	feed     ports.ChangeFeed
	view     *View
	interval time.Duration
	log      zerolog.Logger

	cancel context.CancelFunc
	done   chan struct{}
}

// NewSync returns a Sync for view. feed may be nil, in which case only the
// periodic refresh runs. A non-positive interval uses the default.
func NewSync(store Lister, feed ports.ChangeFeed, view *View, interval time.Duration, log zerolog.Logger) *Sync {
	if interval <= 0 {
		interval = defaultRefreshInterval
	}
	return &Sync{
		store:    store,
		feed:     feed,
		view:     view,
		interval: interval,
		log:      log,
	}
}

// Start performs the initial full fetch, subscribes to the change feed and
// launches the reconcile loop. The loop runs until Stop or until ctx ends.
func (s *Sync) Start(ctx context.Context) error {
	if err := s.Refresh(ctx); err != nil {
		return fmt.Errorf("live view start: %w", err)
	}

	runCtx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	s.done = make(chan struct{})

	events, unsubscribe := s.subscribe(runCtx)
	go s.run(runCtx, events, unsubscribe)
	return nil
}

// Stop ends the loop and unsubscribes from the feed. It blocks until the
// loop goroutine has exited.
func (s *Sync) Stop() {
	if s.cancel == nil {
		return
	}
	s.cancel()
	<-s.done
}

// Refresh re-fetches every question and installs the snapshot in the view.
func (s *Sync) Refresh(ctx context.Context) error {
	since := s.view.Version()
	rows, err := s.store.List(ctx)
	if err != nil {
		metrics.ViewRefreshTotal.WithLabelValues("error").Inc()
		return fmt.Errorf("refresh: %w", err)
	}

	if !s.view.Replace(rows, since) {
		metrics.ViewRefreshTotal.WithLabelValues("discarded").Inc()
		s.log.Debug().Msg("snapshot predates a local delete-all, discarded")
		return nil
	}
	metrics.ViewRefreshTotal.WithLabelValues("ok").Inc()
	metrics.ViewQuestions.Set(float64(s.view.Len()))
	return nil
}

func (s *Sync) subscribe(ctx context.Context) (<-chan domain.ChangeEvent, func()) {
	if s.feed == nil {
		return nil, func() {}
	}
	events, unsubscribe, err := s.feed.Subscribe(ctx)
	if err != nil {
		s.log.Warn().Err(err).Msg("change feed subscribe failed, relying on periodic refresh")
		return nil, func() {}
	}
	metrics.FeedConnected.Set(1)
	s.log.Info().Msg("change feed subscribed")
	return events, unsubscribe
}

func (s *Sync) run(ctx context.Context, events <-chan domain.ChangeEvent, unsubscribe func()) {
	defer close(s.done)
	defer func() { unsubscribe() }()

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.tick(ctx)
			if events == nil && s.feed != nil {
				events, unsubscribe = s.subscribe(ctx)
			}
		case ev, ok := <-events:
			if !ok {
				metrics.FeedConnected.Set(0)
				s.log.Warn().Msg("change feed disconnected, will resubscribe on next refresh")
				unsubscribe()
				events, unsubscribe = nil, func() {}
				continue
			}
			s.handle(ctx, ev)
		}
	}
}

func (s *Sync) tick(ctx context.Context) {
	refreshCtx, cancel := context.WithTimeout(ctx, s.interval)
	defer cancel()

	if err := s.Refresh(refreshCtx); err != nil {
		s.log.Warn().Err(err).Msg("periodic refresh failed, keeping last known view")
	}
}

// handle applies one feed event incrementally, falling back to a full
// re-fetch for events the view cannot interpret.
func (s *Sync) handle(ctx context.Context, ev domain.ChangeEvent) {
	metrics.FeedEventsTotal.WithLabelValues(string(ev.Kind)).Inc()

	if !s.view.Ingest(ev) {
		return
	}
	s.log.Debug().Str("kind", string(ev.Kind)).Str("id", ev.ID).Msg("uninterpretable change event, refreshing")
	s.tick(ctx)
}
