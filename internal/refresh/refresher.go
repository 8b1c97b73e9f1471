// Package refresh runs the fetch cycle: read the captured credentials, fetch
// today's figures from the portal, and keep the last good snapshot.
package refresh

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"hrclock/internal/credstore"
	"hrclock/internal/hrportal"
	"hrclock/internal/worktime"
)

// ErrInFlight is returned by Refresh when another cycle is still running.
// The trigger is dropped, not queued.
var ErrInFlight = errors.New("refresh already in flight")

// CredentialSource is the read side of the credential store.
type CredentialSource interface {
	Load(ctx context.Context) (credstore.Credentials, error)
}

// Fetcher fetches one snapshot from the portal.
type Fetcher interface {
	FetchSnapshot(ctx context.Context, sourceURL, authorization string, now time.Time) (worktime.Snapshot, error)
}

// State is what renderers read between cycles.
type State struct {
	Snapshot    worktime.Snapshot
	Loading     bool
	LastError   error
	LastSuccess time.Time
	TokenExpiry time.Time
}

// HasData reports whether any cycle has filled a slot yet.
func (s State) HasData() bool {
	return s.Snapshot.HasWorked || s.Snapshot.HasBreak
}

// Option configures a Refresher.
type Option func(*Refresher)

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(r *Refresher) { r.now = now }
}

// WithOnUpdate registers fn to run after every state change. fn must not
// call Refresh.
func WithOnUpdate(fn func(State)) Option {
	return func(r *Refresher) { r.onUpdate = fn }
}

// Refresher owns the displayed state and the in-flight guard.
type Refresher struct {
	source   CredentialSource
	fetcher  Fetcher
	logger   *zap.Logger
	now      func() time.Time
	onUpdate func(State)

	inFlight atomic.Bool
	mu       sync.RWMutex
	state    State
}

// New creates a Refresher.
func New(source CredentialSource, fetcher Fetcher, logger *zap.Logger, opts ...Option) *Refresher {
	if logger == nil {
		logger = zap.NewNop()
	}
	r := &Refresher{
		source:  source,
		fetcher: fetcher,
		logger:  logger,
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// State returns a copy of the current state.
func (r *Refresher) State() State {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.state
}

// Refresh runs one cycle. A call while a cycle is running returns ErrInFlight
// at once. On failure the previous snapshot stays in place and the error is
// both logged and returned.
func (r *Refresher) Refresh(ctx context.Context) error {
	if !r.inFlight.CompareAndSwap(false, true) {
		r.logger.Info("refresh requested while one is in flight; ignoring")
		recordCycle(outcomeSkipped)
		return ErrInFlight
	}
	defer r.inFlight.Store(false)

	log := r.logger.With(zap.String("cycle", uuid.NewString()))
	r.update(func(s *State) { s.Loading = true })

	creds, err := r.source.Load(ctx)
	if err != nil {
		log.Warn("no usable credentials; skipping fetch", zap.Error(err))
		recordCycle(outcomeAborted)
		r.update(func(s *State) { s.Loading, s.LastError = false, err })
		return err
	}
	if _, err := hrportal.EmployeeID(creds.APIURL); err != nil {
		log.Warn("captured URL has no employee id; skipping fetch", zap.String("url", creds.APIURL))
		recordCycle(outcomeAborted)
		r.update(func(s *State) { s.Loading, s.LastError = false, err })
		return err
	}

	now := r.now()
	expiry := r.inspectToken(log, creds.APIHeaders, now)

	log.Debug("fetching", zap.String("url", creds.APIURL))
	snap, err := r.fetcher.FetchSnapshot(ctx, creds.APIURL, creds.APIHeaders, now)
	if err != nil {
		log.Error("error fetching data", zap.Error(err))
		recordCycle(outcomeFailure)
		r.update(func(s *State) {
			s.Loading, s.LastError = false, err
			s.TokenExpiry = expiry
		})
		return err
	}

	recordCycle(outcomeSuccess)
	recordSuccess(now)
	r.update(func(s *State) {
		s.Snapshot = snap.Merge(s.Snapshot)
		s.Loading, s.LastError = false, nil
		s.LastSuccess = now
		s.TokenExpiry = expiry
	})
	log.Info("refreshed",
		zap.Bool("worked", snap.HasWorked),
		zap.Bool("break", snap.HasBreak))
	return nil
}

func (r *Refresher) inspectToken(log *zap.Logger, authorization string, now time.Time) time.Time {
	expiry, err := hrportal.TokenExpiry(authorization)
	if err != nil {
		log.Debug("token carries no readable expiry", zap.Error(err))
		return time.Time{}
	}
	recordTokenExpiry(expiry)
	if expiry.Before(now) {
		log.Warn("captured token has expired; open the portal to capture a new one", zap.Time("expiry", expiry))
	}
	return expiry
}

func (r *Refresher) update(fn func(*State)) {
	r.mu.Lock()
	fn(&r.state)
	s := r.state
	r.mu.Unlock()

	if r.onUpdate != nil {
		r.onUpdate(s)
	}
}
