// Package controller owns the request lifecycle of the weather widget: it
// derives the effective location query, issues at most one current request
// and makes sure superseded requests never touch the visible state.
package controller

import (
	"context"
	"errors"
	"log"
	"sync"

	"github.com/google/uuid"

	"github.com/i474232898/weather-widget/internal/weather"
)

// State is a read-only copy of the controller state.
type State struct {
	Place   string                 `json:"place"`
	Coords  *weather.Coordinates   `json:"coords,omitempty"`
	Query   *weather.LocationQuery `json:"query,omitempty"`
	Request weather.RequestState   `json:"request"`
	// Settled is the last success or failure. It survives a transition into
	// Loading so presentation layers can keep showing an error while loading.
	Settled weather.RequestState `json:"settled"`
	// GeolocationError is the display message of a failed startup lookup.
	GeolocationError string `json:"geolocationError,omitempty"`
	Token            uint64 `json:"token"`
	Version          uint64 `json:"version"`
}

type Option func(*Controller)

// WithLogger replaces the default logger.
func WithLogger(l *log.Logger) Option {
	return func(c *Controller) {
		c.logger = l
	}
}

// Controller is the single writer of the widget state.
type Controller struct {
	provider weather.Provider
	locator  weather.Locator
	logger   *log.Logger

	mu       sync.Mutex
	place    string
	coords   *weather.Coordinates
	query    *weather.LocationQuery
	request  weather.RequestState
	settled  weather.RequestState
	geoErr   error
	token    uint64 // incremented on every query change, used to discard stale outcomes
	version  uint64
	cancel   context.CancelFunc
	closed   bool
	nextSub  int
	subs     map[int]func(State)
	geoOnce  sync.Once
	baseCtx  context.Context
	stopBase context.CancelFunc
	wg       sync.WaitGroup
}

// New creates a Controller. locator may be nil when geolocation is disabled.
func New(provider weather.Provider, locator weather.Locator, opts ...Option) *Controller {
	ctx, stop := context.WithCancel(context.Background())
	c := &Controller{
		provider: provider,
		locator:  locator,
		logger:   log.Default(),
		request:  weather.Idle(),
		settled:  weather.Idle(),
		subs:     make(map[int]func(State)),
		baseCtx:  ctx,
		stopBase: stop,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Start requests the user's position once, asynchronously. Later calls are no-ops.
func (c *Controller) Start(ctx context.Context) {
	c.geoOnce.Do(func() {
		if c.locator == nil {
			c.geolocationFailed(weather.ErrGeolocationUnavailable)
			return
		}

		c.wg.Add(1)
		go func() {
			defer c.wg.Done()

			ctx, cancel := context.WithCancel(ctx)
			defer cancel()
			stop := context.AfterFunc(c.baseCtx, cancel)
			defer stop()

			coords, err := c.locator.Locate(ctx)
			if err != nil {
				if errors.Is(err, context.Canceled) {
					return
				}
				c.geolocationFailed(err)
				return
			}

			c.logger.Printf("INFO: controller: geolocation resolved via %s: %s", c.locator.Name(), coords)
			c.SetCoordinates(coords)
		}()
	})
}

// SetPlace records the user's place text and re-evaluates the effective query.
func (c *Controller) SetPlace(text string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if text == c.place {
		return
	}
	c.place = text
	if !c.applyLocked(c.effectiveLocked(), false) {
		c.publishLocked()
	}
}

// SetCoordinates records a position. Place text keeps precedence; the
// coordinates remain available as a fallback once it is cleared.
func (c *Controller) SetCoordinates(coords weather.Coordinates) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.coords = &coords
	if !c.applyLocked(c.effectiveLocked(), false) {
		c.publishLocked()
	}
}

// OnLocationQueryChange switches to q. A nil query moves the state to Idle.
// Any in-flight request for the previous query is cancelled first.
func (c *Controller) OnLocationQueryChange(q *weather.LocationQuery) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.applyLocked(q, false)
}

// Refresh re-issues the current effective query, if any.
func (c *Controller) Refresh() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.query == nil {
		return
	}
	q := *c.query
	c.applyLocked(&q, true)
}

// State returns a copy of the current state.
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.stateLocked()
}

// Subscribe registers fn to be called after every state change, in order.
// fn runs with the controller locked: it must not block or call back into
// the controller.
func (c *Controller) Subscribe(fn func(State)) (unsubscribe func()) {
	c.mu.Lock()
	id := c.subscribeLocked(fn)
	c.mu.Unlock()

	return func() {
		c.mu.Lock()
		delete(c.subs, id)
		c.mu.Unlock()
	}
}

// Updates returns a channel that always holds the newest state. Intermediate
// states may be skipped when the reader is slow. The channel is closed once
// ctx is done.
func (c *Controller) Updates(ctx context.Context) <-chan State {
	ch := make(chan State, 1)
	push := func(s State) {
		select {
		case <-ch:
		default:
		}
		select {
		case ch <- s:
		default:
		}
	}

	c.mu.Lock()
	id := c.subscribeLocked(push)
	push(c.stateLocked())
	c.mu.Unlock()

	go func() {
		<-ctx.Done()
		c.mu.Lock()
		delete(c.subs, id)
		c.mu.Unlock()
		close(ch)
	}()

	return ch
}

// Close cancels any in-flight request and waits for background work to finish.
func (c *Controller) Close() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	c.token++
	c.cancelLocked()
	c.mu.Unlock()

	c.stopBase()
	c.wg.Wait()
}

func (c *Controller) subscribeLocked(fn func(State)) int {
	id := c.nextSub
	c.nextSub++
	c.subs[id] = fn
	return id
}

func (c *Controller) effectiveLocked() *weather.LocationQuery {
	q, ok := weather.ResolveQuery(c.place, c.coords)
	if !ok {
		return nil
	}
	return &q
}

// applyLocked moves to query q. It reports whether a transition happened.
func (c *Controller) applyLocked(q *weather.LocationQuery, force bool) bool {
	if c.closed {
		return false
	}
	if !force && sameQuery(c.query, q) {
		return false
	}

	c.cancelLocked()
	c.token++

	if q == nil {
		c.query = nil
		c.request = weather.Idle()
		c.settled = weather.Idle()
		c.logger.Printf("DEBUG: controller: no effective query (token %d); idle", c.token)
		c.publishLocked()
		return true
	}

	query := *q
	c.query = &query
	c.request = weather.Loading()
	c.issueLocked(query, c.token)
	c.publishLocked()
	return true
}

func (c *Controller) issueLocked(q weather.LocationQuery, token uint64) {
	ctx, cancel := context.WithCancel(c.baseCtx)
	c.cancel = cancel

	reqID := uuid.NewString()
	c.logger.Printf("DEBUG: controller: request %s (token %d) to %s for %s", reqID, token, c.provider.Name(), q)

	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		defer cancel()

		snapshot, err := c.provider.Current(ctx, q)
		c.complete(token, reqID, snapshot, err)
	}()
}

func (c *Controller) complete(token uint64, reqID string, snapshot weather.WeatherSnapshot, err error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if token != c.token {
		c.logger.Printf("DEBUG: controller: discarding superseded request %s (token %d, current %d)", reqID, token, c.token)
		return
	}
	if errors.Is(err, context.Canceled) {
		return
	}
	c.cancel = nil

	if err != nil {
		c.logger.Printf("INFO: controller: request %s failed: %v", reqID, err)
		c.request = weather.Failed(weather.DisplayMessage(err))
	} else {
		c.request = weather.Succeeded(snapshot)
	}
	c.settled = c.request
	c.publishLocked()
}

func (c *Controller) geolocationFailed(err error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.logger.Printf("ERROR: controller: geolocation failed: %v", err)
	c.geoErr = err
	if c.closed {
		return
	}
	// An active query keeps running; the error is shown next to its loading
	// line until the query settles, and replaces an already settled result.
	failed := weather.Failed(weather.DisplayMessage(err))
	c.settled = failed
	if c.query == nil || c.request.Settled() {
		c.request = failed
	}
	c.publishLocked()
}

// cancelLocked is idempotent and safe after the request completed.
func (c *Controller) cancelLocked() {
	if c.cancel != nil {
		c.cancel()
		c.cancel = nil
	}
}

func (c *Controller) publishLocked() {
	c.version++
	s := c.stateLocked()
	for _, fn := range c.subs {
		fn(s)
	}
}

func (c *Controller) stateLocked() State {
	s := State{
		Place:   c.place,
		Request: c.request,
		Settled: c.settled,
		Token:   c.token,
		Version: c.version,
	}
	if c.coords != nil {
		coords := *c.coords
		s.Coords = &coords
	}
	if c.query != nil {
		q := *c.query
		s.Query = &q
	}
	if c.geoErr != nil {
		s.GeolocationError = weather.DisplayMessage(c.geoErr)
	}
	return s
}

func sameQuery(a, b *weather.LocationQuery) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}
