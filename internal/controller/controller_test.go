package controller

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"sync"
	"testing"
	"time"

	"github.com/brianvoe/gofakeit/v6"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/i474232898/weather-widget/internal/weather"
)

type result struct {
	snapshot weather.WeatherSnapshot
	err      error
}

// call is one pending request seen by fakeProvider.
type call struct {
	query weather.LocationQuery
	ctx   context.Context
	reply chan result
}

func (c *call) succeed(s weather.WeatherSnapshot) { c.reply <- result{snapshot: s} }
func (c *call) fail(err error)                    { c.reply <- result{err: err} }

// fakeProvider hands every request to the test through calls. With
// ignoreCancel set it keeps waiting for a reply after its context is
// cancelled, which simulates a response racing a newer query.
type fakeProvider struct {
	calls        chan *call
	ignoreCancel bool
}

func newFakeProvider() *fakeProvider {
	return &fakeProvider{calls: make(chan *call, 16)}
}

func (f *fakeProvider) Name() string { return "fake" }

func (f *fakeProvider) Current(ctx context.Context, q weather.LocationQuery) (weather.WeatherSnapshot, error) {
	c := &call{query: q, ctx: ctx, reply: make(chan result, 1)}
	f.calls <- c
	if f.ignoreCancel {
		r := <-c.reply
		return r.snapshot, r.err
	}
	select {
	case r := <-c.reply:
		return r.snapshot, r.err
	case <-ctx.Done():
		return weather.WeatherSnapshot{}, ctx.Err()
	}
}

func (f *fakeProvider) next(t *testing.T) *call {
	t.Helper()
	select {
	case c := <-f.calls:
		return c
	case <-time.After(2 * time.Second):
		t.Fatal("expected a weather request")
		return nil
	}
}

func (f *fakeProvider) assertNoCall(t *testing.T) {
	t.Helper()
	select {
	case c := <-f.calls:
		t.Fatalf("unexpected weather request for %s", c.query)
	case <-time.After(50 * time.Millisecond):
	}
}

type fakeLocator struct {
	coords weather.Coordinates
	err    error
}

func (l fakeLocator) Name() string { return "fake" }

func (l fakeLocator) Locate(ctx context.Context) (weather.Coordinates, error) {
	return l.coords, l.err
}

// recorder keeps every published state.
type recorder struct {
	mu     sync.Mutex
	states []State
}

func (r *recorder) record(s State) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.states = append(r.states, s)
}

func (r *recorder) settled() []weather.RequestState {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []weather.RequestState
	for _, s := range r.states {
		if s.Request.Settled() {
			out = append(out, s.Request)
		}
	}
	return out
}

func newTestController(t *testing.T, p weather.Provider, l weather.Locator) *Controller {
	t.Helper()
	c := New(p, l, WithLogger(log.New(io.Discard, "", 0)))
	t.Cleanup(c.Close)
	return c
}

func waitForPhase(t *testing.T, c *Controller, phase weather.Phase) State {
	t.Helper()
	require.Eventually(t, func() bool {
		return c.State().Request.Phase == phase
	}, 2*time.Second, 5*time.Millisecond, "expected phase %s", phase)
	return c.State()
}

func snapshotFor(name string, tempC float64) weather.WeatherSnapshot {
	return weather.WeatherSnapshot{
		LocationName:  name,
		CountryName:   "France",
		TemperatureC:  tempC,
		ConditionText: "Sunny",
	}
}

func TestInitialStateIsIdle(t *testing.T) {
	c := newTestController(t, newFakeProvider(), nil)

	s := c.State()
	assert.Equal(t, weather.PhaseIdle, s.Request.Phase)
	assert.Nil(t, s.Query)
}

func TestPlaceQuerySuccess(t *testing.T) {
	p := newFakeProvider()
	c := newTestController(t, p, nil)

	c.SetPlace("Paris")
	assert.Equal(t, weather.PhaseLoading, c.State().Request.Phase)

	req := p.next(t)
	assert.Equal(t, weather.PlaceQuery("Paris"), req.query)
	req.succeed(snapshotFor("Paris", 21.4))

	s := waitForPhase(t, c, weather.PhaseSuccess)
	require.NotNil(t, s.Request.Snapshot)
	assert.Equal(t, "Paris", s.Request.Snapshot.LocationName)
	assert.InDelta(t, 21.4, s.Request.Snapshot.TemperatureC, 1e-9)
	assert.Equal(t, 21, weather.RoundTemperature(s.Request.Snapshot.TemperatureC))
	assert.Empty(t, s.Request.Message)
}

func TestPlaceTextIsTrimmed(t *testing.T) {
	p := newFakeProvider()
	c := newTestController(t, p, nil)

	c.SetPlace("  Paris ")
	assert.Equal(t, "Paris", p.next(t).query.Place)
}

func TestServiceErrorFails(t *testing.T) {
	p := newFakeProvider()
	c := newTestController(t, p, nil)

	c.SetPlace("Nonexistentville")
	p.next(t).fail(&weather.ServiceError{Code: 1006, Message: "No matching location found."})

	s := waitForPhase(t, c, weather.PhaseFailed)
	assert.Equal(t, "No matching location found.", s.Request.Message)
	assert.Nil(t, s.Request.Snapshot)
}

func TestTransportErrorFails(t *testing.T) {
	p := newFakeProvider()
	c := newTestController(t, p, nil)

	c.SetPlace("Paris")
	p.next(t).fail(weather.NewTransportError(errors.New("connection refused")))

	s := waitForPhase(t, c, weather.PhaseFailed)
	assert.Equal(t, "connection refused", s.Request.Message)
}

func TestSupersededResponseIsDiscarded(t *testing.T) {
	p := newFakeProvider()
	p.ignoreCancel = true
	c := newTestController(t, p, nil)

	rec := &recorder{}
	c.Subscribe(rec.record)

	c.SetPlace("London")
	first := p.next(t)
	c.SetPlace("Berlin")
	second := p.next(t)

	assert.Error(t, first.ctx.Err(), "superseded request must be cancelled")

	first.succeed(snapshotFor("London", 10))
	second.succeed(snapshotFor("Berlin", 15))

	s := waitForPhase(t, c, weather.PhaseSuccess)
	assert.Equal(t, "Berlin", s.Request.Snapshot.LocationName)

	c.Close()
	for _, st := range rec.settled() {
		if st.Snapshot != nil {
			assert.NotEqual(t, "London", st.Snapshot.LocationName, "stale response became visible")
		}
	}
	assert.Equal(t, "Berlin", c.State().Request.Snapshot.LocationName)
}

func TestSupersededErrorIsDiscarded(t *testing.T) {
	p := newFakeProvider()
	p.ignoreCancel = true
	c := newTestController(t, p, nil)

	c.SetPlace("Nowhere")
	first := p.next(t)
	c.SetPlace("Paris")
	second := p.next(t)

	first.fail(&weather.ServiceError{Message: "No matching location found."})
	second.succeed(snapshotFor("Paris", 20))

	waitForPhase(t, c, weather.PhaseSuccess)
	c.Close()
	assert.Equal(t, weather.PhaseSuccess, c.State().Request.Phase)
	assert.Empty(t, c.State().Request.Message)
}

func TestRapidTypingOnlyFinalQueryIsObservable(t *testing.T) {
	p := newFakeProvider()
	c := newTestController(t, p, nil)

	rec := &recorder{}
	c.Subscribe(rec.record)

	var calls []*call
	for _, text := range []string{"P", "Pa", "Par"} {
		c.SetPlace(text)
		calls = append(calls, p.next(t))
	}

	for _, stale := range calls[:2] {
		assert.ErrorIs(t, stale.ctx.Err(), context.Canceled)
	}
	calls[2].succeed(snapshotFor("Paris", 18))

	waitForPhase(t, c, weather.PhaseSuccess)
	c.Close()

	settled := rec.settled()
	require.Len(t, settled, 1)
	assert.Equal(t, weather.PhaseSuccess, settled[0].Phase)
	assert.Equal(t, "Par", c.State().Query.Place)
}

// TestLateRepliesNeverWin types a random run of city names and answers every
// superseded request after the final one.
func TestLateRepliesNeverWin(t *testing.T) {
	faker := gofakeit.New(42)
	p := newFakeProvider()
	p.ignoreCancel = true
	c := newTestController(t, p, nil)

	rec := &recorder{}
	c.Subscribe(rec.record)

	var calls []*call
	for i := 0; i < 8; i++ {
		c.SetPlace(fmt.Sprintf("%s %d", faker.City(), i))
		calls = append(calls, p.next(t))
	}
	final := calls[len(calls)-1]

	final.succeed(snapshotFor(final.query.Place, 12))
	waitForPhase(t, c, weather.PhaseSuccess)

	for i := len(calls) - 2; i >= 0; i-- {
		if i%2 == 0 {
			calls[i].fail(errors.New("late failure"))
		} else {
			calls[i].succeed(snapshotFor(calls[i].query.Place, 30))
		}
	}
	c.Close()

	settled := rec.settled()
	require.Len(t, settled, 1)
	assert.Equal(t, final.query.Place, settled[0].Snapshot.LocationName)
	assert.Equal(t, final.query.Place, c.State().Request.Snapshot.LocationName)
}

func TestClearingPlaceReturnsToIdle(t *testing.T) {
	p := newFakeProvider()
	c := newTestController(t, p, nil)

	c.SetPlace("Paris")
	p.next(t).succeed(snapshotFor("Paris", 21))
	waitForPhase(t, c, weather.PhaseSuccess)

	c.SetPlace("")

	s := c.State()
	assert.Equal(t, weather.PhaseIdle, s.Request.Phase)
	assert.Nil(t, s.Request.Snapshot)
	assert.Equal(t, weather.PhaseIdle, s.Settled.Phase)
	p.assertNoCall(t)
}

func TestClearingPlaceCancelsInFlightRequest(t *testing.T) {
	p := newFakeProvider()
	p.ignoreCancel = true
	c := newTestController(t, p, nil)

	c.SetPlace("Paris")
	req := p.next(t)
	c.SetPlace("")

	assert.Error(t, req.ctx.Err())
	req.succeed(snapshotFor("Paris", 21))

	c.Close()
	assert.Equal(t, weather.PhaseIdle, c.State().Request.Phase)
}

func TestBlankPlaceIssuesNothing(t *testing.T) {
	p := newFakeProvider()
	c := newTestController(t, p, nil)

	c.SetPlace("   ")

	assert.Equal(t, weather.PhaseIdle, c.State().Request.Phase)
	p.assertNoCall(t)
}

func TestGeolocationFailureWithoutPlace(t *testing.T) {
	p := newFakeProvider()
	c := newTestController(t, p, fakeLocator{err: fmt.Errorf("%w: timeout", weather.ErrGeolocationDenied)})

	c.Start(context.Background())

	s := waitForPhase(t, c, weather.PhaseFailed)
	assert.Equal(t, "Failed to get your location", s.Request.Message)
	assert.Equal(t, "Failed to get your location", s.GeolocationError)
	p.assertNoCall(t)
}

func TestGeolocationUnavailable(t *testing.T) {
	p := newFakeProvider()
	c := newTestController(t, p, nil)

	c.Start(context.Background())

	s := waitForPhase(t, c, weather.PhaseFailed)
	assert.Equal(t, weather.MsgGeolocationUnavailable, s.Request.Message)
	p.assertNoCall(t)
}

func TestGeolocationFailureDoesNotBlockPlaceQueries(t *testing.T) {
	p := newFakeProvider()
	c := newTestController(t, p, fakeLocator{err: weather.ErrGeolocationDenied})

	c.Start(context.Background())
	waitForPhase(t, c, weather.PhaseFailed)

	c.SetPlace("Paris")
	p.next(t).succeed(snapshotFor("Paris", 21))

	s := waitForPhase(t, c, weather.PhaseSuccess)
	assert.Empty(t, s.Request.Message)
}

func TestGeolocationFailureDoesNotOverridePlace(t *testing.T) {
	p := newFakeProvider()
	c := newTestController(t, p, fakeLocator{err: weather.ErrGeolocationDenied})

	c.SetPlace("Paris")
	req := p.next(t)

	c.Start(context.Background())
	require.Eventually(t, func() bool {
		return c.State().GeolocationError != ""
	}, 2*time.Second, 5*time.Millisecond)

	s := c.State()
	assert.Equal(t, weather.PhaseLoading, s.Request.Phase)
	assert.Equal(t, Display{Loading: true, Message: weather.MsgGeolocationFailed}, s.Display())

	req.succeed(snapshotFor("Paris", 21))
	s = waitForPhase(t, c, weather.PhaseSuccess)
	assert.Empty(t, s.Display().Message)
	assert.NotNil(t, s.Display().Snapshot)
}

func TestGeolocationFailureAfterSuccessIsShown(t *testing.T) {
	p := newFakeProvider()
	c := newTestController(t, p, fakeLocator{err: weather.ErrGeolocationDenied})

	c.SetPlace("Paris")
	p.next(t).succeed(snapshotFor("Paris", 21))
	waitForPhase(t, c, weather.PhaseSuccess)

	c.Start(context.Background())
	s := waitForPhase(t, c, weather.PhaseFailed)
	assert.Equal(t, weather.MsgGeolocationFailed, s.Display().Message)
	assert.Nil(t, s.Display().Snapshot)

	// The next lookup replaces the error once it settles.
	c.SetPlace("London")
	req := p.next(t)
	assert.Equal(t, weather.MsgGeolocationFailed, c.State().Display().Message)
	req.succeed(snapshotFor("London", 12))
	s = waitForPhase(t, c, weather.PhaseSuccess)
	assert.Empty(t, s.Display().Message)
}

func TestGeolocationSuccessIssuesCoordinateQuery(t *testing.T) {
	p := newFakeProvider()
	coords := weather.Coordinates{Latitude: 48.8566, Longitude: 2.3522}
	c := newTestController(t, p, fakeLocator{coords: coords})

	c.Start(context.Background())

	req := p.next(t)
	assert.Equal(t, weather.QueryCoords, req.query.Kind)
	assert.Equal(t, "48.8566,2.3522", req.query.Value())
	req.succeed(snapshotFor("Paris", 19))

	waitForPhase(t, c, weather.PhaseSuccess)
}

func TestStartIsOneShot(t *testing.T) {
	p := newFakeProvider()
	c := newTestController(t, p, fakeLocator{coords: weather.Coordinates{Latitude: 1, Longitude: 2}})

	c.Start(context.Background())
	c.Start(context.Background())

	p.next(t)
	p.assertNoCall(t)
}

func TestPlaceWinsOverCoordinates(t *testing.T) {
	p := newFakeProvider()
	c := newTestController(t, p, nil)

	c.SetPlace("Paris")
	req := p.next(t)

	c.SetCoordinates(weather.Coordinates{Latitude: 51.5, Longitude: -0.12})
	p.assertNoCall(t)
	assert.NoError(t, req.ctx.Err())

	req.succeed(snapshotFor("Paris", 21))
	waitForPhase(t, c, weather.PhaseSuccess)

	// The coordinates remain as a fallback once the place text is cleared.
	c.SetPlace("")
	fallback := p.next(t)
	assert.Equal(t, "51.5,-0.12", fallback.query.Value())
	assert.Equal(t, weather.PhaseLoading, c.State().Request.Phase)
}

func TestOnLocationQueryChangeNilIsIdle(t *testing.T) {
	p := newFakeProvider()
	c := newTestController(t, p, nil)

	q := weather.PlaceQuery("Paris")
	c.OnLocationQueryChange(&q)
	req := p.next(t)

	c.OnLocationQueryChange(nil)
	assert.Equal(t, weather.PhaseIdle, c.State().Request.Phase)
	assert.Error(t, req.ctx.Err())
}

func TestSameQueryIsNotReissued(t *testing.T) {
	p := newFakeProvider()
	c := newTestController(t, p, nil)

	c.SetPlace("Paris")
	p.next(t)
	c.SetPlace("Paris ")

	p.assertNoCall(t)
}

func TestRefreshReissuesCurrentQuery(t *testing.T) {
	p := newFakeProvider()
	c := newTestController(t, p, nil)

	c.Refresh()
	p.assertNoCall(t)

	c.SetPlace("Paris")
	p.next(t).succeed(snapshotFor("Paris", 21))
	before := waitForPhase(t, c, weather.PhaseSuccess)

	c.Refresh()
	req := p.next(t)
	assert.Equal(t, "Paris", req.query.Place)

	s := c.State()
	assert.Equal(t, weather.PhaseLoading, s.Request.Phase)
	assert.Greater(t, s.Token, before.Token)
	assert.Equal(t, weather.PhaseSuccess, s.Settled.Phase)

	req.succeed(snapshotFor("Paris", 22))
	s = waitForPhase(t, c, weather.PhaseSuccess)
	assert.InDelta(t, 22, s.Request.Snapshot.TemperatureC, 1e-9)
}

func TestSettledErrorSurvivesLoading(t *testing.T) {
	p := newFakeProvider()
	c := newTestController(t, p, nil)

	c.SetPlace("Nowhere")
	p.next(t).fail(&weather.ServiceError{Message: "No matching location found."})
	waitForPhase(t, c, weather.PhaseFailed)

	c.SetPlace("Paris")
	p.next(t)

	s := c.State()
	assert.Equal(t, weather.PhaseLoading, s.Request.Phase)
	assert.Equal(t, "No matching location found.", s.Settled.Message)
}

func TestUpdatesDeliversNewestState(t *testing.T) {
	p := newFakeProvider()
	c := newTestController(t, p, nil)

	ctx, cancel := context.WithCancel(context.Background())
	updates := c.Updates(ctx)

	initial := <-updates
	assert.Equal(t, weather.PhaseIdle, initial.Request.Phase)

	c.SetPlace("Paris")
	p.next(t).succeed(snapshotFor("Paris", 21))
	waitForPhase(t, c, weather.PhaseSuccess)

	latest := <-updates
	assert.Equal(t, weather.PhaseSuccess, latest.Request.Phase)

	cancel()
	require.Eventually(t, func() bool {
		_, ok := <-updates
		return !ok
	}, 2*time.Second, 5*time.Millisecond)
}

func TestVersionIncreasesMonotonically(t *testing.T) {
	p := newFakeProvider()
	c := newTestController(t, p, nil)

	var mu sync.Mutex
	var versions []uint64
	unsubscribe := c.Subscribe(func(s State) {
		mu.Lock()
		versions = append(versions, s.Version)
		mu.Unlock()
	})

	c.SetPlace("P")
	p.next(t)
	c.SetPlace("Pa")
	p.next(t)
	c.SetPlace("")
	unsubscribe()
	c.SetPlace("Paris")
	p.next(t)

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, versions, 3)
	assert.IsIncreasing(t, versions)
}

func TestCloseIsIdempotent(t *testing.T) {
	p := newFakeProvider()
	c := New(p, nil, WithLogger(log.New(io.Discard, "", 0)))

	c.SetPlace("Paris")
	req := p.next(t)

	c.Close()
	c.Close()

	assert.Error(t, req.ctx.Err())
	c.SetPlace("Berlin")
	p.assertNoCall(t)
}

func TestRequestLogNamesProvider(t *testing.T) {
	var buf bytes.Buffer
	p := newFakeProvider()
	c := New(p, nil, WithLogger(log.New(&buf, "", 0)))

	c.SetPlace("Paris")
	p.next(t).succeed(snapshotFor("Paris", 21))
	waitForPhase(t, c, weather.PhaseSuccess)
	c.Close()

	assert.Contains(t, buf.String(), "to fake for place:Paris")
}
