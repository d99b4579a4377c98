package monitor_test

import (
	"context"
	"errors"
	"math/big"
	"sync"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/rovshanmuradov/fito-presale/internal/events"
	"github.com/rovshanmuradov/fito-presale/internal/monitor"
	"github.com/rovshanmuradov/fito-presale/internal/presale"
	"github.com/rovshanmuradov/fito-presale/internal/presale/presaletest"
)

var saleAddr = common.HexToAddress("0x5FbDB2315678afecb367f032d93F642f64180aa3")

type fakeMetrics struct {
	mu      sync.Mutex
	results []string
	raised  *uint256.Int
}

func (m *fakeMetrics) FetchObserved(result string, _ time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.results = append(m.results, result)
}

func (m *fakeMetrics) SaleObserved(raised *uint256.Int, _ uint64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.raised = raised
}

func (m *fakeMetrics) Results() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.results...)
}

// Fetched drops skipped refreshes.
func (m *fakeMetrics) Fetched() []string {
	var out []string
	for _, r := range m.Results() {
		if r != monitor.ResultSkipped {
			out = append(out, r)
		}
	}
	return out
}

type eventLog struct {
	mu     sync.Mutex
	events []events.Event
}

func (l *eventLog) all() []events.Event {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]events.Event(nil), l.events...)
}

func newReader(t *testing.T, interval time.Duration) (*monitor.SaleReader, *eventLog, *fakeMetrics) {
	t.Helper()
	logger := zaptest.NewLogger(t)
	bus := events.NewBus(logger, 16)
	t.Cleanup(func() { _ = bus.Shutdown(context.Background()) })

	log := &eventLog{}
	bus.SubscribeFunc(func(_ context.Context, e events.Event) error {
		log.mu.Lock()
		defer log.mu.Unlock()
		log.events = append(log.events, e)
		return nil
	}, events.SnapshotUpdated, events.SnapshotFailed)

	m := &fakeMetrics{}
	r := monitor.NewSaleReader(&monitor.ReaderConfig{
		Interval:     interval,
		FetchTimeout: time.Second,
		Bus:          bus,
		Metrics:      m,
		Logger:       logger,
	})
	t.Cleanup(r.Stop)
	return r, log, m
}

func waitLoaded(t *testing.T, r *monitor.SaleReader) monitor.ReaderState {
	t.Helper()
	require.Eventually(t, func() bool { return !r.State().Loading }, time.Second, 5*time.Millisecond)
	return r.State()
}

func TestReaderPublishesCompleteSnapshot(t *testing.T) {
	caller := presaletest.NewCaller(presaletest.State{
		Paused:       true,
		Raised:       big.NewInt(5_000),
		Participants: big.NewInt(3),
	})
	r, log, m := newReader(t, time.Hour)

	assert.True(t, r.State().Loading)
	require.NoError(t, r.Start(context.Background(), saleAddr, caller))

	state := waitLoaded(t, r)
	require.NotNil(t, state.Snapshot)
	assert.Nil(t, state.Err)
	assert.True(t, state.Snapshot.Paused)
	assert.False(t, state.Snapshot.ForceActive)
	assert.Equal(t, uint64(5_000), state.Snapshot.RaisedWei.Uint64())
	assert.Equal(t, uint64(3), state.Snapshot.ParticipantCount)
	assert.False(t, state.Snapshot.Stale)
	assert.False(t, state.Snapshot.FetchedAt.IsZero())

	require.Eventually(t, func() bool { return len(log.all()) == 1 }, time.Second, 5*time.Millisecond)
	updated, ok := log.all()[0].(events.SnapshotUpdatedEvent)
	require.True(t, ok)
	assert.Equal(t, uint64(3), updated.ParticipantCount)
	assert.Equal(t, []string{monitor.ResultSuccess}, m.Results())
}

func TestReaderConfigErrorFailsFast(t *testing.T) {
	caller := presaletest.NewCaller(presaletest.State{})
	r, log, _ := newReader(t, 10*time.Millisecond)

	err := r.Start(context.Background(), common.Address{}, caller)
	require.Error(t, err)
	assert.ErrorIs(t, err, presale.ErrNotConfigured)

	state := r.State()
	assert.True(t, state.ConfigErr)
	assert.False(t, state.Loading)
	assert.Nil(t, state.Snapshot)
	require.NotNil(t, state.Err)
	assert.Contains(t, state.Err.Message, "Configuration Error")

	time.Sleep(40 * time.Millisecond)
	assert.Zero(t, caller.Calls(presale.MethodPaused))
	assert.False(t, r.RefreshNow())

	require.Len(t, log.all(), 1)
	failed := log.all()[0].(events.SnapshotFailedEvent)
	assert.True(t, failed.ConfigFail)
}

func TestReaderKeepsStaleSnapshotOnFailure(t *testing.T) {
	caller := presaletest.NewCaller(presaletest.State{
		Raised:       big.NewInt(42),
		Participants: big.NewInt(7),
	})
	r, log, m := newReader(t, time.Hour)
	require.NoError(t, r.Start(context.Background(), saleAddr, caller))
	first := waitLoaded(t, r)
	require.NotNil(t, first.Snapshot)

	caller.Fail(presale.MethodParticipantCount, errors.New("rpc timeout"))
	caller.Update(func(s *presaletest.State) { s.Paused = true })
	require.True(t, r.RefreshNow())

	require.Eventually(t, func() bool { return r.State().Err != nil }, time.Second, 5*time.Millisecond)
	state := r.State()
	require.NotNil(t, state.Snapshot)
	assert.True(t, state.Snapshot.Stale)
	assert.False(t, state.Snapshot.Paused, "stale copy keeps previous data")
	assert.Equal(t, uint64(42), state.Snapshot.RaisedWei.Uint64())
	assert.Equal(t, uint64(7), state.Snapshot.ParticipantCount)
	assert.Equal(t, "Failed to load presale data. Ensure the contract address is correct and you are on the right network.",
		state.Err.Message)
	assert.False(t, first.Snapshot.Stale, "published snapshot is not mutated")

	caller.Fail(presale.MethodParticipantCount, nil)
	require.Eventually(t, r.RefreshNow, time.Second, 5*time.Millisecond)
	require.Eventually(t, func() bool { return r.State().Err == nil }, time.Second, 5*time.Millisecond)
	state = r.State()
	assert.True(t, state.Snapshot.Paused)
	assert.False(t, state.Snapshot.Stale)

	assert.Equal(t, []string{monitor.ResultSuccess, monitor.ResultFailure, monitor.ResultSuccess}, m.Fetched())
	require.Eventually(t, func() bool { return len(log.all()) == 3 }, time.Second, 5*time.Millisecond)
	kinds := []events.EventType{}
	for _, e := range log.all() {
		kinds = append(kinds, e.Type())
	}
	assert.Equal(t, []events.EventType{events.SnapshotUpdated, events.SnapshotFailed, events.SnapshotUpdated}, kinds)
}

func TestReaderFirstFetchFailureHasNoSnapshot(t *testing.T) {
	caller := presaletest.NewCaller(presaletest.State{})
	caller.Fail(presale.MethodPaused, errors.New("connection refused"))
	r, _, _ := newReader(t, time.Hour)
	require.NoError(t, r.Start(context.Background(), saleAddr, caller))

	state := waitLoaded(t, r)
	assert.Nil(t, state.Snapshot)
	require.NotNil(t, state.Err)
	assert.False(t, state.ConfigErr)
}

func TestReaderRejectsMalformedResult(t *testing.T) {
	caller := presaletest.NewCaller(presaletest.State{})
	caller.Raw(presale.MethodTotalRaised, []byte{})
	r, _, _ := newReader(t, time.Hour)
	require.NoError(t, r.Start(context.Background(), saleAddr, caller))

	state := waitLoaded(t, r)
	require.NotNil(t, state.Err)
	var decodeErr *presale.DecodeError
	assert.ErrorAs(t, state.Err, &decodeErr)
	assert.Nil(t, state.Snapshot)
}

func TestReaderDropsOverlappingRefresh(t *testing.T) {
	caller := presaletest.NewCaller(presaletest.State{})
	caller.Gate = make(chan struct{})
	r, _, m := newReader(t, time.Hour)
	require.NoError(t, r.Start(context.Background(), saleAddr, caller))

	require.Eventually(t, func() bool {
		return caller.Calls(presale.MethodPaused) == 1
	}, time.Second, 5*time.Millisecond)

	for i := 0; i < 5; i++ {
		assert.False(t, r.RefreshNow())
	}
	close(caller.Gate)

	waitLoaded(t, r)
	require.Eventually(t, func() bool { return len(m.Results()) == 6 }, time.Second, 5*time.Millisecond)
	assert.Equal(t, 1, caller.Calls(presale.MethodPaused))

	results := m.Results()
	assert.Equal(t, []string{
		monitor.ResultSkipped, monitor.ResultSkipped, monitor.ResultSkipped,
		monitor.ResultSkipped, monitor.ResultSkipped, monitor.ResultSuccess,
	}, results)
}

func TestReaderPollsOnInterval(t *testing.T) {
	caller := presaletest.NewCaller(presaletest.State{})
	r, _, _ := newReader(t, 15*time.Millisecond)
	require.NoError(t, r.Start(context.Background(), saleAddr, caller))

	require.Eventually(t, func() bool {
		return caller.Calls(presale.MethodParticipantCount) >= 3
	}, time.Second, 5*time.Millisecond)
}

func TestReaderStopHaltsPolling(t *testing.T) {
	caller := presaletest.NewCaller(presaletest.State{})
	r, _, _ := newReader(t, 10*time.Millisecond)
	require.NoError(t, r.Start(context.Background(), saleAddr, caller))
	waitLoaded(t, r)

	r.Stop()
	calls := caller.Calls(presale.MethodPaused)
	time.Sleep(40 * time.Millisecond)
	assert.Equal(t, calls, caller.Calls(presale.MethodPaused))
	assert.False(t, r.RefreshNow())
}

func TestReaderFailedSubReadNeverMixesFields(t *testing.T) {
	caller := presaletest.NewCaller(presaletest.State{
		Raised:       big.NewInt(100),
		Participants: big.NewInt(2),
	})
	r, _, _ := newReader(t, time.Hour)
	require.NoError(t, r.Start(context.Background(), saleAddr, caller))
	waitLoaded(t, r)

	caller.Fail(presale.MethodTotalRaised, errors.New("header not found"))
	caller.Set(presaletest.State{
		ForceActive:  true,
		Raised:       big.NewInt(900),
		Participants: big.NewInt(9),
	})
	require.True(t, r.RefreshNow())

	require.Eventually(t, func() bool { return r.State().Err != nil }, time.Second, 5*time.Millisecond)
	snap := r.State().Snapshot
	require.NotNil(t, snap)
	assert.True(t, snap.Stale)
	assert.False(t, snap.ForceActive)
	assert.Equal(t, uint64(100), snap.RaisedWei.Uint64())
	assert.Equal(t, uint64(2), snap.ParticipantCount)
}

func TestReaderKeepsPollingAfterFailures(t *testing.T) {
	caller := presaletest.NewCaller(presaletest.State{Participants: big.NewInt(1)})
	caller.Fail(presale.MethodTotalRaised, errors.New("connection refused"))
	r, _, m := newReader(t, 15*time.Millisecond)
	require.NoError(t, r.Start(context.Background(), saleAddr, caller))

	state := waitLoaded(t, r)
	require.NotNil(t, state.Err)
	assert.Nil(t, state.Snapshot)

	calls := caller.Calls(presale.MethodTotalRaised)
	require.Eventually(t, func() bool {
		return caller.Calls(presale.MethodTotalRaised) >= calls+3
	}, time.Second, 5*time.Millisecond)
	assert.NotNil(t, r.State().Err)

	caller.Update(func(s *presaletest.State) { s.Raised = big.NewInt(77) })
	caller.Fail(presale.MethodTotalRaised, nil)
	require.Eventually(t, func() bool {
		st := r.State()
		return st.Err == nil && st.Snapshot != nil
	}, time.Second, 5*time.Millisecond)

	snap := r.State().Snapshot
	assert.Equal(t, uint64(77), snap.RaisedWei.Uint64())
	assert.Equal(t, uint64(1), snap.ParticipantCount)
	assert.False(t, snap.Stale)
	assert.Contains(t, m.Fetched(), monitor.ResultFailure)
}
