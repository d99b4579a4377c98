// internal/monitor/reader.go
package monitor

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/rovshanmuradov/fito-presale/internal/events"
	"github.com/rovshanmuradov/fito-presale/internal/presale"
	"github.com/rovshanmuradov/fito-presale/internal/scheduler"
)

// Fetch results reported to Metrics.
const (
	ResultSuccess = "success"
	ResultFailure = "failure"
	ResultSkipped = "skipped"
)

// Metrics receives reader observations. A nil Metrics disables them.
type Metrics interface {
	FetchObserved(result string, elapsed time.Duration)
	SaleObserved(raisedWei *uint256.Int, participants uint64)
}

// ReaderConfig configures a SaleReader.
type ReaderConfig struct {
	Interval     time.Duration // интервал опроса контракта
	FetchTimeout time.Duration
	Bus          events.Publisher
	Metrics      Metrics
	Logger       *zap.Logger
}

// SaleReader polls the sale contract and keeps the latest snapshot.
type SaleReader struct {
	interval time.Duration
	timeout  time.Duration
	bus      events.Publisher
	metrics  Metrics
	logger   *zap.Logger

	mu       sync.RWMutex
	state    ReaderState
	contract *presale.Contract

	inFlight atomic.Bool
	emitMu   sync.Mutex

	ctx    context.Context
	cancel context.CancelFunc
	ticker *scheduler.Task
	wg     sync.WaitGroup
}

func NewSaleReader(config *ReaderConfig) *SaleReader {
	interval := config.Interval
	if interval <= 0 {
		interval = 15 * time.Second
	}
	timeout := config.FetchTimeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	bus := config.Bus
	if bus == nil {
		bus = events.Nop{}
	}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	return &SaleReader{
		interval: interval,
		timeout:  timeout,
		bus:      bus,
		metrics:  config.Metrics,
		logger:   config.Logger.Named("sale_reader"),
		state:    ReaderState{Loading: true},
		ctx:      ctx,
		cancel:   cancel,
	}
}

// Start binds the contract, fetches once and polls on every interval. An
// unconfigured address is reported immediately and no polling starts.
func (r *SaleReader) Start(ctx context.Context, address common.Address, caller ethereum.ContractCaller) error {
	contract, err := presale.NewContract(address, caller)
	if err != nil {
		rerr := &ReadError{Message: configErrorMessage, Cause: err}
		r.logger.Error("❌ Presale contract is not configured", zap.String("address", address.Hex()))
		r.emitMu.Lock()
		r.mu.Lock()
		r.state = ReaderState{Err: rerr, ConfigErr: true}
		r.mu.Unlock()
		_ = r.bus.PublishSync(context.Background(), events.SnapshotFailedEvent{
			BaseEvent:  events.NewBase(events.SnapshotFailed),
			Err:        rerr,
			ConfigFail: true,
		})
		r.emitMu.Unlock()
		return rerr
	}

	r.mu.Lock()
	r.contract = contract
	r.ctx, r.cancel = context.WithCancel(ctx)
	r.mu.Unlock()

	r.logger.Info("📡 Sale reader started",
		zap.String("contract", address.Hex()),
		zap.Duration("interval", r.interval))

	r.RefreshNow()
	ticker := scheduler.Every(r.ctx, r.interval, func(ctx context.Context) {
		if !r.inFlight.CompareAndSwap(false, true) {
			r.logger.Debug("Fetch still in flight, skipping tick")
			r.skipped()
			return
		}
		defer r.inFlight.Store(false)
		r.fetch(ctx)
	})
	r.mu.Lock()
	r.ticker = ticker
	r.mu.Unlock()
	return nil
}

// RefreshNow starts an out-of-band fetch. It returns false when a fetch is
// already running or the reader is not started.
func (r *SaleReader) RefreshNow() bool {
	r.mu.RLock()
	ctx, bound := r.ctx, r.contract != nil
	r.mu.RUnlock()
	if !bound || ctx.Err() != nil {
		return false
	}
	if !r.inFlight.CompareAndSwap(false, true) {
		r.logger.Debug("Refresh dropped, fetch in flight")
		r.skipped()
		return false
	}

	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		defer r.inFlight.Store(false)
		r.fetch(ctx)
	}()
	return true
}

// Stop cancels polling and waits for an outstanding fetch.
func (r *SaleReader) Stop() {
	r.mu.RLock()
	cancel, ticker := r.cancel, r.ticker
	r.mu.RUnlock()
	cancel()
	ticker.Stop()
	r.wg.Wait()
}

// State returns the current reader state.
func (r *SaleReader) State() ReaderState {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.state
}

func (r *SaleReader) skipped() {
	if r.metrics != nil {
		r.metrics.FetchObserved(ResultSkipped, 0)
	}
}

func (r *SaleReader) fetch(ctx context.Context) {
	started := time.Now()
	fctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	snap, err := r.read(fctx)
	if ctx.Err() != nil {
		return
	}
	elapsed := time.Since(started)

	if err != nil {
		r.fail(err, elapsed)
		return
	}
	r.succeed(snap, elapsed)
}

// read issues the four view calls concurrently. A partial result is never
// returned.
func (r *SaleReader) read(ctx context.Context) (*Snapshot, error) {
	var snap Snapshot
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() (err error) {
		snap.Paused, err = r.contract.Paused(gctx)
		return err
	})
	g.Go(func() (err error) {
		snap.ForceActive, err = r.contract.ForceActive(gctx)
		return err
	})
	g.Go(func() (err error) {
		snap.RaisedWei, err = r.contract.TotalRaised(gctx)
		return err
	})
	g.Go(func() (err error) {
		snap.ParticipantCount, err = r.contract.ParticipantCount(gctx)
		return err
	})

	if err := g.Wait(); err != nil {
		return nil, err
	}
	snap.FetchedAt = time.Now()
	return &snap, nil
}

func (r *SaleReader) succeed(snap *Snapshot, elapsed time.Duration) {
	r.emitMu.Lock()
	defer r.emitMu.Unlock()

	if r.metrics != nil {
		r.metrics.FetchObserved(ResultSuccess, elapsed)
		r.metrics.SaleObserved(snap.RaisedWei, snap.ParticipantCount)
	}

	r.mu.Lock()
	r.state = ReaderState{Snapshot: snap}
	r.mu.Unlock()
	r.logger.Debug("Sale snapshot updated",
		zap.Bool("paused", snap.Paused),
		zap.Bool("force_active", snap.ForceActive),
		zap.String("raised_wei", snap.RaisedWei.Dec()),
		zap.Uint64("participants", snap.ParticipantCount),
		zap.Duration("elapsed", elapsed))

	_ = r.bus.PublishSync(context.Background(), events.SnapshotUpdatedEvent{
		BaseEvent:        events.NewBase(events.SnapshotUpdated),
		Paused:           snap.Paused,
		ForceActive:      snap.ForceActive,
		RaisedWei:        snap.RaisedWei.Clone(),
		ParticipantCount: snap.ParticipantCount,
		FetchedAt:        snap.FetchedAt,
	})
}

func (r *SaleReader) fail(err error, elapsed time.Duration) {
	rerr := &ReadError{Message: readErrorMessage, Cause: err}

	if r.metrics != nil {
		r.metrics.FetchObserved(ResultFailure, elapsed)
	}

	r.emitMu.Lock()
	defer r.emitMu.Unlock()

	r.mu.Lock()
	stale := r.state.Snapshot.clone()
	if stale != nil {
		stale.Stale = true
	}
	r.state = ReaderState{Snapshot: stale, Err: rerr}
	r.mu.Unlock()

	var decodeErr *presale.DecodeError
	if errors.As(err, &decodeErr) {
		r.logger.Error("Sale contract returned malformed data",
			zap.String("method", decodeErr.Method), zap.Error(err))
	} else {
		r.logger.Warn("⚠️ Sale fetch failed", zap.Error(err), zap.Bool("have_stale", stale != nil))
	}

	_ = r.bus.PublishSync(context.Background(), events.SnapshotFailedEvent{
		BaseEvent: events.NewBase(events.SnapshotFailed),
		Err:       rerr,
	})
}
