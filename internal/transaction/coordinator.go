// internal/transaction/coordinator.go
package transaction

import (
	"context"
	"math/big"
	"strings"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/rovshanmuradov/fito-presale/internal/events"
	"github.com/rovshanmuradov/fito-presale/internal/presale"
	"github.com/rovshanmuradov/fito-presale/internal/wallet"
)

// SessionSource is the wallet connection as seen by the coordinator.
type SessionSource interface {
	Session() wallet.Session
	Signer() (wallet.Provider, error)
	TargetChainID() uint64
}

// Refresher is notified after a confirmed write.
type Refresher interface {
	RefreshNow() bool
}

// SaleGate reports whether purchases are currently allowed.
type SaleGate interface {
	CanTransact() bool
}

// Metrics receives ticket transitions. A nil Metrics disables them.
type Metrics interface {
	TransactionObserved(action, status string, elapsed time.Duration)
}

type CoordinatorConfig struct {
	Contract  common.Address
	Session   SessionSource
	Refresher Refresher
	Gate      SaleGate
	Confirmer *Confirmer
	Bus       events.Publisher
	Metrics   Metrics
	Logger    *zap.Logger
}

// Coordinator runs at most one write at a time. Submissions while another
// ticket is SUBMITTING or PENDING are rejected, never queued.
type Coordinator struct {
	contract  common.Address
	session   SessionSource
	refresher Refresher
	gate      SaleGate
	confirmer *Confirmer
	bus       events.Publisher
	metrics   Metrics
	logger    *zap.Logger

	mu     sync.RWMutex
	ticket Ticket
	emitMu sync.Mutex

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

func NewCoordinator(config *CoordinatorConfig) *Coordinator {
	bus := config.Bus
	if bus == nil {
		bus = events.Nop{}
	}
	confirmer := config.Confirmer
	if confirmer == nil {
		confirmer = &Confirmer{}
	}
	logger := config.Logger.Named("tx_coordinator")
	if confirmer.Logger == nil {
		confirmer.Logger = logger.Named("confirmer")
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Coordinator{
		contract:  config.Contract,
		session:   config.Session,
		refresher: config.Refresher,
		gate:      config.Gate,
		confirmer: confirmer,
		bus:       bus,
		metrics:   config.Metrics,
		logger:    logger,
		ctx:       ctx,
		cancel:    cancel,
	}
}

// Submit validates req and, when accepted, starts its lifecycle in the
// background. The returned ticket is SUBMITTING.
func (c *Coordinator) Submit(req Request) (Ticket, error) {
	c.emitMu.Lock()
	defer c.emitMu.Unlock()

	c.mu.Lock()
	if c.ticket.Status.InFlight() {
		c.mu.Unlock()
		return Ticket{}, precondition(ErrBusy)
	}
	if c.ctx.Err() != nil {
		c.mu.Unlock()
		return Ticket{}, &PreconditionError{Kind: ErrStopped, Message: "Storefront is shutting down."}
	}
	prepared, err := c.prepare(req)
	if err != nil {
		c.mu.Unlock()
		return Ticket{}, err
	}

	c.ticket = Ticket{
		ID:          uuid.New().String(),
		Action:      req.Action,
		Status:      StatusSubmitting,
		Account:     prepared.From,
		Value:       new(big.Int).Set(prepared.Value),
		SubmittedAt: time.Now(),
	}
	ticket := c.ticket.clone()
	c.mu.Unlock()

	c.logger.Info("✍️ Transaction submitted",
		zap.String("ticket", ticket.ID),
		zap.Stringer("action", req.Action),
		zap.String("value_wei", ticket.Value.String()))
	c.observe(ticket)
	c.publish(events.TxSubmitted, ticket)

	c.wg.Add(1)
	go c.run(ticket.ID, prepared)
	return ticket, nil
}

// Acknowledge clears a settled ticket. It returns false when there is
// nothing to clear.
func (c *Coordinator) Acknowledge() bool {
	c.emitMu.Lock()
	defer c.emitMu.Unlock()

	c.mu.Lock()
	if !c.ticket.Status.Terminal() {
		c.mu.Unlock()
		return false
	}
	cleared := c.ticket.clone()
	c.ticket = Ticket{}
	c.mu.Unlock()

	cleared.Status = StatusIdle
	c.publish(events.TxCleared, cleared)
	return true
}

// Ticket returns a copy of the current ticket.
func (c *Coordinator) Ticket() Ticket {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.ticket.clone()
}

// Stop ends confirmation waits. Tickets still waiting fail as Unknown.
func (c *Coordinator) Stop() {
	c.cancel()
	c.wg.Wait()
}

// prepare checks preconditions in order and builds the call. Caller holds mu.
func (c *Coordinator) prepare(req Request) (wallet.TxRequest, error) {
	session := c.session.Session()
	if !session.Connected() {
		return wallet.TxRequest{}, precondition(ErrNotConnected)
	}
	if session.ChainID != c.session.TargetChainID() {
		return wallet.TxRequest{}, precondition(ErrWrongNetwork)
	}

	tx := wallet.TxRequest{From: *session.Account, To: c.contract, Value: new(big.Int)}

	var err error
	switch req.Action {
	case ActionPurchase:
		tx.Value, err = presale.ParseAmount(req.Amount, presale.NativeDecimals)
		if err != nil {
			return wallet.TxRequest{}, precondition(ErrInvalidAmount)
		}
		referrer := common.Address{}
		if ref := strings.TrimSpace(req.Referrer); ref != "" {
			if !common.IsHexAddress(ref) {
				return wallet.TxRequest{}, precondition(ErrInvalidReferrer)
			}
			referrer = common.HexToAddress(ref)
		}
		if c.gate != nil && !c.gate.CanTransact() {
			return wallet.TxRequest{}, precondition(ErrSaleClosed)
		}
		tx.Data, err = presale.PackBuyTokens(referrer)
	case ActionSetPause:
		tx.Data, err = presale.PackSetPaused(req.Flag)
	case ActionSetForceActive:
		tx.Data, err = presale.PackSetForceActive(req.Flag)
	}
	if err != nil {
		return wallet.TxRequest{}, &PreconditionError{Kind: err, Message: err.Error()}
	}
	return tx, nil
}

func (c *Coordinator) run(id string, req wallet.TxRequest) {
	defer c.wg.Done()

	signer, err := c.session.Signer()
	if err != nil {
		c.fail(id, &TxError{Kind: KindUnknown, Cause: err})
		return
	}

	hash, err := signer.SendTransaction(c.ctx, req)
	if err != nil {
		txErr := Classify(err)
		if c.ctx.Err() != nil && txErr.Kind == KindUnknown {
			txErr = &TxError{Kind: KindUnknown, Cause: ErrStopped}
		}
		c.fail(id, txErr)
		return
	}

	c.transition(id, events.TxPending, func(t *Ticket) {
		t.Status = StatusPending
		t.Hash = hash
	})

	call := ethereum.CallMsg{From: req.From, To: &req.To, Value: req.Value, Data: req.Data}
	receipt, err := c.confirmer.Wait(c.ctx, signer, call, hash)
	if err != nil {
		c.fail(id, Classify(err))
		return
	}

	c.transition(id, events.TxConfirmed, func(t *Ticket) {
		t.Status = StatusConfirmed
		t.SettledAt = time.Now()
	})
	c.logger.Info("✅ Transaction confirmed",
		zap.String("ticket", id),
		zap.String("hash", hash.Hex()),
		zap.Uint64("block", receipt.BlockNumber.Uint64()))

	if c.refresher != nil && !c.refresher.RefreshNow() {
		c.logger.Debug("Post-confirmation refresh dropped, fetch already in flight")
	}
}

func (c *Coordinator) fail(id string, txErr *TxError) {
	c.transition(id, events.TxFailed, func(t *Ticket) {
		t.Status = StatusFailed
		t.Err = txErr
		t.SettledAt = time.Now()
	})
	c.logger.Warn("❌ Transaction failed",
		zap.String("ticket", id),
		zap.Stringer("kind", txErr.Kind),
		zap.String("message", txErr.Message()))
}

func (c *Coordinator) transition(id string, kind events.EventType, fn func(*Ticket)) {
	c.emitMu.Lock()
	defer c.emitMu.Unlock()

	c.mu.Lock()
	if c.ticket.ID != id {
		c.mu.Unlock()
		return
	}
	fn(&c.ticket)
	ticket := c.ticket.clone()
	c.mu.Unlock()

	c.observe(ticket)
	c.publish(kind, ticket)
}

func (c *Coordinator) observe(t Ticket) {
	if c.metrics == nil {
		return
	}
	var elapsed time.Duration
	if !t.SettledAt.IsZero() {
		elapsed = t.SettledAt.Sub(t.SubmittedAt)
	}
	c.metrics.TransactionObserved(t.Action.String(), strings.ToLower(t.Status.String()), elapsed)
}

func (c *Coordinator) publish(kind events.EventType, t Ticket) {
	e := events.TxEvent{
		BaseEvent: events.NewBase(kind),
		TicketID:  t.ID,
		Action:    t.Action.String(),
		Account:   t.Account,
		Status:    t.Status.String(),
		Message:   t.ErrorMessage(),
	}
	if t.Value != nil {
		e.Value = t.Value.String()
	}
	if t.HasHash() {
		e.Hash = t.Hash.Hex()
	}
	if !t.SettledAt.IsZero() {
		e.Duration = t.SettledAt.Sub(t.SubmittedAt)
	}
	_ = c.bus.PublishSync(context.Background(), e)
}
