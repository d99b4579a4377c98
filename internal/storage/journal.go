// internal/storage/journal.go
package storage

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/rovshanmuradov/fito-presale/internal/events"
	"github.com/rovshanmuradov/fito-presale/internal/storage/models"
	"go.uber.org/zap"
)

var ErrJournalClosed = errors.New("journal closed")

const (
	defaultQueueSize    = 256
	defaultWriteTimeout = 5 * time.Second
)

// JournalConfig configures a Journal.
type JournalConfig struct {
	QueueSize    int
	WriteTimeout time.Duration
	Logger       *zap.Logger
}

// Journal records ticket transitions and sale snapshots. Bus handlers only
// enqueue; a single worker performs the writes in event order.
type Journal struct {
	store   Storage
	logger  *zap.Logger
	timeout time.Duration

	queue chan events.Event
	sub   events.Subscription
	wg    sync.WaitGroup

	mu     sync.Mutex
	closed bool

	// последний записанный снимок
	lastRaised       string
	lastParticipants int64
	haveSnapshot     bool
}

// NewJournal creates a journal over store. Call Attach to start receiving
// events.
func NewJournal(store Storage, cfg JournalConfig) *Journal {
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = defaultQueueSize
	}
	if cfg.WriteTimeout <= 0 {
		cfg.WriteTimeout = defaultWriteTimeout
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}

	j := &Journal{
		store:   store,
		logger:  cfg.Logger.Named("journal"),
		timeout: cfg.WriteTimeout,
		queue:   make(chan events.Event, cfg.QueueSize),
	}
	j.wg.Add(1)
	go j.run()
	return j
}

// Attach subscribes the journal to ticket and snapshot events.
func (j *Journal) Attach(bus *events.Bus) {
	j.sub = bus.Subscribe(j,
		events.TxSubmitted, events.TxPending, events.TxConfirmed, events.TxFailed,
		events.SnapshotUpdated)
}

// Handle implements events.Handler. It never blocks; events are dropped
// when the queue is full.
func (j *Journal) Handle(_ context.Context, e events.Event) error {
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.closed {
		return ErrJournalClosed
	}

	select {
	case j.queue <- e:
		return nil
	default:
		j.logger.Warn("Journal queue full, event dropped", zap.String("type", string(e.Type())))
		return events.ErrChannelFull
	}
}

func (j *Journal) run() {
	defer j.wg.Done()
	for e := range j.queue {
		j.write(e)
	}
}

func (j *Journal) write(e events.Event) {
	ctx, cancel := context.WithTimeout(context.Background(), j.timeout)
	defer cancel()

	var err error
	switch ev := e.(type) {
	case events.TxEvent:
		err = j.writeTx(ctx, ev)
	case events.SnapshotUpdatedEvent:
		err = j.writeSnapshot(ctx, ev)
	default:
		return
	}
	if err != nil {
		j.logger.Error("Journal write failed",
			zap.String("type", string(e.Type())),
			zap.Error(err))
	}
}

func (j *Journal) writeTx(ctx context.Context, ev events.TxEvent) error {
	if ev.Type() == events.TxSubmitted {
		value := ev.Value
		if value == "" {
			value = "0"
		}
		return j.store.SaveTransaction(ctx, &models.Transaction{
			TicketID: ev.TicketID,
			Account:  ev.Account.Hex(),
			Action:   ev.Action,
			ValueWei: value,
			TxHash:   ev.Hash,
			Status:   ev.Status,
		})
	}

	u := models.TransactionUpdate{
		TicketID:     ev.TicketID,
		Status:       ev.Status,
		TxHash:       ev.Hash,
		ErrorMessage: ev.Message,
		Duration:     ev.Duration,
	}
	if ev.Type() == events.TxConfirmed || ev.Type() == events.TxFailed {
		at := ev.Timestamp().UTC()
		u.SettledAt = &at
	}
	return j.store.UpdateTransactionStatus(ctx, u)
}

func (j *Journal) writeSnapshot(ctx context.Context, ev events.SnapshotUpdatedEvent) error {
	raised := "0"
	if ev.RaisedWei != nil {
		raised = ev.RaisedWei.Dec()
	}
	participants := int64(ev.ParticipantCount)

	if j.haveSnapshot && raised == j.lastRaised && participants == j.lastParticipants {
		return nil
	}

	err := j.store.SaveSnapshot(ctx, &models.SaleSnapshot{
		Paused:       ev.Paused,
		ForceActive:  ev.ForceActive,
		RaisedWei:    raised,
		Participants: participants,
		FetchedAt:    ev.FetchedAt.UTC(),
	})
	if err != nil {
		return err
	}
	j.lastRaised, j.lastParticipants, j.haveSnapshot = raised, participants, true
	return nil
}

// Close unsubscribes, drains queued events and waits for the worker. The
// store is left open.
func (j *Journal) Close() error {
	if j.sub != nil {
		j.sub.Unsubscribe()
	}

	j.mu.Lock()
	if j.closed {
		j.mu.Unlock()
		return nil
	}
	j.closed = true
	close(j.queue)
	j.mu.Unlock()

	j.wg.Wait()
	return nil
}
