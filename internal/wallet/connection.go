// internal/wallet/connection.go
package wallet

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/event"
	"go.uber.org/zap"

	"github.com/rovshanmuradov/fito-presale/internal/events"
	"github.com/rovshanmuradov/fito-presale/internal/scheduler"
)

// Session is a snapshot of the wallet connection. ChainID is zero when
// unknown.
type Session struct {
	Account *common.Address
	ChainID uint64
	Err     *ConnectionError
}

func (s Session) Connected() bool {
	return s.Account != nil
}

// OnChain reports whether an account is connected on chainID.
func (s Session) OnChain(chainID uint64) bool {
	return s.Account != nil && s.ChainID == chainID
}

func (s Session) clone() Session {
	out := s
	if s.Account != nil {
		acct := *s.Account
		out.Account = &acct
	}
	return out
}

// ConnectionConfig configures a Connection.
type ConnectionConfig struct {
	Locator    Locator
	Target     ChainParams
	RetryDelay time.Duration
	Bus        events.Publisher
	Logger     *zap.Logger
}

// Connection owns the wallet session. All mutations are published as
// events.SessionChangedEvent in the order they were applied.
type Connection struct {
	locator    Locator
	target     ChainParams
	retryDelay time.Duration
	bus        events.Publisher
	logger     *zap.Logger

	mu       sync.RWMutex
	session  Session
	provider Provider
	loading  bool

	emitMu   sync.Mutex
	attachMu sync.Mutex

	ctx    context.Context
	cancel context.CancelFunc
	notes  chan Notification
	sub    event.Subscription
	retry  *scheduler.Task
	wg     sync.WaitGroup
}

func NewConnection(config *ConnectionConfig) *Connection {
	bus := config.Bus
	if bus == nil {
		bus = events.Nop{}
	}
	delay := config.RetryDelay
	if delay <= 0 {
		delay = time.Second
	}
	locator := config.Locator
	if locator == nil {
		locator = NoProvider
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Connection{
		locator:    locator,
		target:     config.Target,
		retryDelay: delay,
		bus:        bus,
		logger:     config.Logger.Named("wallet"),
		ctx:        ctx,
		cancel:     cancel,
		notes:      make(chan Notification, 16),
	}
}

// Start attempts one eager, non-interactive reconnect. When no provider is
// present yet, a single retry is scheduled after the retry delay.
func (c *Connection) Start(ctx context.Context) {
	c.ctx, c.cancel = context.WithCancel(ctx)
	c.setLoading(true)

	err := c.attach(c.ctx)
	if errors.Is(err, ErrProviderMissing) {
		c.logger.Info("⏳ Wallet provider not found, retrying once", zap.Duration("delay", c.retryDelay))
		c.retry = scheduler.After(c.ctx, c.retryDelay, func(ctx context.Context) {
			defer c.setLoading(false)
			if err := c.attach(ctx); err != nil {
				c.logger.Info("No wallet provider after retry, staying disconnected", zap.Error(err))
				return
			}
			c.eagerReconnect(ctx)
		})
		return
	}
	defer c.setLoading(false)
	if err != nil {
		c.logger.Warn("Failed to attach wallet provider", zap.Error(err))
		return
	}
	c.eagerReconnect(c.ctx)
}

// Stop cancels the notification loop and any scheduled retry.
func (c *Connection) Stop() {
	c.cancel()
	c.retry.Stop()

	c.attachMu.Lock()
	sub := c.sub
	c.attachMu.Unlock()
	if sub != nil {
		sub.Unsubscribe()
	}
	c.wg.Wait()
}

// Connect asks the signer for account access. A wrong network is reported
// in the session but does not fail the call.
func (c *Connection) Connect(ctx context.Context) (Session, error) {
	provider, err := c.ensureProvider(ctx)
	if err != nil {
		ce := providerMissingError(err)
		c.setError(ce)
		return c.Session(), ce
	}

	c.setLoading(true)
	defer c.setLoading(false)

	accounts, err := provider.RequestAccounts(ctx)
	if err == nil && len(accounts) == 0 {
		err = errors.New("wallet returned no accounts")
	}
	if err != nil {
		ce := classifyConnectError(err)
		c.logger.Info("Wallet connection failed", zap.Error(err))
		c.setError(ce)
		return c.Session(), ce
	}

	chainID, err := provider.ChainID(ctx)
	if err != nil {
		ce := classifyConnectError(err)
		c.setError(ce)
		return c.Session(), ce
	}

	account := accounts[0]
	c.update(func(s *Session) bool {
		s.Account = &account
		s.ChainID = chainID
		s.Err = nil
		if chainID != c.target.ChainID {
			s.Err = wrongNetworkError(c.target.ChainName)
		}
		return true
	})
	c.logger.Info("🔗 Wallet connected",
		zap.String("account", account.Hex()),
		zap.Uint64("chain_id", chainID))
	return c.Session(), nil
}

// SwitchToTargetNetwork asks the signer to switch to the target chain,
// adding it first when the signer does not know it.
func (c *Connection) SwitchToTargetNetwork(ctx context.Context) error {
	provider, err := c.ensureProvider(ctx)
	if err != nil {
		ce := providerMissingError(err)
		c.setError(ce)
		return ce
	}

	err = provider.SwitchChain(ctx, c.target.ChainID)
	if errors.Is(err, ErrUnrecognizedChain) {
		c.logger.Info("➕ Wallet does not know the target chain, adding it",
			zap.Uint64("chain_id", c.target.ChainID))
		if addErr := provider.AddChain(ctx, c.target); addErr != nil {
			ce := newConnectionError(ErrAddChainFailed, addErr, fmt.Sprintf("Failed to add network: %v", addErr))
			c.setError(ce)
			return ce
		}
		err = provider.SwitchChain(ctx, c.target.ChainID)
	}
	if err != nil {
		ce := newConnectionError(ErrSwitchFailed, err, fmt.Sprintf("Failed to switch network: %v", err))
		c.setError(ce)
		return ce
	}

	c.applyChain(c.target.ChainID)
	return nil
}

// Session returns a copy of the current session.
func (c *Connection) Session() Session {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.session.clone()
}

// Loading reports whether a connect or startup reconnect is in progress.
func (c *Connection) Loading() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.loading
}

// Signer returns the provider used to sign transactions.
func (c *Connection) Signer() (Provider, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.provider == nil {
		return nil, ErrProviderMissing
	}
	return c.provider, nil
}

// TargetChainID returns the chain the storefront transacts on.
func (c *Connection) TargetChainID() uint64 {
	return c.target.ChainID
}

func (c *Connection) ensureProvider(ctx context.Context) (Provider, error) {
	if p, err := c.Signer(); err == nil {
		return p, nil
	}
	if err := c.attach(ctx); err != nil {
		return nil, err
	}
	return c.Signer()
}

// attach locates the provider once and starts the notification loop.
func (c *Connection) attach(ctx context.Context) error {
	c.attachMu.Lock()
	defer c.attachMu.Unlock()

	if c.sub != nil {
		return nil
	}

	provider, err := c.locator.Locate(ctx)
	if err != nil {
		return err
	}
	sub, err := provider.Subscribe(c.ctx, c.notes)
	if err != nil {
		return fmt.Errorf("subscribe to wallet notifications: %w", err)
	}

	c.mu.Lock()
	c.provider = provider
	c.mu.Unlock()
	c.sub = sub

	c.wg.Add(1)
	go c.listen(provider, sub)

	c.logger.Info("👛 Wallet provider attached")
	return nil
}

func (c *Connection) eagerReconnect(ctx context.Context) {
	provider, err := c.Signer()
	if err != nil {
		return
	}
	accounts, err := provider.Accounts(ctx)
	if err != nil {
		c.logger.Warn("Eager reconnect failed", zap.Error(err))
		return
	}
	if len(accounts) == 0 {
		c.logger.Debug("Wallet has no authorized accounts")
		return
	}
	chainID, err := provider.ChainID(ctx)
	if err != nil {
		c.logger.Warn("Eager reconnect could not read chain id", zap.Error(err))
		return
	}

	account := accounts[0]
	c.update(func(s *Session) bool {
		s.Account = &account
		s.ChainID = chainID
		s.Err = nil
		if chainID != c.target.ChainID {
			s.Err = wrongNetworkError(c.target.ChainName)
		}
		return true
	})
	c.logger.Info("🔁 Wallet reconnected", zap.String("account", account.Hex()))
}

// listen handles provider notifications one at a time, in delivery order.
func (c *Connection) listen(provider Provider, sub event.Subscription) {
	defer c.wg.Done()

	for {
		select {
		case <-c.ctx.Done():
			return
		case err, ok := <-sub.Err():
			if ok && err != nil {
				c.logger.Warn("Wallet subscription ended", zap.Error(err))
			}
			return
		case note := <-c.notes:
			c.logger.Debug("Wallet notification", zap.Stringer("kind", note.Kind))
			switch note.Kind {
			case AccountsChanged:
				c.applyAccounts(note.Accounts)
				if len(note.Accounts) > 0 && c.Session().ChainID == 0 {
					if id, err := provider.ChainID(c.ctx); err == nil {
						c.applyChain(id)
					}
				}
			case ChainChanged:
				c.applyChain(note.ChainID)
			}
		}
	}
}

func (c *Connection) applyAccounts(accounts []common.Address) {
	if len(accounts) == 0 {
		c.update(func(s *Session) bool {
			*s = Session{Err: disconnectedError()}
			return true
		})
		c.logger.Info("🔌 Wallet disconnected")
		return
	}

	account := accounts[0]
	c.update(func(s *Session) bool {
		if s.Account != nil && *s.Account == account && s.Err == nil {
			return false
		}
		s.Account = &account
		if s.Err != nil && !errors.Is(s.Err, ErrWrongNetwork) {
			s.Err = nil
		}
		return true
	})
}

// applyChain records the chain of the connected account. Chains reported
// without an account are ignored so a session never carries one alone.
func (c *Connection) applyChain(chainID uint64) {
	c.update(func(s *Session) bool {
		if s.Account == nil {
			return false
		}
		wrong := chainID != c.target.ChainID
		if s.ChainID == chainID && wrong == errors.Is(s.Err, ErrWrongNetwork) {
			return false
		}
		s.ChainID = chainID
		if wrong {
			s.Err = wrongNetworkError(c.target.ChainName)
		} else if errors.Is(s.Err, ErrWrongNetwork) {
			s.Err = nil
		}
		return true
	})
}

func (c *Connection) setError(ce *ConnectionError) {
	c.update(func(s *Session) bool {
		s.Err = ce
		return true
	})
}

func (c *Connection) setLoading(loading bool) {
	c.mu.Lock()
	changed := c.loading != loading
	c.loading = loading
	c.mu.Unlock()
	if changed {
		c.publish(c.Session())
	}
}

// update applies fn and publishes the result while holding emitMu, so
// subscribers see mutations in the order they happened.
func (c *Connection) update(fn func(*Session) bool) {
	c.emitMu.Lock()
	defer c.emitMu.Unlock()

	c.mu.Lock()
	changed := fn(&c.session)
	snapshot := c.session.clone()
	c.mu.Unlock()

	if changed {
		c.publishLocked(snapshot)
	}
}

func (c *Connection) publish(s Session) {
	c.emitMu.Lock()
	defer c.emitMu.Unlock()
	c.publishLocked(s)
}

func (c *Connection) publishLocked(s Session) {
	var err error
	if s.Err != nil {
		err = s.Err
	}
	_ = c.bus.PublishSync(context.Background(), events.SessionChangedEvent{
		BaseEvent: events.NewBase(events.SessionChanged),
		Account:   s.Account,
		ChainID:   s.ChainID,
		Err:       err,
	})
}
