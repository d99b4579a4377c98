// internal/storefront/service.go
package storefront

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/rovshanmuradov/fito-presale/internal/events"
	"github.com/rovshanmuradov/fito-presale/internal/faq"
	"github.com/rovshanmuradov/fito-presale/internal/monitor"
	"github.com/rovshanmuradov/fito-presale/internal/onramp"
	"github.com/rovshanmuradov/fito-presale/internal/policy"
	"github.com/rovshanmuradov/fito-presale/internal/presale"
	"github.com/rovshanmuradov/fito-presale/internal/referral"
	"github.com/rovshanmuradov/fito-presale/internal/scheduler"
	"github.com/rovshanmuradov/fito-presale/internal/transaction"
	"github.com/rovshanmuradov/fito-presale/internal/viewmodel"
	"github.com/rovshanmuradov/fito-presale/internal/wallet"
)

// PaymentCreator opens card checkouts.
type PaymentCreator interface {
	Configured() bool
	CreatePayment(ctx context.Context, amount decimal.Decimal, account common.Address) (string, error)
}

// FAQSource generates the FAQ list.
type FAQSource interface {
	Generate(ctx context.Context, network faq.Network) faq.Result
}

// Metrics is the union of the reader and coordinator hooks.
type Metrics interface {
	monitor.Metrics
	transaction.Metrics
}

type Config struct {
	Settings viewmodel.Settings
	Contract common.Address
	Target   wallet.ChainParams
	Locator  wallet.Locator
	// Caller serves the read surface and revert replays.
	Caller ethereum.ContractCaller

	PollInterval        time.Duration
	FetchTimeout        time.Duration
	ConfirmInterval     time.Duration
	ConfirmTimeout      time.Duration
	InjectionRetryDelay time.Duration
	ClockInterval       time.Duration

	OnRamp  PaymentCreator
	FAQ     FAQSource
	Network faq.Network

	Bus     *events.Bus
	Metrics Metrics
	Clock   func() time.Time
	Logger  *zap.Logger
}

// Service composes the storefront components and keeps the current view.
type Service struct {
	settings viewmodel.Settings
	contract common.Address
	caller   ethereum.ContractCaller
	onramp   PaymentCreator
	faq      FAQSource
	network  faq.Network
	bus      *events.Bus
	clock    func() time.Time
	tick     time.Duration
	logger   *zap.Logger

	conn     *wallet.Connection
	reader   *monitor.SaleReader
	coord    *transaction.Coordinator
	resolver *referral.Resolver

	mu          sync.Mutex
	view        viewmodel.View
	amount      string
	cardLoading bool
	cardError   string
	lastAccount *common.Address
	lastChain   uint64

	watchMu  sync.Mutex
	watchers map[int]chan viewmodel.View
	nextID   int

	subs   []events.Subscription
	ticker *scheduler.Task
}

func New(config *Config) *Service {
	logger := config.Logger.Named("storefront")
	clock := config.Clock
	if clock == nil {
		clock = time.Now
	}
	tick := config.ClockInterval
	if tick <= 0 {
		tick = time.Second
	}

	var readerMetrics monitor.Metrics
	var txMetrics transaction.Metrics
	if config.Metrics != nil {
		readerMetrics, txMetrics = config.Metrics, config.Metrics
	}

	s := &Service{
		settings: config.Settings,
		contract: config.Contract,
		caller:   config.Caller,
		onramp:   config.OnRamp,
		faq:      config.FAQ,
		network:  config.Network,
		bus:      config.Bus,
		clock:    clock,
		tick:     tick,
		logger:   logger,
		resolver: referral.NewResolver(),
		watchers: make(map[int]chan viewmodel.View),
	}
	if s.onramp != nil && !s.onramp.Configured() {
		s.settings.CardEnabled = false
	}

	s.conn = wallet.NewConnection(&wallet.ConnectionConfig{
		Locator:    config.Locator,
		Target:     config.Target,
		RetryDelay: config.InjectionRetryDelay,
		Bus:        config.Bus,
		Logger:     config.Logger,
	})
	s.reader = monitor.NewSaleReader(&monitor.ReaderConfig{
		Interval:     config.PollInterval,
		FetchTimeout: config.FetchTimeout,
		Bus:          config.Bus,
		Metrics:      readerMetrics,
		Logger:       config.Logger,
	})
	s.coord = transaction.NewCoordinator(&transaction.CoordinatorConfig{
		Contract:  config.Contract,
		Session:   s.conn,
		Refresher: s.reader,
		Gate:      s,
		Confirmer: &transaction.Confirmer{
			Interval: config.ConfirmInterval,
			Timeout:  config.ConfirmTimeout,
			Replayer: config.Caller,
		},
		Bus:     config.Bus,
		Metrics: txMetrics,
		Logger:  config.Logger,
	})
	s.view = s.build()
	return s
}

// Start subscribes to the bus and starts the components. A missing contract
// address is surfaced in the view and does not fail Start.
func (s *Service) Start(ctx context.Context) error {
	s.subs = append(s.subs,
		s.bus.SubscribeFunc(s.onSession, events.SessionChanged),
		s.bus.SubscribeFunc(s.onChange,
			events.SnapshotUpdated, events.SnapshotFailed,
			events.TxSubmitted, events.TxPending, events.TxConfirmed, events.TxFailed, events.TxCleared),
	)

	if err := s.reader.Start(ctx, s.contract, s.caller); err != nil {
		if !errors.Is(err, presale.ErrNotConfigured) {
			return err
		}
		s.logger.Warn("Storefront running without a sale contract")
	}
	s.conn.Start(ctx)

	s.ticker = scheduler.Every(ctx, s.tick, func(context.Context) {
		if s.View().Countdown != nil {
			s.refresh()
		}
	})

	s.logger.Info("🛒 Storefront started",
		zap.String("contract", s.contract.Hex()),
		zap.Uint64("chain_id", s.settings.TargetChainID))
	s.refresh()
	return nil
}

// Stop shuts the components down in reverse start order.
func (s *Service) Stop() {
	s.ticker.Stop()
	s.conn.Stop()
	s.coord.Stop()
	s.reader.Stop()
	for _, sub := range s.subs {
		sub.Unsubscribe()
	}

	s.watchMu.Lock()
	for id, ch := range s.watchers {
		close(ch)
		delete(s.watchers, id)
	}
	s.watchMu.Unlock()
	s.logger.Info("Storefront stopped")
}

// CanTransact implements transaction.SaleGate. It must not take s.mu: the
// coordinator calls it while holding its own lock.
func (s *Service) CanTransact() bool {
	snap := s.reader.State().Snapshot
	if snap == nil {
		return false
	}
	return policy.Evaluate(s.clock(), s.settings.Start, snap.Paused, snap.ForceActive).CanTransact
}

func (s *Service) Connect(ctx context.Context) (wallet.Session, error) {
	return s.conn.Connect(ctx)
}

func (s *Service) SwitchNetwork(ctx context.Context) error {
	return s.conn.SwitchToTargetNetwork(ctx)
}

// Buy submits a purchase of amount, crediting the resolved referrer.
func (s *Service) Buy(amount string) (transaction.Ticket, error) {
	s.SetAmount(amount)
	ref := ""
	if st := s.resolver.State(); st.Valid {
		ref = st.Referrer.Hex()
	}
	return s.coord.Submit(transaction.Purchase(amount, ref))
}

// TogglePause flips the pause flag of the latest snapshot.
func (s *Service) TogglePause() (transaction.Ticket, error) {
	snap, err := s.adminSnapshot()
	if err != nil {
		return transaction.Ticket{}, err
	}
	return s.coord.Submit(transaction.SetPause(!snap.Paused))
}

// ToggleForceActive flips the force-active flag of the latest snapshot.
func (s *Service) ToggleForceActive() (transaction.Ticket, error) {
	snap, err := s.adminSnapshot()
	if err != nil {
		return transaction.Ticket{}, err
	}
	return s.coord.Submit(transaction.SetForceActive(!snap.ForceActive))
}

func (s *Service) adminSnapshot() (*monitor.Snapshot, error) {
	session := s.conn.Session()
	if session.Connected() && *session.Account != s.settings.Admin {
		return nil, adminError(ErrNotAdmin)
	}
	snap := s.reader.State().Snapshot
	if snap == nil {
		return nil, adminError(ErrNotLoaded)
	}
	return snap, nil
}

// Acknowledge clears a settled ticket.
func (s *Service) Acknowledge() bool {
	return s.coord.Acknowledge()
}

// RefreshNow forces an out-of-band sale read.
func (s *Service) RefreshNow() bool {
	return s.reader.RefreshNow()
}

func (s *Service) SetReferralQuery(rawQuery string) referral.State {
	st := s.resolver.SetQuery(rawQuery)
	s.logger.Debug("Referral query set", zap.Bool("valid", st.Valid), zap.String("referrer", st.Referrer.Hex()))
	s.refresh()
	return st
}

// SetAmount stores the entered amount so the view can estimate tokens.
func (s *Service) SetAmount(amount string) {
	s.mu.Lock()
	s.amount = amount
	s.mu.Unlock()
	s.refresh()
}

// BuyWithCard opens a card checkout paying amount out to the connected
// account and returns its URL.
func (s *Service) BuyWithCard(ctx context.Context, amount string) (string, error) {
	if err := s.cardPrecondition(amount); err != nil {
		s.setCard(false, err.Message)
		return "", err
	}

	s.mu.Lock()
	if s.cardLoading {
		s.mu.Unlock()
		return "", cardError(ErrCardInProgress, nil)
	}
	s.cardLoading, s.cardError = true, ""
	s.mu.Unlock()
	s.refresh()

	session := s.conn.Session()
	if !session.Connected() {
		ce := cardError(ErrCardNoAccount, nil)
		s.setCard(false, ce.Message)
		return "", ce
	}
	value, _ := presale.ParseDecimal(amount)
	url, err := s.createPayment(ctx, value, *session.Account)
	if err != nil {
		ce := cardError(ErrPaymentFailed, err)
		s.logger.Warn("Card payment link failed", zap.Error(err))
		s.setCard(false, ce.Message)
		return "", ce
	}
	s.setCard(false, "")
	return url, nil
}

func (s *Service) createPayment(ctx context.Context, amount decimal.Decimal, account common.Address) (string, error) {
	if s.onramp == nil {
		return "", onramp.ErrNotConfigured
	}
	return s.onramp.CreatePayment(ctx, amount, account)
}

func (s *Service) cardPrecondition(amount string) *CardError {
	snap := s.reader.State().Snapshot
	if snap == nil {
		return cardError(ErrCardNotLoaded, nil)
	}
	paused := snap.Paused
	verdict := policy.Evaluate(s.clock(), s.settings.Start, paused, snap.ForceActive)

	switch {
	case paused:
		return cardError(ErrCardPaused, nil)
	case !verdict.IsOpen:
		return cardError(ErrCardNotActive, nil)
	case !s.conn.Session().Connected():
		return cardError(ErrCardNoAccount, nil)
	}
	if _, err := presale.ParseAmount(amount, presale.NativeDecimals); err != nil {
		return cardError(ErrCardAmount, err)
	}
	return nil
}

func (s *Service) setCard(loading bool, msg string) {
	s.mu.Lock()
	s.cardLoading, s.cardError = loading, msg
	s.mu.Unlock()
	s.refresh()
}

// FAQ returns the generated or canned FAQ list.
func (s *Service) FAQ(ctx context.Context) faq.Result {
	if s.faq == nil {
		return faq.Result{Fallback: true}
	}
	return s.faq.Generate(ctx, s.network)
}

// Session returns the current wallet session.
func (s *Service) Session() wallet.Session {
	return s.conn.Session()
}

// Ticket returns the current transaction ticket.
func (s *Service) Ticket() transaction.Ticket {
	return s.coord.Ticket()
}

// SaleState returns the reader state.
func (s *Service) SaleState() monitor.ReaderState {
	return s.reader.State()
}

// View returns the latest view.
func (s *Service) View() viewmodel.View {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.view
}

func (s *Service) onSession(_ context.Context, e events.Event) error {
	se, ok := e.(events.SessionChangedEvent)
	if !ok {
		return nil
	}
	s.resolver.SetAccount(se.Account)

	s.mu.Lock()
	changed := !sameAccount(s.lastAccount, se.Account) || s.lastChain != se.ChainID
	s.lastAccount, s.lastChain = se.Account, se.ChainID
	s.mu.Unlock()

	if changed && se.Account != nil {
		s.reader.RefreshNow()
	}
	s.refresh()
	return nil
}

func (s *Service) onChange(context.Context, events.Event) error {
	s.refresh()
	return nil
}

func sameAccount(a, b *common.Address) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}

func (s *Service) build() viewmodel.View {
	s.mu.Lock()
	amount, loading, cardErr := s.amount, s.cardLoading, s.cardError
	s.mu.Unlock()

	return viewmodel.Build(viewmodel.Inputs{
		Now:         s.clock(),
		Settings:    s.settings,
		Session:     s.conn.Session(),
		Reader:      s.reader.State(),
		Ticket:      s.coord.Ticket(),
		Referral:    s.resolver.State(),
		Amount:      amount,
		CardLoading: loading,
		CardError:   cardErr,
	})
}

// refresh rebuilds the view and pushes it to watchers. watchMu orders
// concurrent refreshes so watchers never see an older view last.
func (s *Service) refresh() {
	s.watchMu.Lock()
	defer s.watchMu.Unlock()

	v := s.build()
	s.mu.Lock()
	s.view = v
	s.mu.Unlock()

	for _, ch := range s.watchers {
		select {
		case ch <- v:
		default:
			// Оставляем только последний вид
			select {
			case <-ch:
			default:
			}
			select {
			case ch <- v:
			default:
			}
		}
	}
}
