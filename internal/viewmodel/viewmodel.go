// internal/viewmodel/viewmodel.go
package viewmodel

import (
	"fmt"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"

	"github.com/rovshanmuradov/fito-presale/internal/config"
	"github.com/rovshanmuradov/fito-presale/internal/monitor"
	"github.com/rovshanmuradov/fito-presale/internal/policy"
	"github.com/rovshanmuradov/fito-presale/internal/presale"
	"github.com/rovshanmuradov/fito-presale/internal/referral"
	"github.com/rovshanmuradov/fito-presale/internal/transaction"
	"github.com/rovshanmuradov/fito-presale/internal/wallet"
)

// Action is what pressing the primary button does.
type Action string

const (
	ActionNone    Action = ""
	ActionConnect Action = "connect"
	ActionSwitch  Action = "switch"
	ActionBuy     Action = "buy"
)

// Labels that callers match on.
const (
	LabelProcessing   = "Processing..."
	LabelLoading      = "Loading Status..."
	LabelNotActive    = "Presale Not Active"
	LabelPaused       = "Presale Paused"
	LabelUnavailable  = "Status Unavailable"
	LabelConnect      = "Connect Wallet to Buy"
	LabelCard         = "Get ETH with Card"
	HeadlineLive      = "Presale is Live!"
	HeadlinePaused    = "Presale Paused"
	HeadlineUpcoming  = "Presale Starts In"
	TxSuccessMessage  = "Transaction Successful!"
	ReferralApplied   = "Referral code applied!"
	CardConnectHint   = "Connect wallet to enable card payments."
	ForceStartLabel   = "Force Start Presale"
	ForceStopLabel    = "Deactivate Force Start"
	PauseLabel        = "Pause Presale"
	ResumeLabel       = "Resume Presale"
	defaultPaySymbol  = "ETH"
	raisedPlaces      = 4
	estimatePlaces    = 2
	percentPlaces     = 2
	hundred           = 100
	explorerTxSegment = "/tx/"
)

// Tier is one allocation band of the hard cap.
type Tier struct {
	Name       string
	Percentage decimal.Decimal
}

// Settings are the static parameters of the storefront.
type Settings struct {
	Start                 time.Time
	HardCap               decimal.Decimal
	Price                 decimal.Decimal
	Tiers                 []Tier
	Admin                 common.Address
	TargetChainID         uint64
	NetworkName           string
	NetworkShortName      string
	TokenSymbol           string
	PaySymbol             string
	ExplorerURL           string
	SiteURL               string
	ReferralRewardPercent float64
	CardEnabled           bool
}

// SettingsFromConfig derives Settings from the loaded configuration.
func SettingsFromConfig(cfg *config.Config) Settings {
	tiers := make([]Tier, 0, len(cfg.Presale.Tiers))
	for _, t := range cfg.Presale.Tiers {
		tiers = append(tiers, Tier{Name: t.Name, Percentage: decimal.NewFromFloat(t.Percentage)})
	}
	explorer := ""
	if len(cfg.Network.ExplorerURLs) > 0 {
		explorer = cfg.Network.ExplorerURLs[0]
	}
	return Settings{
		Start:                 cfg.Presale.StartAt(),
		HardCap:               cfg.Presale.HardCapAmount(),
		Price:                 cfg.Presale.PriceAmount(),
		Tiers:                 tiers,
		Admin:                 cfg.Presale.Admin(),
		TargetChainID:         cfg.Network.ChainID,
		NetworkName:           cfg.Network.Name,
		NetworkShortName:      cfg.Network.ShortName,
		TokenSymbol:           cfg.Network.Currency.Symbol,
		PaySymbol:             defaultPaySymbol,
		ExplorerURL:           explorer,
		SiteURL:               cfg.Presale.SiteURL,
		ReferralRewardPercent: cfg.Presale.ReferralRewardPercent,
		CardEnabled:           cfg.OnRamp.APIKey != "",
	}
}

// Inputs is everything the view is derived from.
type Inputs struct {
	Now      time.Time
	Settings Settings
	Session  wallet.Session
	Reader   monitor.ReaderState
	Ticket   transaction.Ticket
	Referral referral.State
	// Amount is the entered purchase amount in the pay currency.
	Amount      string
	CardLoading bool
	CardError   string
}

type Button struct {
	Label   string `json:"label"`
	Enabled bool   `json:"enabled"`
	Action  Action `json:"action,omitempty"`
}

type TierSegment struct {
	Name    string  `json:"name"`
	Width   float64 `json:"width"`
	Fill    float64 `json:"fill"`
	Percent string  `json:"percent"`
}

type Progress struct {
	Raised       string        `json:"raised"`
	Goal         string        `json:"goal"`
	Percent      float64       `json:"percent"`
	PercentLabel string        `json:"percentLabel"`
	Participants uint64        `json:"participants"`
	Tiers        []TierSegment `json:"tiers"`
}

type Countdown struct {
	Days    int `json:"days"`
	Hours   int `json:"hours"`
	Minutes int `json:"minutes"`
	Seconds int `json:"seconds"`
}

type TicketView struct {
	ID          string `json:"id,omitempty"`
	Action      string `json:"action,omitempty"`
	Status      string `json:"status"`
	Hash        string `json:"hash,omitempty"`
	ExplorerURL string `json:"explorerUrl,omitempty"`
	Message     string `json:"message,omitempty"`
	Success     bool   `json:"success"`
}

type ReferralView struct {
	Link          string  `json:"link,omitempty"`
	Referrer      string  `json:"referrer,omitempty"`
	Applied       bool    `json:"applied"`
	Notice        string  `json:"notice,omitempty"`
	RewardPercent float64 `json:"rewardPercent"`
}

type AdminPanel struct {
	Visible     bool   `json:"visible"`
	ForceLabel  string `json:"forceLabel,omitempty"`
	PauseLabel  string `json:"pauseLabel,omitempty"`
	Enabled     bool   `json:"enabled"`
	ForceActive bool   `json:"forceActive"`
	Paused      bool   `json:"paused"`
}

type CardView struct {
	Button
	Hint  string `json:"hint,omitempty"`
	Error string `json:"error,omitempty"`
}

// View is the complete display state of the storefront.
type View struct {
	Headline    string     `json:"headline"`
	Reason      string     `json:"reason"`
	IsOpen      bool       `json:"isOpen"`
	CanTransact bool       `json:"canTransact"`
	Countdown   *Countdown `json:"countdown,omitempty"`

	Loading bool `json:"loading"`
	Stale   bool `json:"stale"`

	Account         string `json:"account,omitempty"`
	ChainID         uint64 `json:"chainId,omitempty"`
	Connected       bool   `json:"connected"`
	WrongNetwork    bool   `json:"wrongNetwork"`
	NetworkNotice   string `json:"networkNotice,omitempty"`
	ConnectionError string `json:"connectionError,omitempty"`

	Error     string `json:"error,omitempty"`
	ConfigErr bool   `json:"configError"`

	Primary Button   `json:"primary"`
	Card    CardView `json:"card"`

	Progress        Progress `json:"progress"`
	Amount          string   `json:"amount"`
	EstimatedTokens string   `json:"estimatedTokens"`
	TokensPerNative string   `json:"tokensPerNative"`
	PriceLabel      string   `json:"priceLabel"`

	Ticket   TicketView   `json:"ticket"`
	Referral ReferralView `json:"referral"`
	Admin    AdminPanel   `json:"admin"`

	UpdatedAt time.Time `json:"updatedAt"`
}

// Build recombines the component states into a View. It has no side
// effects.
func Build(in Inputs) View {
	s := in.Settings
	if s.PaySymbol == "" {
		s.PaySymbol = defaultPaySymbol
	}

	var paused, forceActive bool
	snap := in.Reader.Snapshot
	if snap != nil {
		paused, forceActive = snap.Paused, snap.ForceActive
	}
	verdict := policy.Evaluate(in.Now, s.Start, paused, forceActive)

	v := View{
		Reason:      verdict.Reason.String(),
		IsOpen:      verdict.IsOpen,
		CanTransact: verdict.CanTransact && snap != nil,
		Loading:     in.Reader.Loading,
		Stale:       snap != nil && snap.Stale,
		Connected:   in.Session.Connected(),
		ChainID:     in.Session.ChainID,
		ConfigErr:   in.Reader.ConfigErr,
		Amount:      in.Amount,
		UpdatedAt:   in.Now,
	}

	switch {
	case !verdict.IsOpen:
		v.Headline = HeadlineUpcoming
		r := policy.Countdown(in.Now, s.Start)
		v.Countdown = &Countdown{Days: r.Days, Hours: r.Hours, Minutes: r.Minutes, Seconds: r.Seconds}
	case paused:
		v.Headline = HeadlinePaused
	default:
		v.Headline = HeadlineLive
	}

	if v.Connected {
		v.Account = in.Session.Account.Hex()
		v.WrongNetwork = in.Session.ChainID != s.TargetChainID
		if v.WrongNetwork {
			v.NetworkNotice = fmt.Sprintf("Wrong Network! Your wallet is on chain ID %d.", in.Session.ChainID)
		}
	}
	if in.Session.Err != nil {
		v.ConnectionError = in.Session.Err.Message
	}

	v.Error = errorText(in)
	v.Primary = primaryButton(in, s, verdict, paused, v.WrongNetwork)
	v.Card = cardButton(in, s, verdict, paused)
	v.Progress = progress(s, snap)
	v.TokensPerNative, v.PriceLabel = price(s)
	v.EstimatedTokens = estimate(s, in.Amount)
	v.Ticket = ticketView(in.Ticket, s)
	v.Referral = referralView(in, s)
	v.Admin = adminPanel(in, s, paused, forceActive)
	return v
}

// errorText picks the visible error: transaction, then read, then
// configuration.
func errorText(in Inputs) string {
	if in.Ticket.Status == transaction.StatusFailed {
		if msg := in.Ticket.ErrorMessage(); msg != "" {
			return msg
		}
	}
	if in.Reader.Err != nil {
		return in.Reader.Err.Message
	}
	return ""
}

func primaryButton(in Inputs, s Settings, verdict policy.Verdict, paused, wrongNetwork bool) Button {
	switch {
	case in.Ticket.Status.InFlight():
		return Button{Label: LabelProcessing}
	case in.Reader.Loading:
		return Button{Label: LabelLoading}
	case in.Reader.Snapshot == nil:
		return Button{Label: LabelUnavailable}
	case !verdict.IsOpen:
		return Button{Label: LabelNotActive}
	case paused:
		return Button{Label: LabelPaused}
	case !in.Session.Connected():
		return Button{Label: LabelConnect, Enabled: true, Action: ActionConnect}
	case wrongNetwork:
		return Button{Label: "Switch to " + s.NetworkShortName, Enabled: true, Action: ActionSwitch}
	default:
		return Button{Label: "Buy " + s.TokenSymbol + " with Crypto", Enabled: true, Action: ActionBuy}
	}
}

func cardButton(in Inputs, s Settings, verdict policy.Verdict, paused bool) CardView {
	card := CardView{Button: Button{Label: LabelCard}, Error: in.CardError}
	if in.CardLoading {
		card.Label = LabelProcessing
	}
	known := !in.Reader.Loading && in.Reader.Snapshot != nil
	card.Enabled = s.CardEnabled &&
		known &&
		verdict.IsOpen &&
		!paused &&
		in.Session.Connected() &&
		!in.CardLoading
	if known && !in.Session.Connected() && verdict.IsOpen && !paused {
		card.Hint = CardConnectHint
	}
	return card
}

// progress measures raised against the tiered goal. The goal is the share
// of the hard cap allotted to tiers, not the hard cap itself.
func progress(s Settings, snap *monitor.Snapshot) Progress {
	total := decimal.Zero
	for _, t := range s.Tiers {
		total = total.Add(t.Percentage)
	}
	goal := s.HardCap.Mul(total).Div(decimal.NewFromInt(hundred))

	raised := decimal.Zero
	p := Progress{}
	if snap != nil {
		if snap.RaisedWei != nil {
			raised = presale.ToDecimal(snap.RaisedWei.ToBig(), presale.NativeDecimals)
		}
		p.Participants = snap.ParticipantCount
	}

	percent := decimal.Zero
	if goal.IsPositive() {
		percent = raised.Div(goal).Mul(decimal.NewFromInt(hundred))
		if percent.GreaterThan(decimal.NewFromInt(hundred)) {
			percent = decimal.NewFromInt(hundred)
		}
		if percent.IsNegative() {
			percent = decimal.Zero
		}
	}

	p.Raised = raised.Truncate(raisedPlaces).String()
	p.Goal = goal.String()
	p.Percent = percent.Round(percentPlaces).InexactFloat64()
	p.PercentLabel = percent.StringFixed(percentPlaces)

	start := decimal.Zero
	for _, t := range s.Tiers {
		width := decimal.Zero
		if total.IsPositive() {
			width = t.Percentage.Mul(decimal.NewFromInt(hundred)).Div(total)
		}
		fill := decimal.Zero
		if percent.GreaterThan(start) {
			fill = decimal.Min(percent.Sub(start), width)
		}
		p.Tiers = append(p.Tiers, TierSegment{
			Name:    t.Name,
			Width:   width.Round(percentPlaces).InexactFloat64(),
			Fill:    fill.Round(percentPlaces).InexactFloat64(),
			Percent: t.Percentage.String(),
		})
		start = start.Add(width)
	}
	return p
}

func price(s Settings) (string, string) {
	if !s.Price.IsPositive() {
		return "0", ""
	}
	per := decimal.NewFromInt(1).Div(s.Price).Round(estimatePlaces)
	label := fmt.Sprintf("1 %s = %s %s", s.PaySymbol, groupThousands(per.String()), s.TokenSymbol)
	return per.String(), label
}

func estimate(s Settings, amount string) string {
	zero := decimal.Zero.StringFixed(estimatePlaces)
	amount = strings.TrimSpace(amount)
	if amount == "" || !s.Price.IsPositive() {
		return zero
	}
	wei, err := presale.ParseAmount(amount, presale.NativeDecimals)
	if err != nil {
		return zero
	}
	return presale.ToDecimal(wei, presale.NativeDecimals).Div(s.Price).StringFixed(estimatePlaces)
}

func ticketView(t transaction.Ticket, s Settings) TicketView {
	tv := TicketView{
		ID:      t.ID,
		Status:  t.Status.String(),
		Message: t.ErrorMessage(),
	}
	if t.ID != "" {
		tv.Action = t.Action.String()
	}
	if t.HasHash() {
		tv.Hash = t.Hash.Hex()
		if s.ExplorerURL != "" {
			tv.ExplorerURL = strings.TrimRight(s.ExplorerURL, "/") + explorerTxSegment + tv.Hash
		}
	}
	if t.Status == transaction.StatusConfirmed {
		tv.Success = true
		tv.Message = TxSuccessMessage
	}
	return tv
}

func referralView(in Inputs, s Settings) ReferralView {
	rv := ReferralView{RewardPercent: s.ReferralRewardPercent}
	if s.SiteURL != "" {
		rv.Link = referral.Link(s.SiteURL, in.Session.Account)
	}
	if in.Referral.Valid {
		rv.Referrer = in.Referral.Referrer.Hex()
		rv.Applied = !in.Ticket.HasHash() && in.Ticket.Status != transaction.StatusFailed
		if rv.Applied {
			rv.Notice = ReferralApplied
		}
	}
	return rv
}

func adminPanel(in Inputs, s Settings, paused, forceActive bool) AdminPanel {
	if !in.Session.Connected() || *in.Session.Account != s.Admin {
		return AdminPanel{}
	}
	panel := AdminPanel{
		Visible:     true,
		Enabled:     !in.Ticket.Status.InFlight(),
		ForceActive: forceActive,
		Paused:      paused,
		ForceLabel:  ForceStartLabel,
		PauseLabel:  PauseLabel,
	}
	if forceActive {
		panel.ForceLabel = ForceStopLabel
	}
	if paused {
		panel.PauseLabel = ResumeLabel
	}
	if !panel.Enabled {
		panel.ForceLabel, panel.PauseLabel = LabelProcessing, LabelProcessing
	}
	return panel
}

// groupThousands inserts commas into the integer part of a decimal string.
func groupThousands(s string) string {
	intPart, frac, hasFrac := strings.Cut(s, ".")
	if len(intPart) <= 3 {
		return s
	}
	var b strings.Builder
	lead := len(intPart) % 3
	if lead > 0 {
		b.WriteString(intPart[:lead])
	}
	for i := lead; i < len(intPart); i += 3 {
		if b.Len() > 0 {
			b.WriteByte(',')
		}
		b.WriteString(intPart[i : i+3])
	}
	if hasFrac {
		b.WriteByte('.')
		b.WriteString(frac)
	}
	return b.String()
}
