package viewmodel

import (
	"errors"
	"math/big"
	"strings"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rovshanmuradov/fito-presale/internal/monitor"
	"github.com/rovshanmuradov/fito-presale/internal/referral"
	"github.com/rovshanmuradov/fito-presale/internal/transaction"
	"github.com/rovshanmuradov/fito-presale/internal/wallet"
)

const chainID = 7777

var (
	start  = time.Date(2025, 8, 31, 0, 0, 0, 0, time.UTC)
	admin  = common.HexToAddress("0xacF2bBEF2aEA2942cF740D8115d107107Da7106A")
	buyer  = common.HexToAddress("0x00000000000000000000000000000000000b0b0b")
	before = start.Add(-(26*time.Hour + 3*time.Minute + 4*time.Second))
	after  = start.Add(time.Hour)
)

func settings() Settings {
	return Settings{
		Start:   start,
		HardCap: decimal.NewFromInt(100),
		Price:   decimal.RequireFromString("0.0001"),
		Tiers: []Tier{
			{Name: "Tier 1 (Whales)", Percentage: decimal.NewFromInt(35)},
			{Name: "Tier 2 (Investors)", Percentage: decimal.NewFromInt(25)},
			{Name: "Tier 3 (General Public)", Percentage: decimal.NewFromInt(20)},
		},
		Admin:                 admin,
		TargetChainID:         chainID,
		NetworkName:           "Fitochain Mainnet",
		NetworkShortName:      "fitochain",
		TokenSymbol:           "FITO",
		ExplorerURL:           "https://explorer.fitochain.com/",
		SiteURL:               "https://presale.fitochain.com/",
		ReferralRewardPercent: 0.5,
		CardEnabled:           true,
	}
}

func ether(n int64) *uint256.Int {
	return new(uint256.Int).Mul(uint256.NewInt(uint64(n)), uint256.NewInt(1e18))
}

func loaded(paused, force bool) monitor.ReaderState {
	return monitor.ReaderState{Snapshot: &monitor.Snapshot{
		Paused:           paused,
		ForceActive:      force,
		RaisedWei:        ether(20),
		ParticipantCount: 12,
		FetchedAt:        after,
	}}
}

func session(acct common.Address, chain uint64) wallet.Session {
	return wallet.Session{Account: &acct, ChainID: chain}
}

func TestPrimaryButton(t *testing.T) {
	tests := []struct {
		name    string
		in      Inputs
		label   string
		enabled bool
		action  Action
	}{
		{
			name:  "tx in flight wins over loading",
			in:    Inputs{Now: after, Reader: monitor.ReaderState{Loading: true}, Ticket: transaction.Ticket{ID: "t", Status: transaction.StatusPending}},
			label: LabelProcessing,
		},
		{
			name:  "loading",
			in:    Inputs{Now: after, Reader: monitor.ReaderState{Loading: true}},
			label: LabelLoading,
		},
		{
			name:  "first fetch failed",
			in:    Inputs{Now: after, Reader: monitor.ReaderState{Err: &monitor.ReadError{Message: "read failed"}}, Session: session(buyer, chainID)},
			label: LabelUnavailable,
		},
		{
			name:  "contract not configured",
			in:    Inputs{Now: after, Reader: monitor.ReaderState{ConfigErr: true, Err: &monitor.ReadError{Message: "Configuration Error"}}, Session: session(buyer, chainID)},
			label: LabelUnavailable,
		},
		{
			name:  "processing wins over unknown state",
			in:    Inputs{Now: after, Ticket: transaction.Ticket{ID: "t", Status: transaction.StatusSubmitting}},
			label: LabelProcessing,
		},
		{
			name:  "not started",
			in:    Inputs{Now: before, Reader: loaded(false, false), Session: session(buyer, chainID)},
			label: LabelNotActive,
		},
		{
			name:  "not started but paused reads not active",
			in:    Inputs{Now: before, Reader: loaded(true, false)},
			label: LabelNotActive,
		},
		{
			name:  "paused",
			in:    Inputs{Now: after, Reader: loaded(true, false), Session: session(buyer, chainID)},
			label: LabelPaused,
		},
		{
			name:    "disconnected",
			in:      Inputs{Now: after, Reader: loaded(false, false)},
			label:   LabelConnect,
			enabled: true,
			action:  ActionConnect,
		},
		{
			name:    "wrong network",
			in:      Inputs{Now: after, Reader: loaded(false, false), Session: session(buyer, 1)},
			label:   "Switch to fitochain",
			enabled: true,
			action:  ActionSwitch,
		},
		{
			name:    "ready",
			in:      Inputs{Now: after, Reader: loaded(false, false), Session: session(buyer, chainID)},
			label:   "Buy FITO with Crypto",
			enabled: true,
			action:  ActionBuy,
		},
		{
			name:    "force active before start",
			in:      Inputs{Now: before, Reader: loaded(false, true), Session: session(buyer, chainID)},
			label:   "Buy FITO with Crypto",
			enabled: true,
			action:  ActionBuy,
		},
		{
			name:    "settled ticket does not block",
			in:      Inputs{Now: after, Reader: loaded(false, false), Session: session(buyer, chainID), Ticket: transaction.Ticket{ID: "t", Status: transaction.StatusConfirmed}},
			label:   "Buy FITO with Crypto",
			enabled: true,
			action:  ActionBuy,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.in.Settings = settings()
			v := Build(tt.in)
			assert.Equal(t, tt.label, v.Primary.Label)
			assert.Equal(t, tt.enabled, v.Primary.Enabled)
			assert.Equal(t, tt.action, v.Primary.Action)
		})
	}
}

func TestHeadlineAndCountdown(t *testing.T) {
	v := Build(Inputs{Now: before, Settings: settings(), Reader: loaded(false, false)})
	assert.Equal(t, HeadlineUpcoming, v.Headline)
	assert.Equal(t, "NOT_STARTED", v.Reason)
	require.NotNil(t, v.Countdown)
	assert.Equal(t, Countdown{Days: 1, Hours: 2, Minutes: 3, Seconds: 4}, *v.Countdown)

	v = Build(Inputs{Now: after, Settings: settings(), Reader: loaded(true, false)})
	assert.Equal(t, HeadlinePaused, v.Headline)
	assert.Equal(t, "PAUSED", v.Reason)
	assert.Nil(t, v.Countdown)
	assert.False(t, v.CanTransact)

	v = Build(Inputs{Now: start, Settings: settings(), Reader: loaded(false, false)})
	assert.Equal(t, HeadlineLive, v.Headline)
	assert.True(t, v.CanTransact)
}

func TestProgress(t *testing.T) {
	v := Build(Inputs{Now: after, Settings: settings(), Reader: loaded(false, false)})
	p := v.Progress

	assert.Equal(t, "20", p.Raised)
	assert.Equal(t, "80", p.Goal)
	assert.Equal(t, 25.0, p.Percent)
	assert.Equal(t, "25.00", p.PercentLabel)
	assert.Equal(t, uint64(12), p.Participants)

	require.Len(t, p.Tiers, 3)
	assert.Equal(t, 43.75, p.Tiers[0].Width)
	assert.Equal(t, 25.0, p.Tiers[0].Fill)
	assert.Equal(t, 31.25, p.Tiers[1].Width)
	assert.Equal(t, 0.0, p.Tiers[1].Fill)
	assert.Equal(t, 25.0, p.Tiers[2].Width)
	assert.Equal(t, "35", p.Tiers[0].Percent)
}

func TestProgressClampsAndSpansTiers(t *testing.T) {
	state := loaded(false, false)
	state.Snapshot.RaisedWei = ether(60)
	p := Build(Inputs{Now: after, Settings: settings(), Reader: state}).Progress
	assert.Equal(t, 75.0, p.Percent)
	assert.Equal(t, 43.75, p.Tiers[0].Fill)
	assert.Equal(t, 31.25, p.Tiers[1].Fill)
	assert.Equal(t, 0.0, p.Tiers[2].Fill)

	state.Snapshot.RaisedWei = ether(500)
	p = Build(Inputs{Now: after, Settings: settings(), Reader: state}).Progress
	assert.Equal(t, 100.0, p.Percent)
	assert.Equal(t, "100.00", p.PercentLabel)
	assert.Equal(t, 25.0, p.Tiers[2].Fill)
}

func TestProgressZeroGoal(t *testing.T) {
	s := settings()
	s.Tiers = nil
	p := Build(Inputs{Now: after, Settings: s, Reader: loaded(false, false)}).Progress
	assert.Equal(t, 0.0, p.Percent)
	assert.Equal(t, "0", p.Goal)
	assert.Empty(t, p.Tiers)

	p = Build(Inputs{Now: after, Settings: settings()}).Progress
	assert.Equal(t, "0", p.Raised)
	assert.Equal(t, 0.0, p.Percent)
}

func TestErrorPrecedence(t *testing.T) {
	readErr := &monitor.ReadError{Message: "read failed"}
	failed := transaction.Ticket{
		ID:     "t",
		Status: transaction.StatusFailed,
		Err:    &transaction.TxError{Kind: transaction.KindUserRejected},
	}
	connErr := &wallet.ConnectionError{Kind: wallet.ErrUserRejected, Message: "User rejected the connection request."}

	v := Build(Inputs{Now: after, Settings: settings(), Reader: monitor.ReaderState{Err: readErr}, Ticket: failed})
	assert.Equal(t, "Transaction rejected by user", v.Error)

	v = Build(Inputs{Now: after, Settings: settings(), Reader: monitor.ReaderState{Err: readErr}})
	assert.Equal(t, "read failed", v.Error)

	v = Build(Inputs{
		Now:      after,
		Settings: settings(),
		Reader:   monitor.ReaderState{ConfigErr: true, Err: &monitor.ReadError{Message: "Configuration Error"}},
		Session:  wallet.Session{Err: connErr},
	})
	assert.Equal(t, "Configuration Error", v.Error)
	assert.True(t, v.ConfigErr)
	assert.Equal(t, "User rejected the connection request.", v.ConnectionError)
}

func TestWrongNetworkNotice(t *testing.T) {
	v := Build(Inputs{Now: after, Settings: settings(), Reader: loaded(false, false), Session: session(buyer, 56)})
	assert.True(t, v.WrongNetwork)
	assert.Equal(t, "Wrong Network! Your wallet is on chain ID 56.", v.NetworkNotice)
	assert.Equal(t, buyer.Hex(), v.Account)

	v = Build(Inputs{Now: after, Settings: settings(), Reader: loaded(false, false), Session: session(buyer, chainID)})
	assert.False(t, v.WrongNetwork)
	assert.Empty(t, v.NetworkNotice)
}

func TestAmounts(t *testing.T) {
	v := Build(Inputs{Now: after, Settings: settings(), Amount: "1.5"})
	assert.Equal(t, "10000", v.TokensPerNative)
	assert.Equal(t, "1 ETH = 10,000 FITO", v.PriceLabel)
	assert.Equal(t, "15000.00", v.EstimatedTokens)

	for _, amount := range []string{"", "abc", "-1", "0", "1e60", "1e200000000", "1E-200000000", "1" + strings.Repeat("0", 60)} {
		assert.Equal(t, "0.00", Build(Inputs{Now: after, Settings: settings(), Amount: amount}).EstimatedTokens, amount)
	}
}

func TestTicketView(t *testing.T) {
	hash := common.HexToHash("0xabc")
	ticket := transaction.Ticket{
		ID:     "t1",
		Action: transaction.ActionPurchase,
		Status: transaction.StatusPending,
		Hash:   hash,
		Value:  big.NewInt(1),
	}
	tv := Build(Inputs{Now: after, Settings: settings(), Ticket: ticket}).Ticket
	assert.Equal(t, "PENDING", tv.Status)
	assert.Equal(t, "purchase", tv.Action)
	assert.Equal(t, "https://explorer.fitochain.com/tx/"+hash.Hex(), tv.ExplorerURL)
	assert.False(t, tv.Success)

	ticket.Status = transaction.StatusConfirmed
	tv = Build(Inputs{Now: after, Settings: settings(), Ticket: ticket}).Ticket
	assert.True(t, tv.Success)
	assert.Equal(t, TxSuccessMessage, tv.Message)

	tv = Build(Inputs{Now: after, Settings: settings()}).Ticket
	assert.Equal(t, "IDLE", tv.Status)
	assert.Empty(t, tv.Action)
	assert.Empty(t, tv.ExplorerURL)
}

func TestReferralPanel(t *testing.T) {
	ref := referral.State{Referrer: admin, Valid: true}

	rv := Build(Inputs{Now: after, Settings: settings(), Session: session(buyer, chainID), Referral: ref}).Referral
	assert.True(t, rv.Applied)
	assert.Equal(t, ReferralApplied, rv.Notice)
	assert.Equal(t, admin.Hex(), rv.Referrer)
	assert.Equal(t, "https://presale.fitochain.com/?ref="+buyer.Hex(), rv.Link)
	assert.Equal(t, 0.5, rv.RewardPercent)

	pending := transaction.Ticket{ID: "t", Status: transaction.StatusPending, Hash: common.HexToHash("0x1")}
	rv = Build(Inputs{Now: after, Settings: settings(), Referral: ref, Ticket: pending}).Referral
	assert.False(t, rv.Applied, "hidden once a transaction hash is shown")
	assert.Empty(t, rv.Link)

	failed := transaction.Ticket{ID: "t", Status: transaction.StatusFailed, Err: &transaction.TxError{Cause: errors.New("x")}}
	rv = Build(Inputs{Now: after, Settings: settings(), Referral: ref, Ticket: failed}).Referral
	assert.False(t, rv.Applied)

	rv = Build(Inputs{Now: after, Settings: settings()}).Referral
	assert.False(t, rv.Applied)
	assert.Empty(t, rv.Referrer)
}

func TestAdminPanel(t *testing.T) {
	lower := common.HexToAddress("0xacf2bbef2aea2942cf740d8115d107107da7106a")

	p := Build(Inputs{Now: after, Settings: settings(), Reader: loaded(false, false), Session: session(lower, chainID)}).Admin
	assert.True(t, p.Visible)
	assert.True(t, p.Enabled)
	assert.Equal(t, ForceStartLabel, p.ForceLabel)
	assert.Equal(t, PauseLabel, p.PauseLabel)

	p = Build(Inputs{Now: after, Settings: settings(), Reader: loaded(true, true), Session: session(admin, chainID)}).Admin
	assert.Equal(t, ForceStopLabel, p.ForceLabel)
	assert.Equal(t, ResumeLabel, p.PauseLabel)
	assert.True(t, p.Paused)
	assert.True(t, p.ForceActive)

	busy := transaction.Ticket{ID: "t", Status: transaction.StatusSubmitting}
	p = Build(Inputs{Now: after, Settings: settings(), Reader: loaded(false, false), Session: session(admin, chainID), Ticket: busy}).Admin
	assert.False(t, p.Enabled)
	assert.Equal(t, LabelProcessing, p.ForceLabel)

	p = Build(Inputs{Now: after, Settings: settings(), Session: session(buyer, chainID)}).Admin
	assert.Equal(t, AdminPanel{}, p)
}

func TestCardButton(t *testing.T) {
	c := Build(Inputs{Now: after, Settings: settings(), Reader: loaded(false, false), Session: session(buyer, chainID)}).Card
	assert.True(t, c.Enabled)
	assert.Equal(t, LabelCard, c.Label)
	assert.Empty(t, c.Hint)

	c = Build(Inputs{Now: after, Settings: settings(), Reader: loaded(false, false)}).Card
	assert.False(t, c.Enabled)
	assert.Equal(t, CardConnectHint, c.Hint)

	c = Build(Inputs{Now: after, Settings: settings(), Reader: loaded(false, false), Session: session(buyer, chainID), CardLoading: true, CardError: "boom"}).Card
	assert.False(t, c.Enabled)
	assert.Equal(t, LabelProcessing, c.Label)
	assert.Equal(t, "boom", c.Error)

	c = Build(Inputs{Now: after, Settings: settings(), Reader: loaded(true, false), Session: session(buyer, chainID)}).Card
	assert.False(t, c.Enabled)
	assert.Empty(t, c.Hint)

	s := settings()
	s.CardEnabled = false
	c = Build(Inputs{Now: after, Settings: s, Reader: loaded(false, false), Session: session(buyer, chainID)}).Card
	assert.False(t, c.Enabled)
}

func TestUnknownSaleStateBlocksActions(t *testing.T) {
	for name, reader := range map[string]monitor.ReaderState{
		"first fetch failed": {Err: &monitor.ReadError{Message: "read failed"}},
		"config error":       {ConfigErr: true, Err: &monitor.ReadError{Message: "Configuration Error"}},
	} {
		t.Run(name, func(t *testing.T) {
			v := Build(Inputs{Now: after, Settings: settings(), Reader: reader, Session: session(buyer, chainID)})
			assert.False(t, v.CanTransact)
			assert.False(t, v.Primary.Enabled)
			assert.Equal(t, ActionNone, v.Primary.Action)
			assert.False(t, v.Card.Enabled)

			v = Build(Inputs{Now: after, Settings: settings(), Reader: reader})
			assert.Empty(t, v.Card.Hint)
		})
	}
}

func TestGroupThousands(t *testing.T) {
	assert.Equal(t, "999", groupThousands("999"))
	assert.Equal(t, "1,000", groupThousands("1000"))
	assert.Equal(t, "1,234,567.25", groupThousands("1234567.25"))
	assert.Equal(t, "100,000", groupThousands("100000"))
}
