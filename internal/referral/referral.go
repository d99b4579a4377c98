// Package referral resolves the referrer credited on purchases.
package referral

import (
	"net/url"
	"strings"
	"sync"

	"github.com/ethereum/go-ethereum/common"
)

// QueryParam is the URL parameter carrying the referrer.
const QueryParam = "ref"

// State is the resolved referrer. Referrer is the zero address unless
// Valid is true.
type State struct {
	Referrer common.Address
	Valid    bool
}

// Resolve validates param against the connected account. A referrer must
// be a well-formed address, pass the EIP-55 checksum when written in mixed
// case, differ from account and not be the zero address.
func Resolve(param string, account *common.Address) State {
	addr, ok := parseAddress(param)
	if !ok || addr == (common.Address{}) {
		return State{}
	}
	if account != nil && *account == addr {
		return State{}
	}
	return State{Referrer: addr, Valid: true}
}

func parseAddress(s string) (common.Address, bool) {
	s = strings.TrimSpace(s)
	if !common.IsHexAddress(s) {
		return common.Address{}, false
	}
	addr := common.HexToAddress(s)

	body := strings.TrimPrefix(strings.TrimPrefix(s, "0x"), "0X")
	if body != strings.ToLower(body) && body != strings.ToUpper(body) {
		if body != addr.Hex()[2:] {
			return common.Address{}, false
		}
	}
	return addr, true
}

// Resolver keeps the referral parameter and the account and re-resolves
// whenever either changes.
type Resolver struct {
	mu      sync.RWMutex
	param   string
	account *common.Address
	state   State
}

func NewResolver() *Resolver {
	return &Resolver{}
}

// SetQuery reads the ref parameter from a raw URL query. A bare address is
// accepted too.
func (r *Resolver) SetQuery(rawQuery string) State {
	param := strings.TrimPrefix(strings.TrimSpace(rawQuery), "?")
	if strings.Contains(param, "=") {
		values, err := url.ParseQuery(param)
		if err != nil {
			param = ""
		} else {
			param = values.Get(QueryParam)
		}
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.param = param
	r.state = Resolve(r.param, r.account)
	return r.state
}

func (r *Resolver) SetAccount(account *common.Address) State {
	r.mu.Lock()
	defer r.mu.Unlock()
	if account != nil {
		acct := *account
		account = &acct
	}
	r.account = account
	r.state = Resolve(r.param, r.account)
	return r.state
}

func (r *Resolver) State() State {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.state
}

// Param returns the raw referrer parameter.
func (r *Resolver) Param() string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.param
}

// Link builds the visitor's own referral link. It is empty without an
// account.
func Link(baseURL string, account *common.Address) string {
	if account == nil {
		return ""
	}
	u, err := url.Parse(baseURL)
	if err != nil {
		return ""
	}
	q := u.Query()
	q.Set(QueryParam, account.Hex())
	u.RawQuery = q.Encode()
	return u.String()
}
