// internal/presale/contract.go
package presale

import (
	"context"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
)

// placeholderAddress ships in sample configs and is never a real sale.
var placeholderAddress = common.HexToAddress("0x1234567890123456789012345678901234567890")

// IsConfigured reports whether addr can be a deployed sale contract.
func IsConfigured(addr common.Address) bool {
	return addr != (common.Address{}) && addr != placeholderAddress
}

// Contract is a read binding over the sale contract. It is safe for
// concurrent use when the caller is.
type Contract struct {
	address common.Address
	caller  ethereum.ContractCaller
}

// NewContract binds the sale at address. It fails with ErrNotConfigured
// for the zero or placeholder address.
func NewContract(address common.Address, caller ethereum.ContractCaller) (*Contract, error) {
	if !IsConfigured(address) {
		return nil, ErrNotConfigured
	}
	return &Contract{address: address, caller: caller}, nil
}

func (c *Contract) Address() common.Address {
	return c.address
}

func (c *Contract) Paused(ctx context.Context) (bool, error) {
	return c.callBool(ctx, MethodPaused)
}

func (c *Contract) ForceActive(ctx context.Context) (bool, error) {
	return c.callBool(ctx, MethodForceActive)
}

// TotalRaised returns the wei raised so far.
func (c *Contract) TotalRaised(ctx context.Context) (*uint256.Int, error) {
	v, err := c.callUint(ctx, MethodTotalRaised)
	if err != nil {
		return nil, err
	}
	out, overflow := uint256.FromBig(v)
	if overflow {
		return nil, &DecodeError{Method: MethodTotalRaised, Err: fmt.Errorf("value %s overflows uint256", v)}
	}
	return out, nil
}

func (c *Contract) ParticipantCount(ctx context.Context) (uint64, error) {
	v, err := c.callUint(ctx, MethodParticipantCount)
	if err != nil {
		return 0, err
	}
	if !v.IsUint64() {
		return 0, &DecodeError{Method: MethodParticipantCount, Err: fmt.Errorf("value %s overflows uint64", v)}
	}
	return v.Uint64(), nil
}

func (c *Contract) callBool(ctx context.Context, method string) (bool, error) {
	v, err := c.call(ctx, method)
	if err != nil {
		return false, err
	}
	b, ok := v.(bool)
	if !ok {
		return false, &DecodeError{Method: method, Err: fmt.Errorf("unexpected type %T", v)}
	}
	return b, nil
}

func (c *Contract) callUint(ctx context.Context, method string) (*big.Int, error) {
	v, err := c.call(ctx, method)
	if err != nil {
		return nil, err
	}
	n, ok := v.(*big.Int)
	if !ok || n == nil || n.Sign() < 0 {
		return nil, &DecodeError{Method: method, Err: fmt.Errorf("unexpected value %v (%T)", v, v)}
	}
	return n, nil
}

func (c *Contract) call(ctx context.Context, method string) (interface{}, error) {
	data, err := parsedABI.Pack(method)
	if err != nil {
		return nil, fmt.Errorf("pack %s: %w", method, err)
	}

	res, err := c.caller.CallContract(ctx, ethereum.CallMsg{To: &c.address, Data: data}, nil)
	if err != nil {
		return nil, fmt.Errorf("call %s: %w", method, err)
	}
	if len(res) == 0 {
		return nil, &DecodeError{Method: method, Err: ErrEmptyResult}
	}

	out, err := parsedABI.Methods[method].Outputs.Unpack(res)
	if err != nil {
		return nil, &DecodeError{Method: method, Err: err}
	}
	if len(out) != 1 {
		return nil, &DecodeError{Method: method, Err: fmt.Errorf("expected 1 output, got %d", len(out))}
	}
	return out[0], nil
}
