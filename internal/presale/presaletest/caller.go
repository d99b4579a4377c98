// Package presaletest provides an in-memory sale contract for tests.
package presaletest

import (
	"context"
	"fmt"
	"math/big"
	"sync"

	"github.com/ethereum/go-ethereum"

	"github.com/rovshanmuradov/fito-presale/internal/presale"
)

// State is the contract storage the fake answers from.
type State struct {
	Paused       bool
	ForceActive  bool
	Raised       *big.Int
	Participants *big.Int
}

// Caller implements ethereum.ContractCaller by ABI-encoding State.
type Caller struct {
	mu    sync.Mutex
	state State
	errs  map[string]error
	calls map[string]int
	raw   map[string][]byte

	// Gate, when set, blocks every call until a value is received or the
	// call context ends.
	Gate chan struct{}
}

func NewCaller(state State) *Caller {
	if state.Raised == nil {
		state.Raised = new(big.Int)
	}
	if state.Participants == nil {
		state.Participants = new(big.Int)
	}
	return &Caller{
		state: state,
		errs:  make(map[string]error),
		calls: make(map[string]int),
		raw:   make(map[string][]byte),
	}
}

// Set replaces the storage.
func (c *Caller) Set(state State) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if state.Raised == nil {
		state.Raised = new(big.Int)
	}
	if state.Participants == nil {
		state.Participants = new(big.Int)
	}
	c.state = state
}

// Update mutates the storage in place.
func (c *Caller) Update(fn func(*State)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	fn(&c.state)
}

// Fail makes method return err until cleared with a nil err.
func (c *Caller) Fail(method string, err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err == nil {
		delete(c.errs, method)
		return
	}
	c.errs[method] = err
}

// Raw makes method return the given bytes verbatim.
func (c *Caller) Raw(method string, out []byte) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.raw[method] = out
}

// Calls returns how many times method was called.
func (c *Caller) Calls(method string) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.calls[method]
}

func (c *Caller) CallContract(ctx context.Context, msg ethereum.CallMsg, _ *big.Int) ([]byte, error) {
	if len(msg.Data) < 4 {
		return nil, fmt.Errorf("short calldata")
	}
	parsed := presale.ABI()
	method, err := parsed.MethodById(msg.Data[:4])
	if err != nil {
		return nil, err
	}

	c.mu.Lock()
	c.calls[method.Name]++
	gate := c.Gate
	c.mu.Unlock()

	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.errs[method.Name]; err != nil {
		return nil, err
	}
	if out, ok := c.raw[method.Name]; ok {
		return out, nil
	}

	switch method.Name {
	case presale.MethodPaused:
		return method.Outputs.Pack(c.state.Paused)
	case presale.MethodForceActive:
		return method.Outputs.Pack(c.state.ForceActive)
	case presale.MethodTotalRaised:
		return method.Outputs.Pack(new(big.Int).Set(c.state.Raised))
	case presale.MethodParticipantCount:
		return method.Outputs.Pack(new(big.Int).Set(c.state.Participants))
	default:
		return nil, nil
	}
}
