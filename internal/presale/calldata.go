// internal/presale/calldata.go
package presale

import (
	"fmt"

	"github.com/ethereum/go-ethereum/common"
)

// PackBuyTokens encodes a purchase crediting referrer. The zero address
// means no referrer.
func PackBuyTokens(referrer common.Address) ([]byte, error) {
	return pack(MethodBuyTokens, referrer)
}

// PackSetPaused encodes pause() or unpause().
func PackSetPaused(paused bool) ([]byte, error) {
	if paused {
		return pack(MethodPause)
	}
	return pack(MethodUnpause)
}

func PackSetForceActive(active bool) ([]byte, error) {
	return pack(MethodSetForceActive, active)
}

func pack(method string, args ...interface{}) ([]byte, error) {
	data, err := parsedABI.Pack(method, args...)
	if err != nil {
		return nil, fmt.Errorf("pack %s: %w", method, err)
	}
	return data, nil
}
