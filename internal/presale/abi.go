// internal/presale/abi.go
package presale

import (
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
)

// Contract methods used by the storefront.
const (
	MethodPaused           = "paused"
	MethodForceActive      = "forceActive"
	MethodTotalRaised      = "totalWeiRaised"
	MethodParticipantCount = "participantCount"
	MethodPause            = "pause"
	MethodUnpause          = "unpause"
	MethodSetForceActive   = "setForceActive"
	MethodBuyTokens        = "buyTokens"
)

// ABIJSON is the minimal interface of the deployed sale contract.
const ABIJSON = `[
	{"type":"function","name":"paused","stateMutability":"view","inputs":[],"outputs":[{"name":"","type":"bool"}]},
	{"type":"function","name":"forceActive","stateMutability":"view","inputs":[],"outputs":[{"name":"","type":"bool"}]},
	{"type":"function","name":"totalWeiRaised","stateMutability":"view","inputs":[],"outputs":[{"name":"","type":"uint256"}]},
	{"type":"function","name":"participantCount","stateMutability":"view","inputs":[],"outputs":[{"name":"","type":"uint256"}]},
	{"type":"function","name":"pause","stateMutability":"nonpayable","inputs":[],"outputs":[]},
	{"type":"function","name":"unpause","stateMutability":"nonpayable","inputs":[],"outputs":[]},
	{"type":"function","name":"setForceActive","stateMutability":"nonpayable","inputs":[{"name":"_forceActive","type":"bool"}],"outputs":[]},
	{"type":"function","name":"buyTokens","stateMutability":"payable","inputs":[{"name":"referrer","type":"address"}],"outputs":[]}
]`

var parsedABI = mustParseABI()

func mustParseABI() abi.ABI {
	parsed, err := abi.JSON(strings.NewReader(ABIJSON))
	if err != nil {
		panic("presale: invalid contract ABI: " + err.Error())
	}
	return parsed
}

// ABI returns the parsed sale contract interface.
func ABI() abi.ABI {
	return parsedABI
}
