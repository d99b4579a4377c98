// internal/wallet/errors.go
package wallet

import (
	"errors"
	"fmt"
)

// Connection error kinds. A *ConnectionError matches its kind with errors.Is.
var (
	ErrProviderMissing = errors.New("wallet provider not found")
	ErrUserRejected    = errors.New("request rejected by user")
	ErrDisconnected    = errors.New("wallet disconnected")
	ErrWrongNetwork    = errors.New("wrong network")
	ErrAddChainFailed  = errors.New("add chain failed")
	ErrSwitchFailed    = errors.New("switch chain failed")
	ErrUnknown         = errors.New("unknown wallet error")

	// ErrUnrecognizedChain is returned by providers asked to switch to a
	// chain they do not know yet.
	ErrUnrecognizedChain = errors.New("unrecognized chain")
)

// EIP-1193 provider error codes.
const (
	CodeUserRejected      = 4001
	CodeUnrecognizedChain = 4902
)

// ConnectionError is a non-fatal wallet problem shown to the visitor.
type ConnectionError struct {
	Kind    error
	Message string
	Cause   error
}

func (e *ConnectionError) Error() string {
	return e.Message
}

func (e *ConnectionError) Unwrap() []error {
	if e.Cause == nil {
		return []error{e.Kind}
	}
	return []error{e.Kind, e.Cause}
}

func newConnectionError(kind error, cause error, message string) *ConnectionError {
	return &ConnectionError{Kind: kind, Message: message, Cause: cause}
}

func providerMissingError(cause error) *ConnectionError {
	return newConnectionError(ErrProviderMissing, cause,
		"No wallet provider found. Install or start a wallet to continue.")
}

func disconnectedError() *ConnectionError {
	return newConnectionError(ErrDisconnected, nil, "Wallet disconnected. Please connect again.")
}

func wrongNetworkError(networkName string) *ConnectionError {
	return newConnectionError(ErrWrongNetwork, nil,
		fmt.Sprintf("Wrong Network. Please switch to %s.", networkName))
}

// classifyConnectError maps a failed account request to a connection error.
func classifyConnectError(err error) *ConnectionError {
	if errors.Is(err, ErrUserRejected) {
		return newConnectionError(ErrUserRejected, err, "Connection request rejected by user.")
	}
	return newConnectionError(ErrUnknown, err,
		fmt.Sprintf("An unknown error occurred while connecting: %v", err))
}
