package chain

import "errors"

// Set of error variables for the simulated chain.
var (
	ErrNotFound       = errors.New("not found")
	ErrNonceTooLow    = errors.New("nonce too low")
	ErrNoTransactions = errors.New("no transactions in mempool")
	ErrNoContract     = errors.New("no contract at address")
)
