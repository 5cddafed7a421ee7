// Package exchange holds the error kinds shared by the venue adapters.
package exchange

import "errors"

var (
	// ErrTransient marks failures worth retrying next cycle: network, 5xx, throttling, open breaker.
	ErrTransient = errors.New("exchange: transient failure")
	// ErrRejected marks requests the venue refused: bad symbol, filters, insufficient balance.
	ErrRejected = errors.New("exchange: request rejected")
	// ErrBadData marks responses that could not be interpreted.
	ErrBadData = errors.New("exchange: malformed response")
)
