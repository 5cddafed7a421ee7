package engine

import (
	"context"
	"errors"
	"fmt"

	"spot-swing-bot/internal/exchange"
	"spot-swing-bot/internal/ledger"
	"spot-swing-bot/internal/risk"
)

// Class is the handling category of a cycle error.
type Class string

const (
	// ClassTransient errors are retried on the next cycle.
	ClassTransient Class = "transient"
	// ClassDataQuality errors skip the symbol.
	ClassDataQuality Class = "data_quality"
	// ClassPersistence errors abandon the ledger write; the prior document stays intact.
	ClassPersistence Class = "persistence"
	// ClassInvalidDecision errors reject the candidate.
	ClassInvalidDecision Class = "invalid_decision"
)

// ErrPersistence marks a failed ledger read or write.
var ErrPersistence = errors.New("engine: ledger unavailable")

func persistence(err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%w: %w", ErrPersistence, err)
}

// Classify maps err onto its handling category. Unknown errors are transient.
func Classify(err error) Class {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrPersistence), errors.Is(err, ledger.ErrLockTimeout):
		return ClassPersistence
	case errors.Is(err, exchange.ErrBadData):
		return ClassDataQuality
	case errors.Is(err, risk.ErrInvalidStop), errors.Is(err, risk.ErrBelowMinNotional),
		errors.Is(err, risk.ErrInvalidQuantity), errors.Is(err, exchange.ErrRejected):
		return ClassInvalidDecision
	case errors.Is(err, exchange.ErrTransient), errors.Is(err, context.DeadlineExceeded):
		return ClassTransient
	}
	return ClassTransient
}
