package pending

import (
	"context"
	"fmt"

	"github.com/ethereum/go-ethereum/common"

	"github.com/mrz1836/conduit/internal/adapter"
)

// StatusSource reports the confirmation state of a transaction.
// Every adapter.Adapter satisfies it.
type StatusSource interface {
	TransactionStatus(ctx context.Context, hash common.Hash) (adapter.TxStatus, error)
}

// Logger is the interface for checker logging.
type Logger interface {
	Debug(format string, args ...any)
	Error(format string, args ...any)
}

// Outcome is the observed result of one pending transaction.
type Outcome struct {
	Hash   common.Hash      `json:"hash"`
	Status adapter.TxStatus `json:"status"`
}

// Checker resolves mined transactions out of a Tracker.
type Checker struct {
	tracker *Tracker
	logger  Logger
}

// NewChecker returns a checker for tracker. logger may be nil.
func NewChecker(tracker *Tracker, logger Logger) *Checker {
	return &Checker{tracker: tracker, logger: logger}
}

// Check queries source for each of account's pending transactions and
// resolves the ones that were mined, whether they succeeded or reverted.
// A lookup failure leaves that transaction pending and is returned after
// the remaining transactions have been checked.
func (c *Checker) Check(ctx context.Context, account common.Address, source StatusSource) ([]Outcome, error) {
	records := c.tracker.Pending(account)
	outcomes := make([]Outcome, 0, len(records))
	var firstErr error

	for _, rec := range records {
		if err := ctx.Err(); err != nil {
			return outcomes, err
		}

		status, err := source.TransactionStatus(ctx, rec.Hash)
		if err != nil {
			c.logError("checking %s: %v", rec.Hash.Hex(), err)
			if firstErr == nil {
				firstErr = fmt.Errorf("checking transaction %s: %w", rec.Hash.Hex(), err)
			}
			continue
		}

		outcomes = append(outcomes, Outcome{Hash: rec.Hash, Status: status})
		if status != adapter.TxPending {
			c.debug("transaction %s %s", rec.Hash.Hex(), status)
			c.tracker.Resolve(account, rec.Hash)
		}
	}

	return outcomes, firstErr
}

func (c *Checker) debug(format string, args ...any) {
	if c.logger != nil {
		c.logger.Debug(format, args...)
	}
}

func (c *Checker) logError(format string, args ...any) {
	if c.logger != nil {
		c.logger.Error(format, args...)
	}
}
