// Package engine implements the ledger and settlement computations: split
// calculation, identity resolution, currency normalization, balance
// aggregation and debt simplification.
//
// Every operation is a pure function of its inputs. Nothing here performs
// I/O, retries, or holds mutable state between calls, so the same snapshot
// always produces the same output and concurrent callers need no
// coordination.
package engine

import "errors"

// Error categories. Callers match with errors.Is; every failure the engine
// reports wraps exactly one of these sentinels.
var (
	// ErrInvalidSplitSpec means the split specification itself is malformed:
	// percentages not summing to 100%, non-positive share counts, or a
	// non-zero amount with no assignees.
	ErrInvalidSplitSpec = errors.New("invalid split specification")

	// ErrSplitMismatch means EXACT per-participant amounts do not sum to the
	// expense amount. The mismatch is reported, never auto-corrected.
	ErrSplitMismatch = errors.New("split amounts do not sum to expense amount")

	// ErrUnassignedParticipant means a split share references a participant
	// outside the expense's participant set.
	ErrUnassignedParticipant = errors.New("participant not in expense participant set")

	// ErrManagementCycle means the management graph violates its integrity
	// invariant: a cycle, a self-reference, or conflicting managers for one
	// entity. The computation fails whole; nothing is partially aggregated.
	ErrManagementCycle = errors.New("management relationship cycle")

	// ErrRateUnavailable means no exchange rate is known for a currency.
	// The caller decides the fallback; the engine never substitutes zero.
	ErrRateUnavailable = errors.New("exchange rate unavailable")

	// ErrUnbalancedLedger means a balance set that must sum to zero does
	// not. It indicates an upstream aggregation bug and is always fatal.
	ErrUnbalancedLedger = errors.New("balances do not sum to zero")
)
