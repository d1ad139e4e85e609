// Package models defines the core domain records for the settler engine.
//
// # Records
//
//   - Expense: a paid amount with a split specification, owned by a group
//   - ExpenseItem: line item of an ITEMIZED expense
//   - ExpenseSplit: derived per-participant share, regenerated on every change
//   - Settlement: a recorded payment between two participants
//   - Relationships: guest-claim pointers and management edges for a group
//   - Transaction: one leg of a computed settlement plan
//
// # Design Principles
//
//  1. **Money is integer minor units**: every amount is an int64 count of the
//     currency's smallest denomination (cents). Floating point never touches
//     monetary values; exchange rates are decimal strings applied with
//     explicit rounding in the engine.
//  2. **Participants are polymorphic keys**: a ParticipantID pairs a kind
//     (user or guest) with an ID string, so guests and registered users can
//     never collide even when their underlying IDs do.
//  3. **Derived data is never stored as truth**: splits and balances are
//     always recomputable from the expense set; a stored split is a cache of
//     the calculator output, nothing more.
//  4. **Avoid circular references**: records reference each other by ID,
//     never by pointer.
package models
