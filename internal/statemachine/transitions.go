// Package statemachine holds immutable transition tables for lifecycle entities.
package statemachine

import (
	"fmt"

	"github.com/chachabrian/mooveit-fleet/internal/apperrors"
)

// Table is a directed graph of allowed status changes.
type Table[S comparable] struct {
	next     map[S]map[S]struct{}
	terminal map[S]struct{}
}

// New builds a table from an adjacency list. States with no outgoing edges
// are terminal whether or not they are listed in terminal.
func New[S comparable](next map[S][]S, terminal ...S) *Table[S] {
	t := &Table[S]{
		next:     make(map[S]map[S]struct{}, len(next)),
		terminal: make(map[S]struct{}, len(terminal)),
	}
	for from, tos := range next {
		set := make(map[S]struct{}, len(tos))
		for _, to := range tos {
			set[to] = struct{}{}
		}
		t.next[from] = set
	}
	for _, s := range terminal {
		t.terminal[s] = struct{}{}
	}
	return t
}

func (t *Table[S]) IsTerminal(s S) bool {
	if _, ok := t.terminal[s]; ok {
		return true
	}
	return len(t.next[s]) == 0
}

func (t *Table[S]) IsValidTransition(from, to S) bool {
	if t.IsTerminal(from) {
		return false
	}
	_, ok := t.next[from][to]
	return ok
}

// Check returns an INVALID_STATE_TRANSITION conflict when from→to is not allowed.
func (t *Table[S]) Check(from, to S) error {
	if t.IsValidTransition(from, to) {
		return nil
	}
	return apperrors.Conflict(
		apperrors.CodeInvalidStateTransition,
		fmt.Sprintf("cannot transition from %v to %v", from, to),
		map[string]interface{}{"from": fmt.Sprint(from), "to": fmt.Sprint(to)},
	)
}
