package statemachine

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chachabrian/mooveit-fleet/internal/apperrors"
)

func tripTable() *Table[string] {
	return New(map[string][]string{
		"ASSIGNED":    {"IN_PROGRESS", "CANCELLED"},
		"IN_PROGRESS": {"COMPLETED", "CANCELLED"},
	}, "COMPLETED", "CANCELLED")
}

func TestIsValidTransition(t *testing.T) {
	tbl := tripTable()

	assert.True(t, tbl.IsValidTransition("ASSIGNED", "IN_PROGRESS"))
	assert.True(t, tbl.IsValidTransition("ASSIGNED", "CANCELLED"))
	assert.True(t, tbl.IsValidTransition("IN_PROGRESS", "COMPLETED"))
	assert.False(t, tbl.IsValidTransition("ASSIGNED", "COMPLETED"))
	assert.False(t, tbl.IsValidTransition("IN_PROGRESS", "ASSIGNED"))
	assert.False(t, tbl.IsValidTransition("COMPLETED", "CANCELLED"))
	assert.False(t, tbl.IsValidTransition("CANCELLED", "ASSIGNED"))
}

func TestIsTerminal(t *testing.T) {
	tbl := tripTable()

	assert.True(t, tbl.IsTerminal("COMPLETED"))
	assert.True(t, tbl.IsTerminal("CANCELLED"))
	assert.False(t, tbl.IsTerminal("ASSIGNED"))
	// unknown states have no edges out
	assert.True(t, tbl.IsTerminal("UNKNOWN"))
}

func TestTerminalWithListedEdgesStaysTerminal(t *testing.T) {
	tbl := New(map[string][]string{
		"a": {"b"},
		"b": {"a"},
	}, "b")

	assert.True(t, tbl.IsTerminal("b"))
	assert.False(t, tbl.IsValidTransition("b", "a"))
}

func TestCheck(t *testing.T) {
	tbl := tripTable()

	require.NoError(t, tbl.Check("ASSIGNED", "IN_PROGRESS"))

	err := tbl.Check("COMPLETED", "CANCELLED")
	require.Error(t, err)
	e, ok := apperrors.As(err)
	require.True(t, ok)
	assert.Equal(t, apperrors.CodeInvalidStateTransition, e.Code)
	assert.Equal(t, apperrors.KindConflict, e.Kind)
	assert.Equal(t, "COMPLETED", e.Details["from"])
	assert.Equal(t, "CANCELLED", e.Details["to"])
}
