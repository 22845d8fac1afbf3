package database

import (
	"errors"
	"fmt"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"gorm.io/gorm"

	"github.com/chachabrian/mooveit-fleet/internal/store"
)

func TestTranslate(t *testing.T) {
	other := errors.New("connection reset")

	assert.NoError(t, translate(nil))
	assert.ErrorIs(t, translate(gorm.ErrRecordNotFound), store.ErrNotFound)
	assert.ErrorIs(t, translate(gorm.ErrDuplicatedKey), store.ErrConflict)
	assert.ErrorIs(t, translate(fmt.Errorf("commit: %w", &pgconn.PgError{Code: "40001"})), store.ErrConflict)
	assert.ErrorIs(t, translate(&pgconn.PgError{Code: "40P01"}), store.ErrConflict)
	assert.Equal(t, other, translate(other))
}
