package utils

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chachabrian/mooveit-fleet/internal/models"
)

func TestTokenRoundTrip(t *testing.T) {
	id := uuid.New()
	token, err := GenerateToken(id, models.RoleDriver, "secret", time.Hour)
	require.NoError(t, err)

	claims, err := ValidateToken(token, "secret")
	require.NoError(t, err)
	assert.Equal(t, id, claims.UserID)
	assert.Equal(t, models.RoleDriver, claims.Role)
}

func TestValidateTokenRejects(t *testing.T) {
	id := uuid.New()

	token, err := GenerateToken(id, models.RoleAdmin, "secret", time.Hour)
	require.NoError(t, err)
	_, err = ValidateToken(token, "other-secret")
	assert.Error(t, err)

	expired, err := GenerateToken(id, models.RoleAdmin, "secret", -time.Minute)
	require.NoError(t, err)
	_, err = ValidateToken(expired, "secret")
	assert.Error(t, err)

	badRole, err := GenerateToken(id, models.Role("client"), "secret", time.Hour)
	require.NoError(t, err)
	_, err = ValidateToken(badRole, "secret")
	assert.Error(t, err)

	_, err = ValidateToken("not-a-token", "secret")
	assert.Error(t, err)
}
