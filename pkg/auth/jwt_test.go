package auth

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerateAndValidateToken(t *testing.T) {
	svc := NewJWTService("test-secret", time.Hour, "clinicore-test")
	userID := uuid.New()

	token, err := svc.GenerateToken(userID, "doc@clinic.example", "doctor")
	require.NoError(t, err)
	require.NotEmpty(t, token)

	claims, err := svc.ValidateToken(token)
	require.NoError(t, err)
	assert.Equal(t, userID, claims.UserID)
	assert.Equal(t, "doc@clinic.example", claims.Email)
	assert.Equal(t, "doctor", claims.Role)
	assert.Equal(t, "clinicore-test", claims.Issuer)
}

func TestValidateTokenRejectsWrongSecret(t *testing.T) {
	issuer := NewJWTService("secret-a", time.Hour, "clinicore-test")
	verifier := NewJWTService("secret-b", time.Hour, "clinicore-test")

	token, err := issuer.GenerateToken(uuid.New(), "doc@clinic.example", "doctor")
	require.NoError(t, err)

	_, err = verifier.ValidateToken(token)
	assert.Error(t, err)
}

func TestValidateTokenRejectsExpired(t *testing.T) {
	svc := NewJWTService("test-secret", -time.Minute, "clinicore-test")

	token, err := svc.GenerateToken(uuid.New(), "doc@clinic.example", "doctor")
	require.NoError(t, err)

	_, err = svc.ValidateToken(token)
	assert.Error(t, err)
}

func TestValidateTokenRejectsGarbage(t *testing.T) {
	svc := NewJWTService("test-secret", time.Hour, "clinicore-test")
	_, err := svc.ValidateToken("not.a.token")
	assert.Error(t, err)
}
