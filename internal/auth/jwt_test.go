package auth

import (
	"testing"
	"time"

	"github.com/OmPals/VirtualClassroom/internal/models"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

func newUser(role models.Role) *models.User {
	return &models.User{ID: primitive.NewObjectID(), Username: "alice", Role: role}
}

func TestAccessTokenRoundTrip(t *testing.T) {
	m := NewTokenManager("secret", "issuer", "audience", time.Hour)
	user := newUser(models.RoleStudent)

	token, err := m.Generate(user)
	require.NoError(t, err)

	claims, err := m.Parse(token)
	require.NoError(t, err)
	assert.Equal(t, user.ID.Hex(), claims.UserID)
	assert.Equal(t, "alice", claims.Username)
	assert.Equal(t, "student", claims.Role)
	assert.Equal(t, user.ID.Hex(), claims.Subject)
}

func TestParseRejectsWrongSecret(t *testing.T) {
	token, err := NewTokenManager("secret", "issuer", "audience", time.Hour).Generate(newUser(models.RoleTutor))
	require.NoError(t, err)

	_, err = NewTokenManager("other", "issuer", "audience", time.Hour).Parse(token)
	assert.ErrorIs(t, err, jwt.ErrTokenSignatureInvalid)
}

func TestParseRejectsWrongAudience(t *testing.T) {
	token, err := NewTokenManager("secret", "issuer", "audience", time.Hour).Generate(newUser(models.RoleTutor))
	require.NoError(t, err)

	_, err = NewTokenManager("secret", "issuer", "someone-else", time.Hour).Parse(token)
	assert.ErrorIs(t, err, jwt.ErrTokenInvalidAudience)
}

func TestParseRejectsExpiredToken(t *testing.T) {
	m := NewTokenManager("secret", "issuer", "audience", 7*24*time.Hour)
	issued := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	m.now = func() time.Time { return issued }

	token, err := m.Generate(newUser(models.RoleStudent))
	require.NoError(t, err)

	m.now = func() time.Time { return issued.Add(6 * 24 * time.Hour) }
	_, err = m.Parse(token)
	require.NoError(t, err)

	m.now = func() time.Time { return issued.Add(8 * 24 * time.Hour) }
	_, err = m.Parse(token)
	assert.ErrorIs(t, err, jwt.ErrTokenExpired)
}
