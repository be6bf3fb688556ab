package auth

import (
	"context"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newManager(t *testing.T, now time.Time) *TokenManager {
	t.Helper()
	m, err := NewTokenManager("s3cret", "booklify", time.Hour)
	require.NoError(t, err)
	m.now = func() time.Time { return now }
	return m
}

func TestTokenManager_RoundTrip(t *testing.T) {
	now := time.Date(2025, 6, 15, 12, 0, 0, 0, time.UTC)
	m := newManager(t, now)

	raw, err := m.Issue(7, "Thandi Mokoena", "thandi@example.com")
	require.NoError(t, err)

	p, err := m.Verify(raw)
	require.NoError(t, err)
	assert.Equal(t, &Principal{UserID: 7, Name: "Thandi Mokoena", Email: "thandi@example.com", Token: raw}, p)
}

func TestTokenManager_Rejects(t *testing.T) {
	now := time.Date(2025, 6, 15, 12, 0, 0, 0, time.UTC)
	m := newManager(t, now)
	valid, err := m.Issue(7, "", "")
	require.NoError(t, err)

	expired := newManager(t, now.Add(-2*time.Hour))
	expiredToken, err := expired.Issue(7, "", "")
	require.NoError(t, err)

	other, err := NewTokenManager("other", "booklify", time.Hour)
	require.NoError(t, err)
	other.now = m.now
	foreignToken, err := other.Issue(7, "", "")
	require.NoError(t, err)

	wrongIssuer, err := NewTokenManager("s3cret", "someone-else", time.Hour)
	require.NoError(t, err)
	wrongIssuer.now = m.now
	wrongIssuerToken, err := wrongIssuer.Issue(7, "", "")
	require.NoError(t, err)

	badSubject, err := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   "alice",
			Issuer:    "booklify",
			ExpiresAt: jwt.NewNumericDate(now.Add(time.Hour)),
		},
	}).SignedString([]byte("s3cret"))
	require.NoError(t, err)

	noneAlg, err := jwt.NewWithClaims(jwt.SigningMethodNone, Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   "7",
			Issuer:    "booklify",
			ExpiresAt: jwt.NewNumericDate(now.Add(time.Hour)),
		},
	}).SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)

	for _, tt := range []struct {
		name  string
		token string
	}{
		{"Garbage", "not-a-token"},
		{"Tampered", valid + "x"},
		{"Expired", expiredToken},
		{"ForeignSecret", foreignToken},
		{"WrongIssuer", wrongIssuerToken},
		{"NonNumericSubject", badSubject},
		{"NoneAlgorithm", noneAlg},
	} {
		t.Run(tt.name, func(t *testing.T) {
			_, err := m.Verify(tt.token)
			assert.ErrorIs(t, err, ErrInvalidToken)
		})
	}
}

func TestNewTokenManager_RequiresSecret(t *testing.T) {
	_, err := NewTokenManager("", "booklify", time.Hour)
	assert.Error(t, err)
}

func TestIssue_RejectsInvalidUser(t *testing.T) {
	m := newManager(t, time.Now())
	_, err := m.Issue(0, "", "")
	assert.Error(t, err)
}

func TestPrincipalContext(t *testing.T) {
	_, ok := PrincipalFrom(context.Background())
	assert.False(t, ok)

	ctx := WithPrincipal(context.Background(), &Principal{UserID: 7})
	p, ok := PrincipalFrom(ctx)
	require.True(t, ok)
	assert.Equal(t, int64(7), p.UserID)
}
