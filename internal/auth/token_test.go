package auth

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIssuer_RoundTrip(t *testing.T) {
	iss := NewIssuer("test-secret", time.Hour)

	token, expires, err := iss.Issue("doctor-42", RoleDoctor)
	require.NoError(t, err)
	assert.WithinDuration(t, time.Now().Add(time.Hour), expires, 5*time.Second)

	p, err := iss.Parse(token)
	require.NoError(t, err)
	assert.Equal(t, "doctor-42", p.Subject)
	assert.Equal(t, RoleDoctor, p.Role)
}

func TestIssuer_RejectsExpired(t *testing.T) {
	iss := NewIssuer("test-secret", time.Minute)
	iss.now = func() time.Time { return time.Now().Add(-2 * time.Minute) }

	token, _, err := iss.Issue("p1", RolePatient)
	require.NoError(t, err)

	iss.now = time.Now
	_, err = iss.Parse(token)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestIssuer_RejectsForeignSecretAndAlgorithm(t *testing.T) {
	token, _, err := NewIssuer("other-secret", time.Hour).Issue("p1", RolePatient)
	require.NoError(t, err)

	_, err = NewIssuer("test-secret", time.Hour).Parse(token)
	assert.ErrorIs(t, err, ErrInvalidToken)

	unsigned, err := jwt.NewWithClaims(jwt.SigningMethodNone, &Claims{
		Role: RoleAdmin,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    issuerName,
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	}).SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)

	_, err = NewIssuer("test-secret", time.Hour).Parse(unsigned)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestIssuer_RejectsUnknownRole(t *testing.T) {
	iss := NewIssuer("test-secret", time.Hour)
	token, _, err := iss.Issue("x", Role("NURSE"))
	require.NoError(t, err)

	_, err = iss.Parse(token)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestParseRole(t *testing.T) {
	r, err := ParseRole(" admin ")
	require.NoError(t, err)
	assert.Equal(t, RoleAdmin, r)

	_, err = ParseRole("root")
	assert.Error(t, err)
}
