package auth

import (
	"chat-relay/errors"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

// cheap keeps the suite fast; production uses DefaultParams.
var cheap = Params{Memory: 1024, Iterations: 1, Parallelism: 1, SaltLength: 16, KeyLength: 32}

func TestHashAndCompare(t *testing.T) {
	req := require.New(t)
	password := "correct horse battery 9"

	hash, err := cheap.Hash(password)
	req.NoError(err)
	req.True(strings.HasPrefix(hash, "$argon2id$v=19$m=1024,t=1,p=1$"))

	match, err := ComparePassword(password, hash)
	req.NoError(err)
	req.True(match)

	match, err = ComparePassword("wrong password 9", hash)
	req.NoError(err)
	req.False(match)

	// Two hashes of the same password differ by their salt
	other, err := cheap.Hash(password)
	req.NoError(err)
	req.NotEqual(hash, other)
}

func TestComparePassword_RejectsGarbage(t *testing.T) {
	req := require.New(t)
	_, err := ComparePassword("x", "plain-text")
	req.Error(err)
	_, err = ComparePassword("x", "$bcrypt$v=19$m=1,t=1,p=1$c2FsdA$aGFzaA")
	req.Error(err)
}

func TestRegistrationValidation(t *testing.T) {
	tests := []struct {
		name string
		req  RegisterRequest
		want error
	}{
		{"valid request", RegisterRequest{"test@example.com", "password1"}, nil},
		{"invalid email", RegisterRequest{"notanemail", "password1"}, errors.ErrInvalidPayload},
		{"password too short", RegisterRequest{"test@example.com", "pass1"}, errors.ErrInvalidPayload},
		{"password too long", RegisterRequest{"test@example.com", strings.Repeat("a1", 65)}, errors.ErrInvalidPayload},
		{"missing digit", RegisterRequest{"test@example.com", "passwordonly"}, errors.ErrInvalidPassword},
		{"missing letter", RegisterRequest{"test@example.com", "1234567890"}, errors.ErrInvalidPassword},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateRegister(tt.req)
			if tt.want == nil {
				require.NoError(t, err)
				return
			}
			require.ErrorIs(t, err, tt.want)
		})
	}
}

func TestTokenIssuer_RoundTrip(t *testing.T) {
	req := require.New(t)
	issuer := NewTokenIssuer("test-secret", time.Hour)
	userID := uuid.New()

	token, err := issuer.GenerateToken(userID, "a@x.com")
	req.NoError(err)

	claims, err := issuer.ValidateToken(token)
	req.NoError(err)
	req.Equal(userID.String(), claims.Subject)
	req.Equal("a@x.com", claims.Email)
	req.Equal("chat-relay", claims.Issuer)
}

func TestTokenIssuer_Rejects(t *testing.T) {
	issuer := NewTokenIssuer("test-secret", time.Hour)
	userID := uuid.New()

	expired := NewTokenIssuer("test-secret", time.Hour)
	expired.now = func() time.Time { return time.Now().Add(-2 * time.Hour) }
	expiredToken, err := expired.GenerateToken(userID, "a@x.com")
	require.NoError(t, err)

	foreignToken, err := NewTokenIssuer("other-secret", time.Hour).GenerateToken(userID, "a@x.com")
	require.NoError(t, err)

	noneToken, err := jwt.NewWithClaims(jwt.SigningMethodNone, &CustomClaims{
		RegisteredClaims: jwt.RegisteredClaims{Subject: userID.String(), Issuer: "chat-relay",
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour))},
	}).SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)

	for name, token := range map[string]string{
		"expired":        expiredToken,
		"foreign secret": foreignToken,
		"alg none":       noneToken,
		"garbage":        "not.a.jwt",
	} {
		t.Run(name, func(t *testing.T) {
			_, err := issuer.ValidateToken(token)
			require.ErrorIs(t, err, errors.ErrUnauthenticated)
		})
	}
}

func BenchmarkHashPassword(b *testing.B) {
	for i := 0; i < b.N; i++ {
		_, _ = HashPassword("A-very-long-and-complex-password-for-bench-123!")
	}
}
