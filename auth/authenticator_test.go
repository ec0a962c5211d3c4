package auth

import (
	"chat-relay/domain/chat"
	"chat-relay/errors"
	"chat-relay/infrastructure/storage"
	"chat-relay/mocks"
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

func setupUsers(t *testing.T) *storage.UserRepository {
	t.Helper()
	db, err := badger.Open(badger.DefaultOptions("").WithInMemory(true).WithLogger(nil))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return storage.NewUserRepository(db)
}

func TestTokenAuthenticator_Authenticate(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()
	users := setupUsers(t)
	tokens := NewTokenIssuer("secret", time.Hour)
	authenticator := NewTokenAuthenticator(tokens, users)

	user, err := users.CreateUser(ctx, "alice@x.com", "hash")
	req.NoError(err)
	token, err := tokens.GenerateToken(user.ID, user.Email)
	req.NoError(err)

	identity, err := authenticator.Authenticate(ctx, token)
	req.NoError(err)
	req.Equal(user.ID, identity.UserID)
	req.Equal("alice@x.com", identity.Email)
}

func TestTokenAuthenticator_Failures(t *testing.T) {
	ctx := context.Background()
	users := setupUsers(t)
	tokens := NewTokenIssuer("secret", time.Hour)
	authenticator := NewTokenAuthenticator(tokens, users)
	user, err := users.CreateUser(ctx, "alice@x.com", "hash")
	require.NoError(t, err)

	unknownUser, _ := tokens.GenerateToken(uuid.New(), "ghost@x.com")
	wrongEmail, _ := tokens.GenerateToken(user.ID, "mallory@x.com")
	badSubject, _ := jwt.NewWithClaims(jwt.SigningMethodHS256, &CustomClaims{
		Email: user.Email,
		RegisteredClaims: jwt.RegisteredClaims{Subject: "42", Issuer: "chat-relay",
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour))},
	}).SignedString([]byte("secret"))

	tests := []struct {
		name  string
		token string
		want  error
	}{
		{"unknown user", unknownUser, errors.ErrUnauthenticated},
		{"email mismatch", wrongEmail, errors.ErrUnauthenticated},
		{"malformed subject", badSubject, errors.ErrInvalidID},
		{"garbage", "garbage", errors.ErrUnauthenticated},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := authenticator.Authenticate(ctx, tt.token)
			require.ErrorIs(t, err, tt.want)
		})
	}
}

func TestMiddleware(t *testing.T) {
	ctrl := gomock.NewController(t)
	authenticator := mocks.NewMockAuthenticator(ctrl)
	alice := uuid.New()

	handler := Middleware(authenticator)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		identity, ok := IdentityFromContext(r.Context())
		require.True(t, ok)
		require.Equal(t, alice, identity.UserID)
		w.WriteHeader(http.StatusNoContent)
	}))

	t.Run("missing header", func(t *testing.T) {
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/sessions", nil))
		require.Equal(t, http.StatusUnauthorized, rec.Code)
	})

	t.Run("rejected token", func(t *testing.T) {
		authenticator.EXPECT().Authenticate(gomock.Any(), "bad").Return(identityOf(uuid.Nil), errors.ErrUnauthenticated)
		r := httptest.NewRequest(http.MethodGet, "/sessions", nil)
		r.Header.Set("Authorization", "Bearer bad")
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, r)
		require.Equal(t, http.StatusUnauthorized, rec.Code)
	})

	t.Run("valid token", func(t *testing.T) {
		authenticator.EXPECT().Authenticate(gomock.Any(), "good").Return(identityOf(alice), nil)
		r := httptest.NewRequest(http.MethodGet, "/sessions", nil)
		r.Header.Set("Authorization", "bearer good")
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, r)
		require.Equal(t, http.StatusNoContent, rec.Code)
	})
}

func identityOf(id uuid.UUID) chat.Identity {
	return chat.Identity{UserID: id}
}
