package storage

import (
	"chat-relay/errors"
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

func TestUserRepository_CreateAndFind(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()
	repo := NewUserRepository(SetupTestDB(t))

	// Given a registered user
	user, err := repo.CreateUser(ctx, "Alice@Example.com ", "hash")
	req.NoError(err)
	req.Equal("alice@example.com", user.Email)

	// Then it is found by id and by email regardless of case
	byID, err := repo.GetUserByID(ctx, user.ID)
	req.NoError(err)
	req.Equal(user, byID)

	byEmail, err := repo.GetUserByEmail(ctx, "ALICE@example.com")
	req.NoError(err)
	req.Equal(user.ID, byEmail.ID)
}

func TestUserRepository_DuplicateEmail(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()
	repo := NewUserRepository(SetupTestDB(t))

	_, err := repo.CreateUser(ctx, "bob@example.com", "hash")
	req.NoError(err)

	_, err = repo.CreateUser(ctx, "BOB@example.com", "other")
	req.ErrorIs(err, errors.ErrUserAlreadyExists)
}

func TestUserRepository_NotFound(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()
	repo := NewUserRepository(SetupTestDB(t))

	_, err := repo.GetUserByEmail(ctx, "nobody@example.com")
	req.ErrorIs(err, errors.ErrUserNotFound)

	_, err = repo.GetUserByID(ctx, uuid.New())
	req.ErrorIs(err, errors.ErrUserNotFound)
}
