//go:generate go run go.uber.org/mock/mockgen -source=user_repository.go -destination=../../mocks/mock_user_repository.go -package=mocks
package storage

import (
	"chat-relay/domain/chat"
	"chat-relay/errors"
	"context"
	stderrors "errors"
	"fmt"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/google/uuid"
)

type IUserRepository interface {
	CreateUser(ctx context.Context, email, hashedPassword string) (User, error)
	GetUserByEmail(ctx context.Context, email string) (User, error)
	GetUserByID(ctx context.Context, id uuid.UUID) (User, error)
}

// User is the stored account. Credentials never leave the service layer.
type User struct {
	ID           uuid.UUID `json:"id"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"password_hash"`
	CreatedAt    time.Time `json:"created_at"`
}

type UserRepository struct {
	db    *badger.DB
	clock Clock
}

func NewUserRepository(db *badger.DB) *UserRepository {
	return &UserRepository{db: db, clock: time.Now}
}

// CreateUser persists the user under its id and indexes it by normalized email.
// A second account with the same email is rejected with ErrUserAlreadyExists.
func (u *UserRepository) CreateUser(ctx context.Context, email, hashedPassword string) (User, error) {
	user := User{
		ID:           uuid.New(),
		Email:        chat.NormalizeEmail(email),
		PasswordHash: hashedPassword,
		CreatedAt:    u.clock().UTC(),
	}
	err := update(ctx, u.db, func(txn *badger.Txn) error {
		taken, err := exists(txn, userEmailKey(user.Email))
		if err != nil {
			return err
		}
		if taken {
			return errors.ErrUserAlreadyExists
		}
		if err = setJSON(txn, userKey(user.ID), user); err != nil {
			return err
		}
		return txn.Set([]byte(userEmailKey(user.Email)), []byte(user.ID.String()))
	})
	if err != nil {
		return User{}, err
	}
	return user, nil
}

func (u *UserRepository) GetUserByEmail(ctx context.Context, email string) (User, error) {
	var user User
	err := u.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(userEmailKey(email)))
		if err != nil {
			return err
		}
		raw, err := item.ValueCopy(nil)
		if err != nil {
			return err
		}
		id, err := uuid.ParseBytes(raw)
		if err != nil {
			return fmt.Errorf("corrupted email index for %s: %w", email, err)
		}
		return getJSON(txn, userKey(id), &user)
	})
	if stderrors.Is(err, badger.ErrKeyNotFound) {
		return User{}, errors.ErrUserNotFound
	}
	return user, err
}

func (u *UserRepository) GetUserByID(ctx context.Context, id uuid.UUID) (User, error) {
	var user User
	err := u.db.View(func(txn *badger.Txn) error {
		return getJSON(txn, userKey(id), &user)
	})
	if stderrors.Is(err, badger.ErrKeyNotFound) {
		return User{}, errors.ErrUserNotFound
	}
	return user, err
}
