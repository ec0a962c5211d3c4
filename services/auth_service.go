package services

import (
	"chat-relay/auth"
	"chat-relay/errors"
	"chat-relay/infrastructure/storage"
	"context"
	"fmt"

	"github.com/google/uuid"
)

type IAuthService interface {
	Register(ctx context.Context, email, password string) (Token, error)
	Login(ctx context.Context, email, password string) (Token, error)
	Me(ctx context.Context, userID uuid.UUID) (storage.User, error)
}

type AuthService struct {
	userRepository storage.IUserRepository
	tokens         *auth.TokenIssuer
	params         auth.Params
}

type Token string

func NewAuthService(repo storage.IUserRepository, tokens *auth.TokenIssuer) *AuthService {
	return &AuthService{userRepository: repo, tokens: tokens, params: auth.DefaultParams}
}

// WithPasswordParams overrides the argon2id cost, tests use a cheap one.
func (s *AuthService) WithPasswordParams(p auth.Params) *AuthService {
	s.params = p
	return s
}

func (s *AuthService) Register(ctx context.Context, email, password string) (Token, error) {
	// Checked before any expensive hashing.
	if err := auth.ValidateRegister(auth.RegisterRequest{Email: email, Password: password}); err != nil {
		return "", err
	}

	hashedPassword, err := s.params.Hash(password)
	if err != nil {
		return "", fmt.Errorf("hashing failed: %w", err)
	}

	user, err := s.userRepository.CreateUser(ctx, email, hashedPassword)
	if err != nil {
		return "", err
	}

	token, err := s.tokens.GenerateToken(user.ID, user.Email)
	if err != nil {
		return "", errors.ErrTokenGeneration
	}
	return Token(token), nil
}

func (s *AuthService) Login(ctx context.Context, email, password string) (Token, error) {
	if err := auth.ValidateLogin(auth.LoginRequest{Email: email, Password: password}); err != nil {
		return "", errors.ErrInvalidCredentials
	}

	user, err := s.userRepository.GetUserByEmail(ctx, email)
	if err != nil {
		// Same answer for unknown email and wrong password
		return "", errors.ErrInvalidCredentials
	}

	match, err := auth.ComparePassword(password, user.PasswordHash)
	if err != nil || !match {
		return "", errors.ErrInvalidCredentials
	}

	token, err := s.tokens.GenerateToken(user.ID, user.Email)
	if err != nil {
		return "", errors.ErrTokenGeneration
	}
	return Token(token), nil
}

func (s *AuthService) Me(ctx context.Context, userID uuid.UUID) (storage.User, error) {
	return s.userRepository.GetUserByID(ctx, userID)
}
