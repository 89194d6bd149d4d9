// Package auth — регистрация резидентов и сессионная аутентификация.
package auth

import (
	"context"
	"errors"
	"fmt"

	"github.com/GRI-ESPCI/intrarez/internal/lib/password"
	"github.com/GRI-ESPCI/intrarez/internal/lib/token"
	"github.com/GRI-ESPCI/intrarez/internal/models"
)

// ErrInvalidCredentials — неверное имя пользователя или пароль.
var ErrInvalidCredentials = errors.New("invalid credentials")

// ErrUsernameTaken — имя пользователя уже занято.
var ErrUsernameTaken = errors.New("username already taken")

// Repository описывает методы хранилища аккаунтов.
type Repository interface {
	CreateAccount(ctx context.Context, account models.Account) (int, error)
	FindAccount(ctx context.Context, id int) (*models.Account, error)
	FindAccountByUsername(ctx context.Context, username string) (*models.Account, error)
}

// Service отвечает за регистрацию, вход и восстановление сессии.
type Service struct {
	repo   Repository
	tokens token.Maker
}

// New создает новый Service.
func New(repo Repository, tokens token.Maker) *Service {
	return &Service{repo: repo, tokens: tokens}
}

// Register создаёт аккаунт с захешированным паролем в состоянии trial
// и возвращает его ID.
func (s *Service) Register(ctx context.Context, req models.RegisterAccountRequest) (int, error) {
	const op = "auth.Register"

	existing, err := s.repo.FindAccountByUsername(ctx, req.Username)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}
	if existing != nil {
		return 0, ErrUsernameTaken
	}

	hash, err := password.Hash(req.Password)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}
	locale := req.Locale
	if locale == "" {
		locale = "fr"
	}
	account := models.Account{
		Username:     req.Username,
		Email:        req.Email,
		FirstName:    req.FirstName,
		LastName:     req.LastName,
		Promo:        req.Promo,
		Locale:       locale,
		SubState:     models.SubStateTrial,
		PasswordHash: hash,
	}
	id, err := s.repo.CreateAccount(ctx, account)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}
	return id, nil
}

// Login проверяет пароль и выпускает сессионный токен.
// Несуществующий аккаунт и неверный пароль неразличимы для вызывающего.
func (s *Service) Login(ctx context.Context, username, rawPassword string) (string, *models.Account, error) {
	const op = "auth.Login"

	account, err := s.repo.FindAccountByUsername(ctx, username)
	if err != nil {
		return "", nil, fmt.Errorf("%s: %w", op, err)
	}
	if account == nil {
		return "", nil, ErrInvalidCredentials
	}
	if err := password.Compare(account.PasswordHash, rawPassword); err != nil {
		return "", nil, ErrInvalidCredentials
	}

	sessionToken, err := s.tokens.Generate(account.ID, account.Username, account.IsGri)
	if err != nil {
		return "", nil, fmt.Errorf("%s: %w", op, err)
	}
	return sessionToken, account, nil
}

// Authenticate восстанавливает аккаунт из сессионного токена.
// Невалидный токен или исчезнувший аккаунт дают (nil, nil) — аноним.
func (s *Service) Authenticate(ctx context.Context, tokenStr string) (*models.Account, error) {
	const op = "auth.Authenticate"

	claims, err := s.tokens.Parse(tokenStr)
	if err != nil {
		return nil, nil
	}
	account, err := s.repo.FindAccount(ctx, claims.AccountID)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return account, nil
}
