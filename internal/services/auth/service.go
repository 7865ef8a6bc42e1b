// Package auth covers registration, login and token refresh. The
// engines never see any of this; they take the acting account as an
// explicit parameter.
package auth

import (
	"errors"
	"log"

	"pesaflow/internal/models"
	"pesaflow/internal/repositories"
	"pesaflow/internal/utils"
	"pesaflow/internal/validation"

	"golang.org/x/crypto/bcrypt"
)

// RegisterInput is a new account signup.
type RegisterInput struct {
	Email    string
	Password string
	Name     string
	Phone    string
	IsAgent  bool
}

type Service interface {
	Register(input RegisterInput) (*models.Account, error)
	Login(email, phone, password string) (*models.Account, string, string, error)
	RefreshTokens(refreshToken string) (string, string, error)
	Logout(accountID uint) error
	GetAccountByID(accountID uint) (*models.Account, error)
	GetTokenVersion(accountID uint) (int, error)
}

type service struct {
	accounts repositories.AccountRepository
}

func NewService(accounts repositories.AccountRepository) Service {
	return &service{accounts: accounts}
}

func (s *service) Register(input RegisterInput) (*models.Account, error) {
	if !validation.ValidEmail(input.Email) {
		return nil, errors.New("invalid email address")
	}
	if !validation.ValidPhone(input.Phone) {
		return nil, errors.New("invalid phone number")
	}
	if len(input.Password) < 8 || !validation.HasSpecialChar(input.Password) {
		return nil, errors.New("password must be at least 8 characters and contain special characters")
	}

	hashed, err := bcrypt.GenerateFromPassword([]byte(input.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, errors.New("failed to hash password")
	}

	role := models.RoleUser
	if input.IsAgent {
		role = models.RoleAgent
	}
	account := &models.Account{
		Email:    input.Email,
		Password: string(hashed),
		Name:     input.Name,
		Phone:    input.Phone,
		Role:     role,
		IsAgent:  input.IsAgent,
	}
	if err := s.accounts.Create(account); err != nil {
		return nil, err
	}
	return account, nil
}

func (s *service) Login(email, phone, password string) (*models.Account, string, string, error) {
	account, err := s.getByIdentifier(email, phone)
	if err != nil {
		log.Printf("Login failed: account not found for identifier %s", email+phone)
		return nil, "", "", errors.New("invalid credentials")
	}

	if err := bcrypt.CompareHashAndPassword([]byte(account.Password), []byte(password)); err != nil {
		log.Printf("Login failed: incorrect password for account %d", account.ID)
		return nil, "", "", errors.New("invalid credentials")
	}

	accessToken, refreshToken, err := utils.GenerateTokens(&models.UserClaims{
		UserID:       account.ID,
		Phone:        account.Phone,
		Role:         account.Role,
		IsAgent:      account.IsAgent,
		TokenVersion: account.TokenVersion,
	})
	if err != nil {
		log.Println("Error generating tokens:", err)
		return nil, "", "", errors.New("error generating tokens")
	}

	return account, accessToken, refreshToken, nil
}

func (s *service) RefreshTokens(refreshToken string) (string, string, error) {
	_, claims, err := utils.ParseToken(refreshToken)
	if err != nil {
		return "", "", errors.New("invalid refresh token")
	}

	account, err := s.accounts.GetByID(claims.UserID)
	if err != nil {
		return "", "", errors.New("account not found")
	}

	if account.TokenVersion != claims.TokenVersion {
		return "", "", errors.New("token version mismatch")
	}

	return utils.GenerateTokens(&models.UserClaims{
		UserID:       account.ID,
		Phone:        account.Phone,
		Role:         account.Role,
		IsAgent:      account.IsAgent,
		TokenVersion: account.TokenVersion,
	})
}

func (s *service) Logout(accountID uint) error {
	return s.accounts.IncrementTokenVersion(accountID)
}

func (s *service) GetAccountByID(accountID uint) (*models.Account, error) {
	return s.accounts.GetByID(accountID)
}

func (s *service) GetTokenVersion(accountID uint) (int, error) {
	account, err := s.accounts.GetByID(accountID)
	if err != nil {
		return 0, err
	}
	return account.TokenVersion, nil
}

func (s *service) getByIdentifier(email, phone string) (*models.Account, error) {
	if email != "" {
		return s.accounts.GetByEmail(email)
	}
	return s.accounts.GetByPhone(phone)
}
