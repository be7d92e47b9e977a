// Package users implements account registration, login and profile lookup.
package users

import (
	"context"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"

	"github.com/pactpoint/backend/internal/app/domain/user"
	"github.com/pactpoint/backend/internal/app/storage"
	apperrors "github.com/pactpoint/backend/internal/errors"
	"github.com/pactpoint/backend/pkg/logger"
)

// Service manages accounts and issues access tokens.
type Service struct {
	store          storage.Store
	jwtSecret      []byte
	tokenTTL       time.Duration
	allowedDomains []string
	log            *logger.Logger
}

// New constructs the service. allowedDomains restricts registration when
// non-empty; tokenTTL falls back to 30 minutes.
func New(store storage.Store, jwtSecret string, tokenTTL time.Duration, allowedDomains []string, log *logger.Logger) *Service {
	if log == nil {
		log = logger.NewDefault("users")
	}
	if tokenTTL <= 0 {
		tokenTTL = 30 * time.Minute
	}
	return &Service{
		store:          store,
		jwtSecret:      []byte(jwtSecret),
		tokenTTL:       tokenTTL,
		allowedDomains: allowedDomains,
		log:            log,
	}
}

// RegisterInput carries the fields needed to open an account.
type RegisterInput struct {
	Username string
	Email    string
	Password string
}

// Register creates an account credited with the starting balance.
func (s *Service) Register(ctx context.Context, in RegisterInput) (user.User, error) {
	username := strings.TrimSpace(in.Username)
	email := strings.ToLower(strings.TrimSpace(in.Email))

	if len(username) < 3 {
		return user.User{}, apperrors.ValidationRejected("username must be at least 3 characters")
	}
	if !strings.Contains(email, "@") {
		return user.User{}, apperrors.ValidationRejected("email is not valid")
	}
	if len(in.Password) < 8 {
		return user.User{}, apperrors.ValidationRejected("password must be at least 8 characters")
	}
	if err := s.checkEmailDomain(email); err != nil {
		return user.User{}, err
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(in.Password), bcrypt.DefaultCost)
	if err != nil {
		return user.User{}, apperrors.Internal("hash password", err)
	}

	created, err := s.store.CreateUser(ctx, user.User{
		Username:       username,
		Email:          email,
		HashedPassword: string(hash),
		Points:         user.StartingPoints,
	})
	if err != nil {
		return user.User{}, err
	}

	s.log.WithField("user_id", created.ID).Info("user registered")
	return created, nil
}

func (s *Service) checkEmailDomain(email string) error {
	if len(s.allowedDomains) == 0 {
		return nil
	}
	at := strings.LastIndex(email, "@")
	domain := email[at+1:]
	for _, allowed := range s.allowedDomains {
		if strings.EqualFold(domain, allowed) {
			return nil
		}
	}
	return apperrors.ValidationRejected("email domain is not allowed")
}

// Login verifies credentials and returns the user plus a signed token.
func (s *Service) Login(ctx context.Context, username, password string) (user.User, string, error) {
	u, err := s.store.GetUserByUsername(ctx, strings.TrimSpace(username))
	if err != nil {
		if apperrors.IsCode(err, apperrors.CodeNotFound) {
			return user.User{}, "", apperrors.Unauthorized("invalid username or password")
		}
		return user.User{}, "", err
	}

	if bcrypt.CompareHashAndPassword([]byte(u.HashedPassword), []byte(password)) != nil {
		return user.User{}, "", apperrors.Unauthorized("invalid username or password")
	}

	token, err := s.issueToken(u)
	if err != nil {
		return user.User{}, "", apperrors.Internal("sign token", err)
	}
	return u, token, nil
}

func (s *Service) issueToken(u user.User) (string, error) {
	now := time.Now().UTC()
	claims := jwt.MapClaims{
		"sub":      u.ID,
		"username": u.Username,
		"iat":      now.Unix(),
		"exp":      now.Add(s.tokenTTL).Unix(),
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.jwtSecret)
}

// Get returns a user by ID.
func (s *Service) Get(ctx context.Context, id string) (user.User, error) {
	return s.store.GetUser(ctx, id)
}

// List returns every account, oldest first.
func (s *Service) List(ctx context.Context) ([]user.User, error) {
	return s.store.ListUsers(ctx)
}
