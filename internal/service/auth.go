package service

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/assacalos/megvie/internal/model"
	"github.com/assacalos/megvie/internal/tokens"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

// RenewWindow is how close to expiry a token must be before a fresh one is handed out.
const RenewWindow = 24 * time.Hour

type Claims struct {
	Role model.Role `json:"role"`
	jwt.RegisteredClaims
}

// UserID is the numeric subject of the token.
func (c *Claims) UserID() uint {
	id, _ := strconv.ParseUint(c.Subject, 10, 64)
	return uint(id)
}

type AuthService struct {
	db      *gorm.DB
	secret  []byte
	ttl     time.Duration
	revoked tokens.Store
}

func NewAuthService(db *gorm.DB, secret string, ttl time.Duration, revoked tokens.Store) *AuthService {
	if ttl <= 0 {
		ttl = 7 * 24 * time.Hour
	}
	return &AuthService{db: db, secret: []byte(secret), ttl: ttl, revoked: revoked}
}

// Login checks email and password. Unknown email and wrong password both
// yield ErrInvalidCredentials.
func (s *AuthService) Login(ctx context.Context, email, password string) (*model.User, string, error) {
	var u model.User
	err := s.db.WithContext(ctx).Where("email = ?", strings.TrimSpace(email)).First(&u).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, "", ErrInvalidCredentials
	}
	if err != nil {
		return nil, "", fmt.Errorf("query user: %w", err)
	}
	if bcrypt.CompareHashAndPassword([]byte(u.Password), []byte(password)) != nil {
		return nil, "", ErrInvalidCredentials
	}
	token, err := s.Issue(&u)
	if err != nil {
		return nil, "", err
	}
	return &u, token, nil
}

func (s *AuthService) Issue(u *model.User) (string, error) {
	now := time.Now()
	claims := Claims{
		Role: u.Role,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Subject:   strconv.FormatUint(uint64(u.ID), 10),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.ttl)),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	return signed, nil
}

// Authenticate validates a bearer token and loads its user. Any failure that
// is the client's fault is reported as ErrUnauthenticated.
func (s *AuthService) Authenticate(ctx context.Context, raw string) (*model.User, *Claims, error) {
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(raw, claims, func(t *jwt.Token) (interface{}, error) {
		return s.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil || !token.Valid || claims.ID == "" {
		return nil, nil, ErrUnauthenticated
	}

	revoked, err := s.revoked.Revoked(ctx, claims.ID)
	if err != nil {
		return nil, nil, err
	}
	if revoked {
		return nil, nil, ErrUnauthenticated
	}

	var u model.User
	err = s.db.WithContext(ctx).First(&u, claims.UserID()).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil, ErrUnauthenticated
	}
	if err != nil {
		return nil, nil, fmt.Errorf("load user: %w", err)
	}
	return &u, claims, nil
}

// Renew returns a fresh token when claims expire within RenewWindow.
func (s *AuthService) Renew(u *model.User, claims *Claims) (string, bool) {
	if claims.ExpiresAt == nil || time.Until(claims.ExpiresAt.Time) >= RenewWindow {
		return "", false
	}
	token, err := s.Issue(u)
	if err != nil {
		return "", false
	}
	return token, true
}

// Logout revokes the token described by claims until it would have expired.
func (s *AuthService) Logout(ctx context.Context, claims *Claims) error {
	until := time.Now().Add(s.ttl)
	if claims.ExpiresAt != nil {
		until = claims.ExpiresAt.Time
	}
	return s.revoked.Revoke(ctx, claims.ID, until)
}
