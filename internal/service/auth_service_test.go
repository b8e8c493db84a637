package service

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/sigep-hr/sigep-api/internal/models"
	"github.com/sigep-hr/sigep-api/pkg/config"
	appErrors "github.com/sigep-hr/sigep-api/pkg/errors"
)

type userStoreStub struct {
	user     *models.User
	refresh  *models.RefreshToken
	stored   []*models.RefreshToken
	revoked  []string
	password string
}

func (s *userStoreStub) FindByEmail(ctx context.Context, email string) (*models.User, error) {
	if s.user == nil || s.user.Email != email {
		return nil, sql.ErrNoRows
	}
	return s.user, nil
}

func (s *userStoreStub) FindByID(ctx context.Context, id string) (*models.User, error) {
	if s.user == nil || s.user.ID != id {
		return nil, sql.ErrNoRows
	}
	return s.user, nil
}

func (s *userStoreStub) UpdateLastLogin(ctx context.Context, id string, at time.Time) error {
	return nil
}

func (s *userStoreStub) UpdatePassword(ctx context.Context, id, passwordHash string) error {
	s.password = passwordHash
	return nil
}

func (s *userStoreStub) CreateRefreshToken(ctx context.Context, token *models.RefreshToken) error {
	token.ID = "rt-1"
	s.stored = append(s.stored, token)
	return nil
}

func (s *userStoreStub) FindRefreshToken(ctx context.Context, token string) (*models.RefreshToken, error) {
	if s.refresh == nil || s.refresh.Token != token {
		return nil, sql.ErrNoRows
	}
	return s.refresh, nil
}

func (s *userStoreStub) RevokeRefreshToken(ctx context.Context, id string) error {
	s.revoked = append(s.revoked, id)
	return nil
}

func (s *userStoreStub) RevokeUserRefreshTokens(ctx context.Context, userID string) error {
	s.revoked = append(s.revoked, "all:"+userID)
	return nil
}

func authFixture(t *testing.T) (*AuthService, *userStoreStub, *effectsStub) {
	hash, err := bcrypt.GenerateFromPassword([]byte("secret123"), bcrypt.MinCost)
	require.NoError(t, err)
	empID := "emp-1"
	store := &userStoreStub{user: &models.User{
		ID:           "user-1",
		Email:        "ana@sigep.local",
		PasswordHash: string(hash),
		FullName:     "Ana Lopez",
		Role:         models.RoleEmployee,
		EmployeeID:   &empID,
		Active:       true,
	}}
	effects := &effectsStub{}
	svc := NewAuthService(store, effects, config.JWTConfig{
		Secret:            "test-secret",
		Expiration:        time.Hour,
		RefreshExpiration: 24 * time.Hour,
		Issuer:            "sigep-api",
	}, nil)
	return svc, store, effects
}

func TestLoginIssuesTokenPair(t *testing.T) {
	svc, store, effects := authFixture(t)

	resp, err := svc.Login(context.Background(), models.LoginRequest{
		Email:    "ana@sigep.local",
		Password: "secret123",
		IP:       "10.0.0.1",
	})
	require.NoError(t, err)
	require.NotEmpty(t, resp.AccessToken)
	require.NotEmpty(t, resp.RefreshToken)
	require.Len(t, store.stored, 1)
	require.Equal(t, "10.0.0.1", store.stored[0].IPAddress)

	// The access token carries the employee link.
	claims := &models.JWTClaims{}
	_, err = jwt.ParseWithClaims(resp.AccessToken, claims, func(token *jwt.Token) (interface{}, error) {
		return []byte("test-secret"), nil
	})
	require.NoError(t, err)
	require.Equal(t, "user-1", claims.UserID)
	require.Equal(t, "emp-1", claims.EmployeeID)
	require.Equal(t, models.RoleEmployee, claims.Role)

	require.Len(t, effects.audits, 1)
	require.Equal(t, models.AuditActionLogin, effects.audits[0].Action)
	require.Equal(t, models.AuditModuleAuth, effects.audits[0].Module)
}

func TestLoginWrongPassword(t *testing.T) {
	svc, _, effects := authFixture(t)

	_, err := svc.Login(context.Background(), models.LoginRequest{
		Email:    "ana@sigep.local",
		Password: "wrong",
	})
	require.ErrorIs(t, err, appErrors.ErrInvalidCredentials)
	require.Empty(t, effects.audits)
}

func TestLoginInactiveAccount(t *testing.T) {
	svc, store, _ := authFixture(t)
	store.user.Active = false

	_, err := svc.Login(context.Background(), models.LoginRequest{
		Email:    "ana@sigep.local",
		Password: "secret123",
	})
	require.ErrorIs(t, err, appErrors.ErrInactiveAccount)
}

func TestRefreshRotatesToken(t *testing.T) {
	svc, store, _ := authFixture(t)
	store.refresh = &models.RefreshToken{
		ID:        "rt-old",
		UserID:    "user-1",
		Token:     "old-token",
		ExpiresAt: time.Now().Add(time.Hour),
	}

	resp, err := svc.Refresh(context.Background(), models.RefreshTokenRequest{RefreshToken: "old-token"})
	require.NoError(t, err)
	require.NotEmpty(t, resp.AccessToken)
	require.NotEqual(t, "old-token", resp.RefreshToken)
	require.Contains(t, store.revoked, "rt-old")
	require.Len(t, store.stored, 1)
}

func TestRefreshExpiredToken(t *testing.T) {
	svc, store, _ := authFixture(t)
	store.refresh = &models.RefreshToken{
		ID:        "rt-old",
		UserID:    "user-1",
		Token:     "old-token",
		ExpiresAt: time.Now().Add(-time.Minute),
	}

	_, err := svc.Refresh(context.Background(), models.RefreshTokenRequest{RefreshToken: "old-token"})
	require.ErrorIs(t, err, appErrors.ErrUnauthorized)
	require.Empty(t, store.stored)
}

func TestChangePasswordRevokesSessions(t *testing.T) {
	svc, store, effects := authFixture(t)
	actor := &models.JWTClaims{UserID: "user-1"}

	err := svc.ChangePassword(context.Background(), actor, models.ChangePasswordRequest{
		OldPassword: "secret123",
		NewPassword: "muchbetterpassword",
	})
	require.NoError(t, err)
	require.NotEmpty(t, store.password)
	require.Contains(t, store.revoked, "all:user-1")
	require.Len(t, effects.audits, 1)
	require.Equal(t, models.AuditActionPasswordChange, effects.audits[0].Action)
}

func TestChangePasswordWrongCurrent(t *testing.T) {
	svc, store, _ := authFixture(t)
	actor := &models.JWTClaims{UserID: "user-1"}

	err := svc.ChangePassword(context.Background(), actor, models.ChangePasswordRequest{
		OldPassword: "nope",
		NewPassword: "muchbetterpassword",
	})
	require.ErrorIs(t, err, appErrors.ErrValidation)
	require.Empty(t, store.password)
}
