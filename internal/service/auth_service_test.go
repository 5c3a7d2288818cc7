package service

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/noah-isme/yoga-booking-api/internal/models"
	"github.com/noah-isme/yoga-booking-api/internal/repository"
	appErrors "github.com/noah-isme/yoga-booking-api/pkg/errors"
)

type mockAuthRepo struct {
	profiles      map[string]*models.Profile
	refreshTokens map[string]*models.RefreshToken
	resets        map[string]*models.PasswordResetToken
	findErr       error
	revokedUsers  []string
}

func newMockAuthRepo() *mockAuthRepo {
	return &mockAuthRepo{
		profiles:      map[string]*models.Profile{},
		refreshTokens: map[string]*models.RefreshToken{},
		resets:        map[string]*models.PasswordResetToken{},
	}
}

func (m *mockAuthRepo) FindByEmail(ctx context.Context, email string) (*models.Profile, error) {
	if m.findErr != nil {
		return nil, m.findErr
	}
	for _, p := range m.profiles {
		if p.Email == email {
			cp := *p
			return &cp, nil
		}
	}
	return nil, sql.ErrNoRows
}

func (m *mockAuthRepo) FindByID(ctx context.Context, id string) (*models.Profile, error) {
	p, ok := m.profiles[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	cp := *p
	return &cp, nil
}

func (m *mockAuthRepo) Create(ctx context.Context, profile *models.Profile) error {
	for _, p := range m.profiles {
		if p.Email == profile.Email {
			return repository.ErrDuplicate
		}
	}
	profile.ID = "user-" + profile.Email
	cp := *profile
	m.profiles[profile.ID] = &cp
	return nil
}

func (m *mockAuthRepo) UpdatePassword(ctx context.Context, id, passwordHash string, updatedAt time.Time) error {
	m.profiles[id].PasswordHash = passwordHash
	return nil
}

func (m *mockAuthRepo) RevokeUserRefreshTokens(ctx context.Context, userID string) error {
	m.revokedUsers = append(m.revokedUsers, userID)
	for _, token := range m.refreshTokens {
		if token.UserID == userID {
			token.Revoked = true
		}
	}
	return nil
}

func (m *mockAuthRepo) CreateRefreshToken(ctx context.Context, token *models.RefreshToken) error {
	cp := *token
	m.refreshTokens[token.Token] = &cp
	return nil
}

func (m *mockAuthRepo) FindRefreshToken(ctx context.Context, token string) (*models.RefreshToken, error) {
	stored, ok := m.refreshTokens[token]
	if !ok {
		return nil, sql.ErrNoRows
	}
	cp := *stored
	return &cp, nil
}

func (m *mockAuthRepo) RevokeRefreshToken(ctx context.Context, id string, revokedAt time.Time) error {
	for _, token := range m.refreshTokens {
		if token.ID == id {
			token.Revoked = true
		}
	}
	return nil
}

func (m *mockAuthRepo) CreatePasswordReset(ctx context.Context, token *models.PasswordResetToken) error {
	cp := *token
	m.resets[token.Token] = &cp
	return nil
}

func (m *mockAuthRepo) FindPasswordReset(ctx context.Context, token string) (*models.PasswordResetToken, error) {
	stored, ok := m.resets[token]
	if !ok {
		return nil, sql.ErrNoRows
	}
	cp := *stored
	return &cp, nil
}

func (m *mockAuthRepo) ConsumePasswordReset(ctx context.Context, tokenID, userID, passwordHash string) error {
	for _, token := range m.resets {
		if token.ID == tokenID {
			if token.UsedAt != nil {
				return sql.ErrNoRows
			}
			now := time.Now()
			token.UsedAt = &now
			m.profiles[userID].PasswordHash = passwordHash
			return nil
		}
	}
	return sql.ErrNoRows
}

func newAuthFixture() (*AuthService, *mockAuthRepo, *auditEventsStub) {
	repo := newMockAuthRepo()
	audit := &auditEventsStub{}
	svc := NewAuthService(repo, audit, nil, zap.NewNop(), AuthConfig{
		AccessTokenSecret:  "secret",
		AccessTokenExpiry:  time.Hour,
		RefreshTokenExpiry: 24 * time.Hour,
		PasswordResetTTL:   time.Hour,
		Issuer:             "yoga-booking-api",
	})
	return svc, repo, audit
}

func seedProfile(t *testing.T, repo *mockAuthRepo, email, password string, role models.UserRole) *models.Profile {
	t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
	require.NoError(t, err)
	profile := &models.Profile{ID: "id-" + email, Email: email, PasswordHash: string(hash), FullName: "Test User", Role: role}
	repo.profiles[profile.ID] = profile
	return profile
}

func TestSignUpCreatesProfileAndSession(t *testing.T) {
	svc, repo, audit := newAuthFixture()

	resp, err := svc.SignUp(context.Background(), models.SignUpRequest{
		Email: " Bea@Example.com ", Password: "secret1", FullName: "Bea", Role: models.RoleStudent,
	})
	require.NoError(t, err)
	assert.NotEmpty(t, resp.AccessToken)
	assert.NotEmpty(t, resp.RefreshToken)
	assert.Equal(t, "bea@example.com", resp.User.Email)
	assert.Equal(t, models.RoleStudent, resp.User.Role)
	assert.Len(t, repo.profiles, 1)
	require.NotEmpty(t, audit.events)
	assert.Equal(t, models.AuditActionSignUp, audit.events[0].Action)

	claims, err := svc.ValidateToken(resp.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, resp.User.ID, claims.UserID)
	assert.Equal(t, models.RoleStudent, claims.Role)
}

func TestSignUpRejectsDuplicateAndBadRole(t *testing.T) {
	svc, repo, _ := newAuthFixture()
	seedProfile(t, repo, "bea@example.com", "secret1", models.RoleStudent)

	_, err := svc.SignUp(context.Background(), models.SignUpRequest{Email: "bea@example.com", Password: "secret1", FullName: "Bea", Role: models.RoleStudent})
	assert.True(t, errors.Is(err, appErrors.ErrConflict))

	_, err = svc.SignUp(context.Background(), models.SignUpRequest{Email: "new@example.com", Password: "secret1", FullName: "New", Role: "admin"})
	assert.True(t, errors.Is(err, appErrors.ErrValidation))
}

func TestLoginSuccessAndFailure(t *testing.T) {
	svc, repo, _ := newAuthFixture()
	seedProfile(t, repo, "ana@example.com", "secret1", models.RoleTeacher)

	resp, err := svc.Login(context.Background(), models.LoginRequest{Email: "ana@example.com", Password: "secret1"})
	require.NoError(t, err)
	assert.Equal(t, models.RoleTeacher, resp.User.Role)
	assert.Equal(t, int64(3600), resp.ExpiresIn)

	_, err = svc.Login(context.Background(), models.LoginRequest{Email: "ana@example.com", Password: "wrong"})
	assert.True(t, errors.Is(err, appErrors.ErrInvalidCredentials))

	_, err = svc.Login(context.Background(), models.LoginRequest{Email: "nobody@example.com", Password: "secret1"})
	assert.True(t, errors.Is(err, appErrors.ErrInvalidCredentials))
}

func TestLoginStoreFailure(t *testing.T) {
	svc, repo, _ := newAuthFixture()
	repo.findErr = errors.New("dial tcp: connection refused")
	_, err := svc.Login(context.Background(), models.LoginRequest{Email: "ana@example.com", Password: "secret1"})
	assert.True(t, errors.Is(err, appErrors.ErrStoreUnavailable))
}

func TestRefreshTokenRotates(t *testing.T) {
	svc, repo, _ := newAuthFixture()
	seedProfile(t, repo, "ana@example.com", "secret1", models.RoleTeacher)
	login, err := svc.Login(context.Background(), models.LoginRequest{Email: "ana@example.com", Password: "secret1"})
	require.NoError(t, err)

	refreshed, err := svc.RefreshToken(context.Background(), models.RefreshTokenRequest{RefreshToken: login.RefreshToken})
	require.NoError(t, err)
	assert.NotEqual(t, login.RefreshToken, refreshed.RefreshToken)
	assert.True(t, repo.refreshTokens[login.RefreshToken].Revoked)

	_, err = svc.RefreshToken(context.Background(), models.RefreshTokenRequest{RefreshToken: login.RefreshToken})
	assert.True(t, errors.Is(err, appErrors.ErrUnauthorized))
}

func TestLogoutRevokesOwnTokenOnly(t *testing.T) {
	svc, repo, _ := newAuthFixture()
	profile := seedProfile(t, repo, "ana@example.com", "secret1", models.RoleTeacher)
	login, err := svc.Login(context.Background(), models.LoginRequest{Email: "ana@example.com", Password: "secret1"})
	require.NoError(t, err)

	stranger := models.Identity{UserID: "other", Role: models.RoleStudent}
	err = svc.Logout(context.Background(), stranger, models.LogoutRequest{RefreshToken: login.RefreshToken})
	assert.True(t, errors.Is(err, appErrors.ErrForbidden))

	owner := models.Identity{UserID: profile.ID, Role: profile.Role}
	require.NoError(t, svc.Logout(context.Background(), owner, models.LogoutRequest{RefreshToken: login.RefreshToken}))
	assert.True(t, repo.refreshTokens[login.RefreshToken].Revoked)
}

func TestMe(t *testing.T) {
	svc, repo, _ := newAuthFixture()
	profile := seedProfile(t, repo, "ana@example.com", "secret1", models.RoleTeacher)

	info, err := svc.Me(context.Background(), models.Identity{UserID: profile.ID, Role: profile.Role})
	require.NoError(t, err)
	assert.Equal(t, "ana@example.com", info.Email)

	_, err = svc.Me(context.Background(), models.Identity{UserID: "ghost"})
	assert.True(t, errors.Is(err, appErrors.ErrNotFound))
}

func TestChangePassword(t *testing.T) {
	svc, repo, _ := newAuthFixture()
	profile := seedProfile(t, repo, "ana@example.com", "secret1", models.RoleTeacher)
	identity := models.Identity{UserID: profile.ID, Role: profile.Role}

	err := svc.ChangePassword(context.Background(), identity, models.ChangePasswordRequest{OldPassword: "nope", NewPassword: "secret2"})
	assert.True(t, errors.Is(err, appErrors.ErrForbidden))

	require.NoError(t, svc.ChangePassword(context.Background(), identity, models.ChangePasswordRequest{OldPassword: "secret1", NewPassword: "secret2"}))
	assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(repo.profiles[profile.ID].PasswordHash), []byte("secret2")))
	assert.Contains(t, repo.revokedUsers, profile.ID)
}

func TestPasswordResetFlow(t *testing.T) {
	svc, repo, audit := newAuthFixture()
	profile := seedProfile(t, repo, "bea@example.com", "secret1", models.RoleStudent)

	require.NoError(t, svc.ForgotPassword(context.Background(), models.ForgotPasswordRequest{Email: "BEA@example.com"}))
	require.Len(t, repo.resets, 1)
	var token string
	for value := range repo.resets {
		token = value
	}

	require.NoError(t, svc.ResetPassword(context.Background(), models.ResetPasswordRequest{Token: token, NewPassword: "brandnew"}))
	assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(repo.profiles[profile.ID].PasswordHash), []byte("brandnew")))
	assert.Equal(t, models.AuditActionPasswordReset, audit.events[len(audit.events)-1].Action)

	err := svc.ResetPassword(context.Background(), models.ResetPasswordRequest{Token: token, NewPassword: "another1"})
	assert.True(t, errors.Is(err, appErrors.ErrUnauthorized))
}

func TestPasswordResetExpiredAndUnknown(t *testing.T) {
	svc, repo, _ := newAuthFixture()
	profile := seedProfile(t, repo, "bea@example.com", "secret1", models.RoleStudent)
	repo.resets["stale"] = &models.PasswordResetToken{ID: "r1", UserID: profile.ID, Token: "stale", ExpiresAt: time.Now().Add(-time.Minute)}

	err := svc.ResetPassword(context.Background(), models.ResetPasswordRequest{Token: "stale", NewPassword: "brandnew"})
	assert.True(t, errors.Is(err, appErrors.ErrUnauthorized))
	err = svc.ResetPassword(context.Background(), models.ResetPasswordRequest{Token: "missing", NewPassword: "brandnew"})
	assert.True(t, errors.Is(err, appErrors.ErrUnauthorized))

	require.NoError(t, svc.ForgotPassword(context.Background(), models.ForgotPasswordRequest{Email: "nobody@example.com"}))
	assert.Len(t, repo.resets, 1)
}

func TestValidateTokenRejectsGarbage(t *testing.T) {
	svc, _, _ := newAuthFixture()
	_, err := svc.ValidateToken("not-a-token")
	assert.True(t, errors.Is(err, appErrors.ErrUnauthorized))
}
