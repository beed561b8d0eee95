package auth

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"

	"github.com/openbiolabs/noderepo/internal/database/testutil"
	"github.com/openbiolabs/noderepo/internal/models"
	apperrors "github.com/openbiolabs/noderepo/pkg/errors"
)

func newLoginFixture(t *testing.T) (*Service, *gorm.DB) {
	t.Helper()

	db := testutil.MustOpenTestDB(t, testutil.WithAutoMigrate())
	jwtSvc, err := NewJWTService(JWTConfig{Secret: "test-secret"})
	require.NoError(t, err)
	svc, err := NewService(db, jwtSvc)
	require.NoError(t, err)
	return svc, db
}

func seedUser(t *testing.T, db *gorm.DB, username, password string, active bool) {
	t.Helper()

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	require.NoError(t, err)
	user := models.User{
		ID:       username,
		Username: username,
		Email:    username + "@example.com",
		Password: string(hash),
	}
	require.NoError(t, db.Create(&user).Error)
	if !active {
		require.NoError(t, db.Model(&user).Update("is_active", false).Error)
	}
}

func TestLoginIssuesTokenForValidCredentials(t *testing.T) {
	svc, db := newLoginFixture(t)
	seedUser(t, db, "alice", "hunter2", true)

	token, err := svc.Login(context.Background(), "alice", "hunter2")
	require.NoError(t, err)

	claims, err := svc.jwt.ValidateToken(token)
	require.NoError(t, err)
	require.Equal(t, "alice", claims.UserID)
}

func TestLoginRejectsWrongPassword(t *testing.T) {
	svc, db := newLoginFixture(t)
	seedUser(t, db, "alice", "hunter2", true)

	_, err := svc.Login(context.Background(), "alice", "wrong")
	require.ErrorIs(t, err, apperrors.ErrUnauthorized)
}

func TestLoginRejectsUnknownUserIdentically(t *testing.T) {
	svc, _ := newLoginFixture(t)

	_, err := svc.Login(context.Background(), "ghost", "whatever")
	require.ErrorIs(t, err, apperrors.ErrUnauthorized)
}

func TestLoginRejectsInactiveUser(t *testing.T) {
	svc, db := newLoginFixture(t)
	seedUser(t, db, "alice", "hunter2", false)

	_, err := svc.Login(context.Background(), "alice", "hunter2")
	require.ErrorIs(t, err, apperrors.ErrUnauthorized)
}
