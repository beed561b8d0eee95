package auth

import (
	"context"
	"errors"
	"strings"

	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"

	"github.com/openbiolabs/noderepo/internal/models"
	apperrors "github.com/openbiolabs/noderepo/pkg/errors"
)

// Service authenticates users against stored credentials and issues tokens.
type Service struct {
	db  *gorm.DB
	jwt *JWTService
}

func NewService(db *gorm.DB, jwt *JWTService) (*Service, error) {
	if db == nil {
		return nil, errors.New("auth service requires a database handle")
	}
	if jwt == nil {
		return nil, errors.New("auth service requires a jwt service")
	}
	return &Service{db: db, jwt: jwt}, nil
}

// Login verifies the username/password pair and returns a signed token.
// Failures never distinguish a missing user from a wrong password.
func (s *Service) Login(ctx context.Context, username, password string) (string, error) {
	username = strings.TrimSpace(username)
	if username == "" || password == "" {
		return "", apperrors.ErrUnauthorized
	}

	var user models.User
	err := s.db.WithContext(ctx).First(&user, "username = ?", username).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return "", apperrors.ErrUnauthorized
		}
		return "", apperrors.Datastore(err)
	}
	if !user.IsActive {
		return "", apperrors.ErrUnauthorized
	}

	if bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(password)) != nil {
		return "", apperrors.ErrUnauthorized
	}

	token, err := s.jwt.GenerateToken(user.ID, user.IsAdmin)
	if err != nil {
		return "", apperrors.ErrDatastore.WithInternal(err)
	}
	return token, nil
}
