package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"gorm.io/gorm"

	database "github.com/vikasavnish/mfbroker/internal/db"
	"github.com/vikasavnish/mfbroker/internal/models"
)

// UserService defines the interface for user-related operations
type UserService interface {
	GetUserByEmail(ctx context.Context, email string) (models.User, error)
	GetUserWithInvestments(ctx context.Context, userID string) (models.User, error)
	CreateUser(ctx context.Context, user models.User) (models.User, error)
}

// userService implements the UserService interface
type userService struct {
	db *gorm.DB
}

// NewUserService creates a new user service
func NewUserService(db *gorm.DB) UserService {
	return &userService{
		db: db,
	}
}

// NormalizeEmail lower-cases and trims an address before lookup or insert
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// GetUserByEmail returns a user by email
func (s *userService) GetUserByEmail(ctx context.Context, email string) (models.User, error) {
	var user models.User
	err := s.db.WithContext(ctx).Where("email = ?", NormalizeEmail(email)).First(&user).Error
	if err != nil {
		return models.User{}, wrapLookup(err)
	}
	return user, nil
}

// GetUserWithInvestments returns a user with holdings, newest first
func (s *userService) GetUserWithInvestments(ctx context.Context, userID string) (models.User, error) {
	var user models.User
	err := s.db.WithContext(ctx).
		Preload("Investments", func(db *gorm.DB) *gorm.DB {
			return db.Order("created_at DESC")
		}).
		Where("id = ?", userID).
		First(&user).Error
	if err != nil {
		return models.User{}, wrapLookup(err)
	}
	return user, nil
}

// CreateUser creates a new user
func (s *userService) CreateUser(ctx context.Context, user models.User) (models.User, error) {
	user.Email = NormalizeEmail(user.Email)
	if err := s.db.WithContext(ctx).Create(&user).Error; err != nil {
		if database.IsUniqueViolation(err) {
			return models.User{}, ErrAlreadyExists
		}
		return models.User{}, fmt.Errorf("%w: create user: %v", ErrDatabase, err)
	}
	return user, nil
}

func wrapLookup(err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ErrNotFound
	}
	return fmt.Errorf("%w: %v", ErrDatabase, err)
}
