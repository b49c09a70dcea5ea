package models

import (
	"time"

	"github.com/dgrijalva/jwt-go"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

type User struct {
	ID           string       `gorm:"primaryKey;type:varchar(36)" json:"user_id"`
	Email        string       `gorm:"uniqueIndex;size:255;not null" json:"email"`
	PasswordHash string       `gorm:"column:password_hash;size:255;not null" json:"-"`
	IsVerified   bool         `gorm:"column:is_verified;default:true" json:"is_verified"`
	CreatedAt    time.Time    `json:"created_at"`
	UpdatedAt    time.Time    `json:"updated_at"`
	Investments  []Investment `gorm:"foreignKey:UserID" json:"investments,omitempty"`
}

// TableName specifies the table name for User model
func (User) TableName() string {
	return "users"
}

// BeforeCreate assigns a UUID when none was set
func (u *User) BeforeCreate(tx *gorm.DB) error {
	if u.ID == "" {
		u.ID = uuid.NewString()
	}
	return nil
}

// UserIdentity is the identity embedded in session tokens
type UserIdentity struct {
	Email  string `json:"email"`
	UserID string `json:"user_id"`
}

// Claims for JWT authentication
type Claims struct {
	User    UserIdentity `json:"user"`
	Refresh bool         `json:"refresh"`
	jwt.StandardClaims
}

type SignupRequest struct {
	Email    string `json:"email" validate:"required,email,max=40"`
	Password string `json:"password" validate:"required,min=8"`
}

type LoginRequest struct {
	Email    string `json:"email" validate:"required,max=40"`
	Password string `json:"password" validate:"required,min=8"`
}

// AuthResponse is returned by signup and login
type AuthResponse struct {
	Message string       `json:"message"`
	Status  string       `json:"status"`
	User    UserIdentity `json:"user"`
}

// UserView is the public shape of a user with their holdings
type UserView struct {
	UserID      string       `json:"user_id"`
	Email       string       `json:"email"`
	IsVerified  bool         `json:"is_verified"`
	CreatedAt   time.Time    `json:"created_at"`
	UpdatedAt   time.Time    `json:"updated_at"`
	Investments []Investment `json:"investments"`
}

// View converts a user into its public representation
func (u User) View() UserView {
	investments := u.Investments
	if investments == nil {
		investments = []Investment{}
	}
	return UserView{
		UserID:      u.ID,
		Email:       u.Email,
		IsVerified:  u.IsVerified,
		CreatedAt:   u.CreatedAt,
		UpdatedAt:   u.UpdatedAt,
		Investments: investments,
	}
}
