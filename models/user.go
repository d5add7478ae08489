package models

import (
	"time"

	"golang.org/x/crypto/bcrypt"
)

// User is an account that owns uploaded images and trained models. Email is
// the login key.
type User struct {
	ID           uint    `json:"id" gorm:"primaryKey"`
	Email        string  `json:"email" gorm:"uniqueIndex;not null"`
	PasswordHash string  `json:"-" gorm:"not null"` // "-" means don't include in JSON responses
	FirstName    string  `json:"first_name" gorm:"size:150"`
	LastName     string  `json:"last_name" gorm:"size:150"`
	Avatar       *string `json:"avatar,omitempty"` // relative store path under avatars/
	IsActive     bool    `json:"is_active" gorm:"not null"`

	Images               []Image               `json:"-" gorm:"foreignKey:UserID;constraint:OnDelete:CASCADE"`
	ClassificationModels []ClassificationModel `json:"-" gorm:"foreignKey:UserID;constraint:OnDelete:CASCADE"`

	DateJoined time.Time `json:"date_joined" gorm:"not null"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// SetPassword hashes the given password and sets it on the user model.
func (u *User) SetPassword(password string) error {
	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return err
	}
	u.PasswordHash = string(hashedPassword)
	return nil
}

// CheckPassword verifies if the given password matches the user's hashed password.
func (u *User) CheckPassword(password string) bool {
	err := bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(password))
	return err == nil
}
