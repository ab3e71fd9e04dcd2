package validation

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
)

var (
	usernamePattern = regexp.MustCompile(`^[a-zA-Z0-9_-]+$`)
	emailPattern    = regexp.MustCompile(`^[a-zA-Z0-9._%+\-]+@[a-zA-Z0-9.\-]+\.[a-zA-Z]{2,}$`)
)

// Credentials is the decoded body of a register or login request
type Credentials struct {
	Username string
	Email    string
	Password string
}

// AuthRequestValidator validates authentication-related requests
type AuthRequestValidator struct{}

// NewAuthRequestValidator creates a new AuthRequestValidator
func NewAuthRequestValidator() *AuthRequestValidator {
	return &AuthRequestValidator{}
}

// ValidateUsername validates a username
func (v *AuthRequestValidator) ValidateUsername(username string) error {
	switch {
	case username == "":
		return errors.New("username cannot be empty")
	case len(username) < 3:
		return fmt.Errorf("username must be at least 3 characters long, got %d", len(username))
	case len(username) > 50:
		return fmt.Errorf("username must be at most 50 characters long, got %d", len(username))
	case !usernamePattern.MatchString(username):
		return errors.New("username can only contain letters, numbers, underscores, and hyphens")
	}
	return nil
}

// ValidatePassword validates a password
func (v *AuthRequestValidator) ValidatePassword(password string) error {
	switch {
	case password == "":
		return errors.New("password cannot be empty")
	case len(password) < 8:
		return fmt.Errorf("password must be at least 8 characters long, got %d", len(password))
	case len(password) > 72:
		// bcrypt ignores everything past 72 bytes
		return fmt.Errorf("password must be at most 72 bytes long, got %d", len(password))
	}
	return nil
}

// ValidateEmail validates an optional email address
func (v *AuthRequestValidator) ValidateEmail(email string) error {
	if email == "" {
		return nil
	}
	if len(email) > 255 {
		return fmt.Errorf("email must be at most 255 characters long, got %d", len(email))
	}
	if !emailPattern.MatchString(email) {
		return errors.New("invalid email format")
	}
	return nil
}

// ValidateLogin checks a login body and returns it with the username trimmed
func (v *AuthRequestValidator) ValidateLogin(in Credentials) (Credentials, error) {
	in.Username = strings.TrimSpace(in.Username)
	if in.Username == "" {
		return Credentials{}, errors.New("username cannot be empty")
	}
	if in.Password == "" {
		return Credentials{}, errors.New("password cannot be empty")
	}
	return in, nil
}

// ValidateRegister checks a registration body and returns it normalized
func (v *AuthRequestValidator) ValidateRegister(in Credentials) (Credentials, error) {
	in.Username = strings.TrimSpace(in.Username)
	in.Email = strings.ToLower(strings.TrimSpace(in.Email))
	if err := v.ValidateUsername(in.Username); err != nil {
		return Credentials{}, err
	}
	if err := v.ValidateEmail(in.Email); err != nil {
		return Credentials{}, err
	}
	if err := v.ValidatePassword(in.Password); err != nil {
		return Credentials{}, err
	}
	return in, nil
}
