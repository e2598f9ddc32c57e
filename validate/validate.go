// Package validate provides client-side field validation for the auth forms.
// It catches obviously malformed input before a network call; the server
// remains the authority on what is accepted.
package validate

import (
	"fmt"
	"strings"
	"unicode"
)

// Validator provides centralized validation logic for registration and login
// input.
type Validator struct{}

// NewValidator creates a new Validator instance
func NewValidator() *Validator {
	return &Validator{}
}

// ValidateRegistration checks all fields of a registration request.
func (v *Validator) ValidateRegistration(username, email, password string) error {
	if err := v.ValidateUsername(username); err != nil {
		return err
	}
	if err := v.ValidateEmail(email); err != nil {
		return err
	}
	return v.ValidatePassword(password)
}

// ValidateCredentials checks login input.
func (v *Validator) ValidateCredentials(email, password string) error {
	if err := v.ValidateEmail(email); err != nil {
		return err
	}
	if password == "" {
		return fmt.Errorf("password is required")
	}
	return nil
}

// ValidateUsername checks the username field.
func (v *Validator) ValidateUsername(username string) error {
	username = strings.TrimSpace(username)
	if username == "" {
		return fmt.Errorf("username is required")
	}
	if len(username) < 3 {
		return fmt.Errorf("username must be at least 3 characters")
	}
	return nil
}

// ValidateEmail performs a shape check on the email field.
func (v *Validator) ValidateEmail(email string) error {
	email = strings.TrimSpace(email)
	if email == "" {
		return fmt.Errorf("email is required")
	}

	at := strings.Index(email, "@")
	if at <= 0 || at == len(email)-1 {
		return fmt.Errorf("invalid email address")
	}
	domain := email[at+1:]
	if !strings.Contains(domain, ".") || strings.HasPrefix(domain, ".") || strings.HasSuffix(domain, ".") {
		return fmt.Errorf("invalid email address")
	}
	return nil
}

// ValidatePassword enforces the minimum accepted complexity: at least eight
// characters with an upper-case letter, a lower-case letter, and a digit.
func (v *Validator) ValidatePassword(password string) error {
	if password == "" {
		return fmt.Errorf("password is required")
	}
	if len(password) < 8 {
		return fmt.Errorf("password must be at least 8 characters")
	}

	var hasUpper, hasLower, hasDigit bool
	for _, r := range password {
		switch {
		case unicode.IsUpper(r):
			hasUpper = true
		case unicode.IsLower(r):
			hasLower = true
		case unicode.IsDigit(r):
			hasDigit = true
		}
	}
	if !hasUpper || !hasLower || !hasDigit {
		return fmt.Errorf("password must contain upper-case, lower-case, and numeric characters")
	}
	return nil
}

// PasswordStrength scores a password from 0 to 6: length tiers at 8 and 12
// characters, plus one point each for lower-case, upper-case, digit, and
// symbol characters.
func PasswordStrength(password string) int {
	score := 0
	if len(password) >= 8 {
		score++
	}
	if len(password) >= 12 {
		score++
	}

	var hasLower, hasUpper, hasDigit, hasSymbol bool
	for _, r := range password {
		switch {
		case unicode.IsLower(r):
			hasLower = true
		case unicode.IsUpper(r):
			hasUpper = true
		case unicode.IsDigit(r):
			hasDigit = true
		default:
			hasSymbol = true
		}
	}
	for _, hit := range []bool{hasLower, hasUpper, hasDigit, hasSymbol} {
		if hit {
			score++
		}
	}
	return score
}

// StrengthLabel maps a strength score to its display tier.
func StrengthLabel(score int) string {
	switch {
	case score <= 2:
		return "Weak"
	case score <= 4:
		return "Medium"
	default:
		return "Strong"
	}
}
