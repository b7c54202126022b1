package core

import (
	"errors"
	"strings"
)

// MinPasswordLength is the shortest password the register form accepts.
const MinPasswordLength = 6

var (
	ErrPasswordMismatch = errors.New("รหัสผ่านไม่ตรงกัน")
	ErrPasswordTooShort = errors.New("รหัสผ่านต้องมีความยาวอย่างน้อย 6 ตัวอักษร")
	ErrEmptyName        = errors.New("name is required")
	ErrEmptyEmail       = errors.New("email is required")
	ErrEmptyPassword    = errors.New("password is required")
)

// Registration is the sign-up form. Confirm never leaves the client.
type Registration struct {
	Name     string  `json:"name"`
	Email    string  `json:"email"`
	Password string  `json:"password"`
	Confirm  string  `json:"-"`
	GoogleID *string `json:"google_id,omitempty"`
}

// Validate runs the checks the register form performs before submitting.
func (r Registration) Validate() error {
	if strings.TrimSpace(r.Name) == "" {
		return ErrEmptyName
	}
	if strings.TrimSpace(r.Email) == "" {
		return ErrEmptyEmail
	}
	if r.Password != r.Confirm {
		return ErrPasswordMismatch
	}
	if len([]rune(r.Password)) < MinPasswordLength {
		return ErrPasswordTooShort
	}
	return nil
}

// PasswordStrength scores a password from 0 (empty) to 4 (strong).
func PasswordStrength(password string) int {
	if password == "" {
		return 0
	}
	n := len([]rune(password))
	score := 0
	if n >= 6 {
		score++
	}
	if n >= 10 {
		score++
	}

	var digit, symbol, upper, lower bool
	for _, r := range password {
		switch {
		case r >= '0' && r <= '9':
			digit = true
		case r >= 'A' && r <= 'Z':
			upper = true
		case r >= 'a' && r <= 'z':
			lower = true
		default:
			symbol = true
		}
	}
	if digit {
		score++
	}
	if symbol {
		score++
	}
	if upper && lower {
		score++
	}
	return min(score, 4)
}

// StrengthLabel is the label shown under the password field.
func StrengthLabel(score int) string {
	switch score {
	case 1:
		return "อ่อนมาก"
	case 2:
		return "อ่อน"
	case 3:
		return "ปานกลาง"
	case 4:
		return "แข็งแรง"
	default:
		return "กรุณากรอกรหัสผ่าน"
	}
}
