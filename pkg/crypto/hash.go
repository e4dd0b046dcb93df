package crypto

import (
	"errors"

	"golang.org/x/crypto/bcrypt"
)

// Ошибки хеширования
var (
	ErrEmptyPassword    = errors.New("password cannot be empty")
	ErrPasswordMismatch = errors.New("password does not match hash")
	ErrInvalidHash      = errors.New("invalid password hash format")
	ErrPasswordTooLong  = errors.New("password exceeds maximum length of 72 bytes")
)

// DefaultCost - стоимость хеширования по умолчанию
const DefaultCost = 12

// MaxPasswordLength - максимальная длина пароля для bcrypt (72 байта)
const MaxPasswordLength = 72

// HashPassword хеширует пароль оператора для API_PASSWORD_HASH.
// Salt генерируется автоматически.
func HashPassword(password string) (string, error) {
	if password == "" {
		return "", ErrEmptyPassword
	}

	// bcrypt ограничен 72 байтами
	if len(password) > MaxPasswordLength {
		return "", ErrPasswordTooLong
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), DefaultCost)
	if err != nil {
		return "", err
	}

	return string(hash), nil
}

// VerifyPassword проверяет соответствие пароля хешу.
// Сравнение constant-time, timing attack не применим.
func VerifyPassword(password, hash string) error {
	if password == "" {
		return ErrEmptyPassword
	}

	if hash == "" {
		return ErrInvalidHash
	}

	err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(password))
	if err != nil {
		if errors.Is(err, bcrypt.ErrMismatchedHashAndPassword) {
			return ErrPasswordMismatch
		}
		return ErrInvalidHash
	}

	return nil
}

// CheckPasswordMatch проверяет соответствие пароля хешу и возвращает bool.
// Удобная обёртка для использования в условиях.
func CheckPasswordMatch(password, hash string) bool {
	return VerifyPassword(password, hash) == nil
}
