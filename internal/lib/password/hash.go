// Package password хеширует пароли аккаунтов через bcrypt.
//
// Hash вызывается при регистрации и при подтверждении сброса пароля,
// Verify — при входе. В базе хранится только хеш, исходный пароль
// нигде не сохраняется и не логируется.
package password

import (
	"fmt"

	"golang.org/x/crypto/bcrypt"
)

// Hash возвращает bcrypt-хеш пароля аккаунта для хранения в базе.
func Hash(plain string) (string, error) {
	const op = "password.Hash"
	hashed, err := bcrypt.GenerateFromPassword([]byte(plain), bcrypt.DefaultCost)
	if err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}
	return string(hashed), nil
}

// Verify сверяет пароль, введённый при входе, с хешем аккаунта.
// Возвращает nil при совпадении.
func Verify(storedHash, plain string) error {
	const op = "password.Verify"
	if err := bcrypt.CompareHashAndPassword([]byte(storedHash), []byte(plain)); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}
