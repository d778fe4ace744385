// Package token генерирует случайные url-safe токены для share-ссылок
// и одноразовых токенов подтверждения почты и сброса пароля.
package token

import (
	"crypto/rand"
	"encoding/base64"
	"fmt"
)

// New возвращает случайный url-safe токен из n байт энтропии.
func New(n int) (string, error) {
	const op = "token.New"
	buf := make([]byte, n)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}
