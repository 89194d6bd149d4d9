// Package token реализует подписанные сессионные токены (JWT в cookie).
//
// SessionClaims расширяет стандартные claims JWT идентификатором аккаунта,
// именем пользователя и признаком GRI. Признак GRI проверяется заново по
// базе на каждом запросе; в токене он служит только подсказкой.
package token

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// SessionClaims описывает данные сессии, хранящиеся в JWT.
type SessionClaims struct {
	AccountID            int    `json:"account_id"` // Идентификатор аккаунта
	Username             string `json:"username"`   // Имя пользователя
	IsGri                bool   `json:"is_gri"`     // Признак сотрудника
	jwt.RegisteredClaims        // Стандартные claims (ExpiresAt, IssuedAt и пр.)
}

// Maker описывает интерфейс для генерации и парсинга сессионных токенов.
type Maker interface {
	// Generate создаёт токен сессии для аккаунта.
	Generate(accountID int, username string, isGri bool) (string, error)
	// Parse проверяет подпись и срок действия, возвращает claims.
	Parse(tokenStr string) (*SessionClaims, error)
}

// MakerImpl реализует Maker на секретном ключе HS256 и TTL.
type MakerImpl struct {
	secretKey string
	tokenTTL  time.Duration
}

// NewMaker создаёт новый MakerImpl.
func NewMaker(secretKey string, ttl time.Duration) *MakerImpl {
	return &MakerImpl{
		secretKey: secretKey,
		tokenTTL:  ttl,
	}
}

// Generate создает сессионный токен, подписывая его секретным ключом.
func (m *MakerImpl) Generate(accountID int, username string, isGri bool) (string, error) {
	claims := SessionClaims{
		AccountID: accountID,
		Username:  username,
		IsGri:     isGri,
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(time.Now()),
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(m.tokenTTL)),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(m.secretKey))
}

// Parse парсит токен, проверяет его подпись и срок действия.
func (m *MakerImpl) Parse(tokenStr string) (*SessionClaims, error) {
	const op = "token.Parse"
	token, err := jwt.ParseWithClaims(tokenStr, &SessionClaims{}, func(_ *jwt.Token) (any, error) {
		return []byte(m.secretKey), nil
	})
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	claims, ok := token.Claims.(*SessionClaims)
	if !ok || !token.Valid {
		return nil, fmt.Errorf("%s: invalid token", op)
	}
	return claims, nil
}
