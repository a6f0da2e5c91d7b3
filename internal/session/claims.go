package session

import (
	"github.com/golang-jwt/jwt/v5"
	"github.com/spf13/cast"

	"github.com/rx3lixir/corrector-client/internal/models"
)

// ProfileFromToken восстанавливает профиль из payload токена без проверки подписи.
// Подпись проверяет только сервер; здесь это лишь подсказка для показа
func ProfileFromToken(token string) (*models.UserProfile, bool) {
	if token == "" {
		return nil, false
	}

	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		return nil, false
	}

	p := &models.UserProfile{
		UserID:    models.ID(cast.ToString(claims["user_id"])),
		Email:     cast.ToString(claims["email"]),
		Username:  cast.ToString(claims["username"]),
		Role:      models.Role(cast.ToString(claims["role"])),
		FromToken: true,
	}
	// Бэкенд кладет логин в sub
	if p.Email == "" {
		p.Email = cast.ToString(claims["sub"])
	}
	if p.Role == "" {
		p.Role = models.RoleUser
	}

	if p.Email == "" && p.UserID.IsZero() {
		return nil, false
	}
	return p, true
}
