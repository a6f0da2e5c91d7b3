package models

// Role роль пользователя в сервисе
type Role string

const (
	RoleAdmin Role = "admin"
	RoleUser  Role = "user"
)

// UserProfile снимок профиля, который отдает GET /me.
// Кэшируется на клиенте и может отставать от сервера.
type UserProfile struct {
	UserID         ID      `json:"user_id"`
	Email          string  `json:"email"`
	Username       string  `json:"username,omitempty"`
	FirstName      string  `json:"first_name,omitempty"`
	SurnameName    string  `json:"surname_name,omitempty"`
	PatronomicName string  `json:"patronomic_name,omitempty"`
	Role           Role    `json:"role"`
	Theme          string  `json:"theme,omitempty"`
	IsPushEnabled  bool    `json:"is_push_enabled"`
	TgUsername     *string `json:"tg_username,omitempty"`
	IsTgSubscribed *bool   `json:"is_tg_subscribed,omitempty"`

	// FromToken выставляется, если профиль восстановлен из payload токена, а не из /me
	FromToken bool `json:"-"`
}

// DisplayName возвращает имя для показа пользователю
func (p *UserProfile) DisplayName() string {
	switch {
	case p.FirstName != "" && p.SurnameName != "":
		return p.FirstName + " " + p.SurnameName
	case p.Username != "":
		return p.Username
	default:
		return p.Email
	}
}

// IsAdmin сообщает, есть ли у пользователя права администратора
func (p *UserProfile) IsAdmin() bool {
	return p.Role == RoleAdmin
}

type TokenResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
}

// RegisterRequest тело POST /register
type RegisterRequest struct {
	FirstName      string  `json:"first_name"`
	SurnameName    string  `json:"surname_name"`
	PatronomicName *string `json:"patronomic_name,omitempty"`
	Login          string  `json:"login" validate:"required"`
	Password       string  `json:"password" validate:"required,min=6"`
	TgUsername     *string `json:"tg_username,omitempty"`
}

// LoginRequest учетные данные для POST /token
type LoginRequest struct {
	Username string `json:"username" validate:"required"`
	Password string `json:"password" validate:"required"`
}
