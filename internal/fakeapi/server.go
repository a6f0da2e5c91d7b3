// Package fakeapi заглушка API корректора в памяти: для разработки CLI без
// бэкенда и для сквозных тестов клиента. Повторяет контракт сервера,
// включая статус "Анализируется" и оценку строкой с ведущими нулями.
package fakeapi

import (
	"crypto/rand"
	"encoding/hex"
	"net/http"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/gorilla/mux"

	"github.com/rx3lixir/corrector-client/internal/logger"
	"github.com/rx3lixir/corrector-client/internal/models"
)

// Verdict итог, который заглушка отдает после завершения проверки
type Verdict struct {
	Score          string
	Errors         []any
	Warnings       []any
	Recommendation string
}

// DefaultVerdict итог по умолчанию
func DefaultVerdict() Verdict {
	return Verdict{
		Score:  "08.5",
		Errors: []any{"Поля страницы не соответствуют ГОСТ 7.32-2017"},
		Warnings: []any{
			map[string]any{"category": "Шрифт", "description": "Размер шрифта в подписи рисунка 12 вместо 14", "page": 4},
		},
	}
}

type user struct {
	password string
	profile  models.UserProfile
}

type document struct {
	id        int
	owner     string
	fileName  string
	storedAs  string
	size      int64
	status    string
	checkType models.CheckType
}

type check struct {
	id       int
	document *document
	polls    int
	started  time.Time
}

// Server заглушка API. Безопасна для конкурентного использования
type Server struct {
	mu        sync.Mutex
	users     map[string]*user
	documents map[int]*document
	checks    map[int]*check
	nextID    int

	readyAfter int
	verdict    Verdict
	secret     []byte
	log        logger.Logger
	router     *mux.Router
}

type Option func(*Server)

// WithReadyAfter сколько запросов результата отвечают "Анализируется"
func WithReadyAfter(n int) Option {
	return func(s *Server) {
		if n >= 0 {
			s.readyAfter = n
		}
	}
}

func WithVerdict(v Verdict) Option {
	return func(s *Server) {
		s.verdict = v
	}
}

func WithLogger(log logger.Logger) Option {
	return func(s *Server) {
		if log != nil {
			s.log = log
		}
	}
}

// WithUser заводит пользователя заранее
func WithUser(login, password string, profile models.UserProfile) Option {
	return func(s *Server) {
		s.addUser(login, password, profile)
	}
}

func New(opts ...Option) *Server {
	secret := make([]byte, 32)
	if _, err := rand.Read(secret); err != nil {
		secret = []byte(time.Now().String())
	}

	s := &Server{
		users:      make(map[string]*user),
		documents:  make(map[int]*document),
		checks:     make(map[int]*check),
		readyAfter: 1,
		verdict:    DefaultVerdict(),
		secret:     secret,
		log:        logger.Nop(),
	}
	for _, opt := range opts {
		opt(s)
	}

	s.router = s.routes()
	return s
}

func (s *Server) routes() *mux.Router {
	r := mux.NewRouter()
	r.Use(s.logRequests)

	r.HandleFunc("/", s.handleRoot).Methods(http.MethodGet)
	r.HandleFunc("/token", s.handleToken).Methods(http.MethodPost)
	r.HandleFunc("/register", s.handleRegister).Methods(http.MethodPost)
	r.HandleFunc("/me", s.authed(s.handleMe)).Methods(http.MethodGet)
	r.HandleFunc("/upload", s.authed(s.handleUpload)).Methods(http.MethodPost)
	r.HandleFunc("/gost-check/start", s.authed(s.handleStart)).Methods(http.MethodPost)
	r.HandleFunc("/gost-check/status/{document_id}", s.authed(s.handleStatus)).Methods(http.MethodGet)
	r.HandleFunc("/gost-check/result/{check_id}", s.authed(s.handleResult)).Methods(http.MethodGet)

	return r
}

// ServeHTTP позволяет отдавать Server прямо в http.Server или httptest
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		s.log.Debug("fake api request", "method", r.Method, "path", r.URL.Path, "duration", time.Since(start))
	})
}

// addUser вызывается под s.mu или до запуска
func (s *Server) addUser(login, password string, profile models.UserProfile) *user {
	s.nextID++
	if profile.UserID.IsZero() {
		profile.UserID = models.ID(itoa(s.nextID))
	}
	if profile.Email == "" {
		profile.Email = login
	}
	if profile.Role == "" {
		profile.Role = models.RoleUser
	}
	if profile.Theme == "" {
		profile.Theme = "dark"
	}
	u := &user{password: password, profile: profile}
	s.users[login] = u
	return u
}

// issueToken вызывается под s.mu
func (s *Server) issueToken(login string, u *user) (string, error) {
	claims := jwt.MapClaims{
		"sub":     login,
		"user_id": u.profile.UserID.String(),
		"role":    string(u.profile.Role),
		"exp":     time.Now().Add(time.Hour).Unix(),
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
}

// userFromToken проверяет подпись и возвращает логин
func (s *Server) userFromToken(token string) (string, bool) {
	s.mu.Lock()
	secret := s.secret
	s.mu.Unlock()

	claims := jwt.MapClaims{}
	_, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (any, error) {
		return secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		return "", false
	}
	sub, _ := claims["sub"].(string)
	return sub, sub != ""
}

// ExpireSessions меняет ключ подписи: все выданные токены перестают работать
func (s *Server) ExpireSessions() {
	s.mu.Lock()
	defer s.mu.Unlock()
	secret := make([]byte, 32)
	_, _ = rand.Read(secret)
	s.secret = secret
}

func storagePrefix() string {
	b := make([]byte, 4)
	_, _ = rand.Read(b)
	return itoa(int(time.Now().Unix())) + "_" + hex.EncodeToString(b) + "_"
}
