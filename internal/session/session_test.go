package session

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/golang-jwt/jwt/v5"

	"github.com/rx3lixir/corrector-client/internal/apiclient"
	"github.com/rx3lixir/corrector-client/internal/models"
	"github.com/rx3lixir/corrector-client/internal/tokenstore"
)

const profileJSON = `{"user_id": 7, "email": "ivan@example.com", "first_name": "Иван", "surname_name": "Петров", "role": "user", "is_push_enabled": false}`

func signedToken(t *testing.T, claims jwt.MapClaims) string {
	t.Helper()
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("test-secret"))
	if err != nil {
		t.Fatalf("не удалось подписать токен: %v", err)
	}
	return token
}

type env struct {
	store    *tokenstore.MemoryStore
	client   *apiclient.Client
	observer *Observer
	session  *Session

	mu        sync.Mutex
	redirects []string
}

func (e *env) RedirectToLogin(from string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.redirects = append(e.redirects, from)
}

func (e *env) redirectCount() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.redirects)
}

// newEnv собирает сессию так же, как CLI: хранилище, наблюдатель 401, клиент
func newEnv(t *testing.T, h http.HandlerFunc) *env {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)

	e := &env{store: tokenstore.NewMemoryStore()}
	e.observer = NewObserver(e.store, e, nil)

	client, err := apiclient.New(srv.URL, e.store, apiclient.WithUnauthorizedHandler(e.observer.HandleUnauthorized))
	if err != nil {
		t.Fatal(err)
	}
	e.client = client
	e.session = New(client, e.store, WithObserver(e.observer))
	return e
}

func jsonHandler(routes map[string]func(w http.ResponseWriter, r *http.Request)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		h, ok := routes[r.URL.Path]
		if !ok {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		h(w, r)
	}
}

func TestLogin_StoresTokenAndProfile(t *testing.T) {
	e := newEnv(t, jsonHandler(map[string]func(http.ResponseWriter, *http.Request){
		"/token": func(w http.ResponseWriter, r *http.Request) {
			io.WriteString(w, `{"access_token": "tkn-1", "token_type": "bearer"}`)
		},
		"/me": func(w http.ResponseWriter, r *http.Request) {
			if r.Header.Get("Authorization") != "Bearer tkn-1" {
				w.WriteHeader(http.StatusUnauthorized)
				return
			}
			io.WriteString(w, profileJSON)
		},
	}))

	profile, err := e.session.Login(context.Background(), "ivan@example.com", "secret1")
	if err != nil {
		t.Fatalf("Login: %v", err)
	}
	if profile.DisplayName() != "Иван Петров" {
		t.Errorf("профиль: %+v", profile)
	}

	if token, ok := e.store.Token(); !ok || token != "tkn-1" {
		t.Errorf("токен не сохранен: %q", token)
	}
	if cached, ok := e.store.Profile(); !ok || cached.UserID != "7" {
		t.Errorf("профиль не закэширован: %+v", cached)
	}
	if !e.session.IsAuthenticated() {
		t.Error("после входа сессия должна быть аутентифицирована")
	}
}

func TestLogin_Rejected(t *testing.T) {
	e := newEnv(t, jsonHandler(map[string]func(http.ResponseWriter, *http.Request){
		"/token": func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusUnauthorized)
			io.WriteString(w, `{"detail": "Incorrect username or password"}`)
		},
	}))

	_, err := e.session.Login(context.Background(), "ivan@example.com", "wrong")

	var authErr *apiclient.AuthError
	if !errors.As(err, &authErr) {
		t.Fatalf("ожидали AuthError, получили %v", err)
	}
	if e.session.IsAuthenticated() {
		t.Error("после отказа токена быть не должно")
	}
	if e.redirectCount() != 0 {
		t.Error("неверный пароль не должен уводить на экран входа")
	}
}

func TestLogin_EmptyCredentials(t *testing.T) {
	e := newEnv(t, func(w http.ResponseWriter, r *http.Request) {
		t.Errorf("запроса быть не должно: %s", r.URL.Path)
	})

	_, err := e.session.Login(context.Background(), "", "")

	var vErr *apiclient.ValidationError
	if !errors.As(err, &vErr) || len(vErr.Fields) != 2 {
		t.Fatalf("ожидали две ошибки полей, получили %v", err)
	}
}

func TestRegister_Validation(t *testing.T) {
	e := newEnv(t, func(w http.ResponseWriter, r *http.Request) {
		t.Errorf("запроса быть не должно: %s", r.URL.Path)
	})

	_, err := e.session.Register(context.Background(), models.RegisterRequest{Login: "ivan", Password: "123"})

	var vErr *apiclient.ValidationError
	if !errors.As(err, &vErr) {
		t.Fatalf("ожидали ValidationError, получили %v", err)
	}
	if len(vErr.Fields) != 1 || vErr.Fields[0].Field != "password" || vErr.Fields[0].Type != "min" {
		t.Fatalf("поля: %+v", vErr.Fields)
	}
	if vErr.Message() != "password: Минимальная длина: 6" {
		t.Errorf("сообщение: %q", vErr.Message())
	}
}

func TestRegister_ServerValidation(t *testing.T) {
	e := newEnv(t, jsonHandler(map[string]func(http.ResponseWriter, *http.Request){
		"/register": func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusUnprocessableEntity)
			io.WriteString(w, `{"detail": [{"loc": ["body", "first_name"], "msg": "field required", "type": "value_error.missing"}]}`)
		},
	}))

	_, err := e.session.Register(context.Background(), models.RegisterRequest{Login: "ivan", Password: "secret1"})

	var vErr *apiclient.ValidationError
	if !errors.As(err, &vErr) || vErr.Local {
		t.Fatalf("ожидали ValidationError сервера, получили %v", err)
	}
	if vErr.Fields[0].Field != "first_name" {
		t.Errorf("поле: %+v", vErr.Fields[0])
	}
}

func TestRegister_WithoutTokenStillFetchesProfile(t *testing.T) {
	var meCalls int
	e := newEnv(t, jsonHandler(map[string]func(http.ResponseWriter, *http.Request){
		"/register": func(w http.ResponseWriter, r *http.Request) {
			io.WriteString(w, `{}`)
		},
		"/me": func(w http.ResponseWriter, r *http.Request) {
			meCalls++
			io.WriteString(w, profileJSON)
		},
	}))

	profile, err := e.session.Register(context.Background(), models.RegisterRequest{Login: "ivan", Password: "secret1"})
	if err != nil {
		t.Fatalf("Register: %v", err)
	}
	if meCalls != 1 || profile.Email != "ivan@example.com" {
		t.Fatalf("профиль: %+v, вызовов /me: %d", profile, meCalls)
	}
	if e.session.IsAuthenticated() {
		t.Error("без токена сессия не аутентифицирована")
	}
}

func TestLogout_ClearsTokenAndProfile(t *testing.T) {
	e := newEnv(t, http.NotFound)

	_ = e.store.SetToken("tkn")
	_ = e.store.SetProfile(&models.UserProfile{UserID: "7", Email: "ivan@example.com"})

	if e.session.CurrentUser() == nil {
		t.Fatal("до выхода пользователь должен быть")
	}

	if err := e.session.Logout(); err != nil {
		t.Fatalf("Logout: %v", err)
	}

	if _, ok := e.store.Token(); ok {
		t.Error("токен должен быть удален")
	}
	if _, ok := e.store.Profile(); ok {
		t.Error("профиль должен быть удален")
	}
	if u := e.session.CurrentUser(); u != nil {
		t.Errorf("после выхода CurrentUser должен быть nil, получили %+v", u)
	}
	if e.session.IsAuthenticated() {
		t.Error("после выхода сессия не аутентифицирована")
	}
}

func TestCurrentUser_FromToken(t *testing.T) {
	e := newEnv(t, http.NotFound)

	_ = e.store.SetToken(signedToken(t, jwt.MapClaims{"sub": "ivan@example.com", "user_id": 7, "role": "admin"}))

	u := e.session.CurrentUser()
	if u == nil {
		t.Fatal("профиль должен восстановиться из токена")
	}
	if !u.FromToken || u.Email != "ivan@example.com" || u.UserID != "7" || !u.IsAdmin() {
		t.Fatalf("профиль из токена: %+v", u)
	}

	_ = e.store.SetProfile(&models.UserProfile{UserID: "7", Email: "cached@example.com"})
	if u := e.session.CurrentUser(); u.FromToken || u.Email != "cached@example.com" {
		t.Fatalf("кэш профиля важнее токена: %+v", u)
	}
}

func TestCurrentUser_GarbageToken(t *testing.T) {
	e := newEnv(t, http.NotFound)
	_ = e.store.SetToken("not-a-jwt")

	if u := e.session.CurrentUser(); u != nil {
		t.Fatalf("из мусора профиль не восстанавливается: %+v", u)
	}
	if !e.session.IsAuthenticated() {
		t.Error("IsAuthenticated смотрит только на наличие токена")
	}
}

func TestUnauthorized_ClearsStoreAndRedirectsOnce(t *testing.T) {
	e := newEnv(t, jsonHandler(map[string]func(http.ResponseWriter, *http.Request){
		"/me": func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusUnauthorized)
			io.WriteString(w, `{"detail": "Could not validate credentials"}`)
		},
		"/gost-check/result/17": func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusUnauthorized)
		},
	}))

	_ = e.store.SetToken("expired")
	_ = e.store.SetProfile(&models.UserProfile{UserID: "7"})

	var wg sync.WaitGroup
	for i := 0; i < 5; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			_, _ = e.client.Me(context.Background())
		}()
		go func() {
			defer wg.Done()
			_, _ = e.client.CheckResult(context.Background(), "17")
		}()
	}
	wg.Wait()

	if n := e.redirectCount(); n != 1 {
		t.Fatalf("переход на вход должен случиться ровно один раз, было %d", n)
	}
	if _, ok := e.store.Token(); ok {
		t.Error("токен должен быть удален")
	}
	if _, ok := e.store.Profile(); ok {
		t.Error("профиль должен быть удален")
	}
	if !e.observer.Expired() {
		t.Error("наблюдатель должен помнить, что сессия сброшена")
	}
}

func TestObserver_RearmedAfterLogin(t *testing.T) {
	var loggedIn bool
	var mu sync.Mutex

	e := newEnv(t, jsonHandler(map[string]func(http.ResponseWriter, *http.Request){
		"/token": func(w http.ResponseWriter, r *http.Request) {
			mu.Lock()
			loggedIn = true
			mu.Unlock()
			io.WriteString(w, `{"access_token": "fresh"}`)
		},
		"/me": func(w http.ResponseWriter, r *http.Request) {
			mu.Lock()
			ok := loggedIn
			loggedIn = false
			mu.Unlock()
			if !ok {
				w.WriteHeader(http.StatusUnauthorized)
				return
			}
			io.WriteString(w, profileJSON)
		},
	}))

	_, _ = e.client.Me(context.Background())
	if e.redirectCount() != 1 {
		t.Fatal("первый 401 должен увести на вход")
	}

	if _, err := e.session.Login(context.Background(), "ivan@example.com", "secret1"); err != nil {
		t.Fatalf("Login: %v", err)
	}
	if e.observer.Expired() {
		t.Fatal("после входа наблюдатель должен быть взведен заново")
	}

	// Сессия снова протухла
	_, _ = e.client.Me(context.Background())
	if e.redirectCount() != 2 {
		t.Fatalf("после повторного входа 401 снова уводит на вход, переходов: %d", e.redirectCount())
	}
}

func TestNavigatorFunc(t *testing.T) {
	var got string
	var nav Navigator = NavigatorFunc(func(from string) { got = from })
	nav.RedirectToLogin("/check")
	if got != "/check" {
		t.Fatalf("got %q", got)
	}
}
