package apiclient

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"runtime"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rx3lixir/corrector-client/internal/models"
)

type staticToken string

func (s staticToken) Token() (string, bool) {
	return string(s), s != ""
}

func newTestClient(t *testing.T, h http.HandlerFunc, tokens TokenSource, opts ...Option) *Client {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)

	c, err := New(srv.URL, tokens, opts...)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return c
}

func writeJSON(w http.ResponseWriter, status int, body string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = io.WriteString(w, body)
}

func TestNew_InvalidBaseURL(t *testing.T) {
	for _, u := range []string{"ftp://host", "::nope", "localhost:8020"} {
		if _, err := New(u, nil); err == nil {
			t.Errorf("ожидали ошибку для %q", u)
		}
	}
}

func TestDo_AttachesBearerToken(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("Authorization"); got != "Bearer tkn" {
			t.Errorf("Authorization: получили %q", got)
		}
		if r.Header.Get("X-Request-ID") == "" {
			t.Error("нет X-Request-ID")
		}
		writeJSON(w, http.StatusOK, `{"user_id": 5, "email": "a@b.c", "role": "user"}`)
	}, staticToken("tkn"))

	p, err := c.Me(context.Background())
	if err != nil {
		t.Fatalf("Me: %v", err)
	}
	if p.UserID != "5" || p.Email != "a@b.c" {
		t.Fatalf("профиль разобран неверно: %+v", p)
	}
}

func TestDo_AnonymousWithoutToken(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("Authorization"); got != "" {
			t.Errorf("анонимный запрос не должен нести Authorization, получили %q", got)
		}
		w.WriteHeader(http.StatusNoContent)
	}, staticToken(""))

	if err := c.Do(context.Background(), &Request{Path: "/anything"}, nil); err != nil {
		t.Fatal(err)
	}
}

func TestLogin_ForcesFormEncoding(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != LoginPath {
			t.Errorf("путь: %s", r.URL.Path)
		}
		if ct := r.Header.Get("Content-Type"); ct != "application/x-www-form-urlencoded" {
			t.Errorf("Content-Type логина: %q", ct)
		}
		if err := r.ParseForm(); err != nil {
			t.Fatal(err)
		}
		if r.PostForm.Get("username") != "ivan@example.com" || r.PostForm.Get("password") != "p@ss word" {
			t.Errorf("форма: %v", r.PostForm)
		}
		writeJSON(w, http.StatusOK, `{"access_token": "jwt", "token_type": "bearer"}`)
	}, nil)

	res, err := c.Login(context.Background(), "ivan@example.com", "p@ss word")
	if err != nil {
		t.Fatalf("Login: %v", err)
	}
	if res.AccessToken != "jwt" {
		t.Fatalf("токен: %q", res.AccessToken)
	}
}

func TestDo_LoginIgnoresPresetContentType(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if ct := r.Header.Get("Content-Type"); ct != "application/x-www-form-urlencoded" {
			t.Errorf("Content-Type логина: %q", ct)
		}
		writeJSON(w, http.StatusOK, `{}`)
	}, nil)

	req := &Request{
		Method: http.MethodPost,
		Path:   LoginPath,
		Header: http.Header{"Content-Type": {"application/json"}},
	}
	if err := c.Do(context.Background(), req, nil); err != nil {
		t.Fatal(err)
	}
}

func TestUpload_MultipartBoundary(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if !strings.HasPrefix(r.Header.Get("Content-Type"), "multipart/form-data; boundary=") {
			t.Errorf("Content-Type: %q", r.Header.Get("Content-Type"))
		}
		file, header, err := r.FormFile("file")
		if err != nil {
			t.Fatalf("FormFile: %v", err)
		}
		defer file.Close()
		data, _ := io.ReadAll(file)
		if header.Filename != "report.pdf" || string(data) != "%PDF-1.7 body" {
			t.Errorf("файл: %s %q", header.Filename, data)
		}
		writeJSON(w, http.StatusOK, `{"document_id": 42}`)
	}, staticToken("tkn"))

	res, err := c.Upload(context.Background(), "report.pdf", strings.NewReader("%PDF-1.7 body"))
	if err != nil {
		t.Fatalf("Upload: %v", err)
	}
	if res.DocumentID != "42" {
		t.Fatalf("document_id: %q", res.DocumentID)
	}
}

func TestDo_MultipartDropsPresetContentType(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseMultipartForm(1 << 20); err != nil {
			t.Errorf("тело должно разбираться как multipart: %v", err)
		}
		if r.FormValue("check_type") != "gost" {
			t.Errorf("дополнительное поле: %q", r.FormValue("check_type"))
		}
		w.WriteHeader(http.StatusOK)
	}, nil)

	req := &Request{
		Method: http.MethodPost,
		Path:   UploadPath,
		Header: http.Header{"Content-Type": {"application/json"}},
		File: &FilePart{
			FileName: "a.docx",
			Content:  strings.NewReader("PK"),
			Fields:   map[string]string{"check_type": "gost"},
		},
	}
	if err := c.Do(context.Background(), req, nil); err != nil {
		t.Fatal(err)
	}
}

func TestDo_UnauthorizedInvokesHandler(t *testing.T) {
	var calls atomic.Int32
	var gotPath atomic.Value

	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusUnauthorized, `{"detail": "Could not validate credentials"}`)
	}, staticToken("expired"), WithUnauthorizedHandler(func(path string) {
		calls.Add(1)
		gotPath.Store(path)
	}))

	_, err := c.Me(context.Background())

	var authErr *AuthError
	if !errors.As(err, &authErr) {
		t.Fatalf("ожидали AuthError, получили %T %v", err, err)
	}
	if authErr.Message() != "Could not validate credentials" {
		t.Errorf("сообщение: %q", authErr.Message())
	}
	if calls.Load() != 1 {
		t.Fatalf("обработчик 401 должен вызваться ровно один раз, вызван %d", calls.Load())
	}
	if gotPath.Load() != MePath {
		t.Errorf("путь в обработчике: %v", gotPath.Load())
	}
}

func TestLogin_RejectedCredentialsDoNotTriggerHandler(t *testing.T) {
	for _, status := range []int{http.StatusUnauthorized, http.StatusBadRequest} {
		var calls atomic.Int32
		c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			writeJSON(w, status, `{"detail": "Incorrect username or password"}`)
		}, nil, WithUnauthorizedHandler(func(string) { calls.Add(1) }))

		_, err := c.Login(context.Background(), "u", "bad")

		var authErr *AuthError
		if !errors.As(err, &authErr) {
			t.Fatalf("status %d: ожидали AuthError, получили %v", status, err)
		}
		if calls.Load() != 0 {
			t.Fatalf("status %d: неверный пароль не должен сбрасывать сессию", status)
		}
	}
}

func TestDo_ValidationError(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusUnprocessableEntity, `{"detail": [
			{"loc": ["body", "password"], "msg": "field required", "type": "value_error.missing"},
			{"loc": ["body", 0], "msg": "bad item", "type": "type_error"}
		]}`)
	}, nil)

	_, err := c.Register(context.Background(), models.RegisterRequest{Login: "x"})

	var vErr *ValidationError
	if !errors.As(err, &vErr) {
		t.Fatalf("ожидали ValidationError, получили %T %v", err, err)
	}
	if len(vErr.Fields) != 2 {
		t.Fatalf("полей: %d", len(vErr.Fields))
	}
	if vErr.Fields[0].Field != "password" || vErr.Fields[1].Field != "0" {
		t.Errorf("поля: %+v", vErr.Fields)
	}
	if want := "body → password: field required\nbody → 0: bad item"; vErr.Message() != want {
		t.Errorf("Message: %q", vErr.Message())
	}
	if vErr.Local {
		t.Error("ошибка сервера не должна помечаться как локальная")
	}
}

func TestDo_OtherErrors(t *testing.T) {
	cases := []struct {
		name    string
		status  int
		body    string
		message string
	}{
		{"строка в detail", http.StatusBadRequest, `{"detail": "Документ не найден"}`, "Документ не найден"},
		{"объект в detail", http.StatusForbidden, `{"detail": {"msg": "Нет доступа"}}`, "Нет доступа"},
		{"поле error", http.StatusTooManyRequests, `{"error": "Rate limit exceeded"}`, "Rate limit exceeded"},
		{"пустое тело", http.StatusInternalServerError, ``, GenericErrorMessage},
		{"неизвестная форма", http.StatusBadGateway, `{"detail": 42}`, GenericErrorMessage},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				writeJSON(w, tc.status, tc.body)
			}, nil)

			err := c.Do(context.Background(), &Request{Path: "/x"}, nil)

			var httpErr *HTTPError
			if !errors.As(err, &httpErr) {
				t.Fatalf("ожидали HTTPError, получили %T %v", err, err)
			}
			if httpErr.Status != tc.status {
				t.Errorf("status: %d", httpErr.Status)
			}
			if UserMessage(err) != tc.message {
				t.Errorf("сообщение: %q, ожидали %q", UserMessage(err), tc.message)
			}
		})
	}
}

func TestDo_NotFound(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusNotFound, `{"detail": "Результат проверки не найден"}`)
	}, nil)

	_, err := c.CheckResult(context.Background(), "77")

	var nf *NotFoundError
	if !errors.As(err, &nf) {
		t.Fatalf("ожидали NotFoundError, получили %v", err)
	}
	if nf.Path != "/gost-check/result/77" {
		t.Errorf("путь: %s", nf.Path)
	}
}

func TestDo_NetworkError(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	c, err := New(url, nil)
	if err != nil {
		t.Fatal(err)
	}

	err = c.Do(context.Background(), &Request{Path: "/me"}, nil)

	var netErr *NetworkError
	if !errors.As(err, &netErr) {
		t.Fatalf("ожидали NetworkError, получили %T %v", err, err)
	}
	if err := c.Ping(context.Background()); err == nil {
		t.Fatal("Ping закрытого сервера должен вернуть ошибку")
	}
}

func TestDo_ContextCanceled(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}, nil)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := c.Do(ctx, &Request{Path: "/me"}, nil)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("ожидали context.Canceled в цепочке, получили %v", err)
	}
}

func TestDo_RateLimit(t *testing.T) {
	var hits atomic.Int32
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.WriteHeader(http.StatusOK)
	}, nil, WithRateLimit(1000, 2))

	for i := 0; i < 5; i++ {
		if err := c.Do(context.Background(), &Request{Path: "/x"}, nil); err != nil {
			t.Fatal(err)
		}
	}
	if hits.Load() != 5 {
		t.Fatalf("все запросы должны пройти, прошло %d", hits.Load())
	}
}

func TestUpload_RateWaitFailureDoesNotLeakWriter(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, `{"document_id": 1}`)
	}, nil, WithRateLimit(0.001, 1))

	// Единственный токен лимитера расходуется здесь
	if _, err := c.Upload(context.Background(), "a.pdf", strings.NewReader("%PDF-1.7")); err != nil {
		t.Fatal(err)
	}

	before := runtime.NumGoroutine()
	for i := 0; i < 50; i++ {
		ctx, cancel := context.WithTimeout(context.Background(), time.Millisecond)
		_, err := c.Upload(ctx, "a.pdf", strings.NewReader("%PDF-1.7"))
		cancel()
		if err == nil {
			t.Fatal("ожидали ошибку ожидания лимитера")
		}
	}

	// Даем завершиться служебным горутинам таймеров
	var after int
	for i := 0; i < 20; i++ {
		after = runtime.NumGoroutine()
		if after <= before+5 {
			break
		}
		time.Sleep(10 * time.Millisecond)
	}
	if after > before+5 {
		t.Fatalf("горутины писателя multipart не освобождены: было %d, стало %d", before, after)
	}
}

func TestStartCheck_SendsJSON(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		if string(body) != `{"document_id":42,"check_type":"gost"}` {
			t.Errorf("тело: %s", body)
		}
		if r.Header.Get("Content-Type") != "application/json" {
			t.Errorf("Content-Type: %q", r.Header.Get("Content-Type"))
		}
		writeJSON(w, http.StatusOK, `{"check_id": "c-1", "status": "Анализируется"}`)
	}, nil)

	res, err := c.StartCheck(context.Background(), models.StartCheckRequest{DocumentID: "42", CheckType: models.CheckTypeGOST})
	if err != nil {
		t.Fatal(err)
	}
	if res.CheckID != "c-1" {
		t.Fatalf("check_id: %q", res.CheckID)
	}
}
