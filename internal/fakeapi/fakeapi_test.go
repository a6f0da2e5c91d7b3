package fakeapi_test

import (
	"bytes"
	"context"
	"errors"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/rx3lixir/corrector-client/internal/apiclient"
	"github.com/rx3lixir/corrector-client/internal/checkresult"
	"github.com/rx3lixir/corrector-client/internal/config"
	"github.com/rx3lixir/corrector-client/internal/fakeapi"
	"github.com/rx3lixir/corrector-client/internal/models"
	"github.com/rx3lixir/corrector-client/internal/poller"
	"github.com/rx3lixir/corrector-client/internal/session"
	"github.com/rx3lixir/corrector-client/internal/submission"
	"github.com/rx3lixir/corrector-client/internal/tokenstore"
)

var pdf = []byte("%PDF-1.7\n1 0 obj\n<<>>\nendobj\ntrailer\n")

type stack struct {
	api      *fakeapi.Server
	store    *tokenstore.MemoryStore
	client   *apiclient.Client
	session  *session.Session
	observer *session.Observer
	flow     *submission.Flow
	poller   *poller.Poller
	redirect chan string
}

func newStack(t *testing.T, opts ...fakeapi.Option) *stack {
	t.Helper()

	api := fakeapi.New(opts...)
	srv := httptest.NewServer(api)
	t.Cleanup(srv.Close)

	st := &stack{api: api, store: tokenstore.NewMemoryStore(), redirect: make(chan string, 4)}
	st.observer = session.NewObserver(st.store, session.NavigatorFunc(func(from string) {
		st.redirect <- from
	}), nil)

	client, err := apiclient.New(srv.URL, st.store, apiclient.WithUnauthorizedHandler(st.observer.HandleUnauthorized))
	if err != nil {
		t.Fatal(err)
	}
	st.client = client
	st.session = session.New(client, st.store, session.WithObserver(st.observer))
	st.flow = submission.New(client, 50<<20)
	st.poller = poller.New(client, config.PollParams{
		Interval:          5 * time.Millisecond,
		MaxAttempts:       50,
		BackoffMultiplier: 1,
		MaxInterval:       5 * time.Millisecond,
	})
	return st
}

func TestEndToEnd_RegisterSubmitPoll(t *testing.T) {
	st := newStack(t, fakeapi.WithReadyAfter(2))
	ctx := context.Background()

	profile, err := st.session.Register(ctx, models.RegisterRequest{
		FirstName:   "Иван",
		SurnameName: "Петров",
		Login:       "ivan@example.com",
		Password:    "secret1",
	})
	if err != nil {
		t.Fatalf("Register: %v", err)
	}
	if profile.Email != "ivan@example.com" || profile.DisplayName() != "Иван Петров" {
		t.Fatalf("профиль: %+v", profile)
	}

	sub, err := st.flow.Submit(ctx, &submission.File{Name: "report.pdf", Size: int64(len(pdf)), Content: bytes.NewReader(pdf)}, models.CheckTypeGOST)
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}

	status, err := st.client.CheckStatus(ctx, sub.DocumentID)
	if err != nil {
		t.Fatalf("CheckStatus: %v", err)
	}
	if status.Status != checkresult.StatusAnalyzing || status.Progress != 50 {
		t.Fatalf("статус: %+v", status)
	}

	var updates []poller.Update
	res, err := st.poller.Wait(ctx, sub.CheckID, func(u poller.Update) { updates = append(updates, u) })
	if err != nil {
		t.Fatalf("Wait: %v", err)
	}

	if len(updates) != 3 {
		t.Fatalf("ожидали два промежуточных и один финальный результат, получили %d", len(updates))
	}
	if updates[0].Result.IsTerminal || updates[0].Result.Status != checkresult.StatusAnalyzing {
		t.Fatalf("первый результат: %+v", updates[0].Result)
	}

	if !res.IsTerminal || res.NormalizedScore != 8.5 || res.Percent != 85 {
		t.Fatalf("итог: %+v", res)
	}
	if res.DocumentName != "report.pdf" {
		t.Fatalf("имя документа должно быть очищено от префикса: %q", res.DocumentName)
	}
	if len(res.Issues) != 2 || res.Issues[0].Type != checkresult.IssueError || res.Issues[1].Page != "4" {
		t.Fatalf("замечания: %+v", res.Issues)
	}
	if res.Recommendation != checkresult.RecommendationGood {
		t.Fatalf("рекомендация: %q", res.Recommendation)
	}

	status, err = st.client.CheckStatus(ctx, sub.DocumentID)
	if err != nil {
		t.Fatal(err)
	}
	if status.Status != "Проверен" || status.Progress != 80 {
		t.Fatalf("статус после проверки: %+v", status)
	}
}

func TestEndToEnd_LoginWithSeededUser(t *testing.T) {
	st := newStack(t, fakeapi.WithUser("admin", "adminpass", models.UserProfile{Role: models.RoleAdmin}))
	ctx := context.Background()

	if _, err := st.session.Login(ctx, "admin", "wrong-pass"); err == nil {
		t.Fatal("неверный пароль должен отклоняться")
	}

	profile, err := st.session.Login(ctx, "admin", "adminpass")
	if err != nil {
		t.Fatalf("Login: %v", err)
	}
	if !profile.IsAdmin() {
		t.Fatalf("профиль: %+v", profile)
	}

	token, _ := st.store.Token()
	fromToken, ok := session.ProfileFromToken(token)
	if !ok || fromToken.Email != "admin" || !fromToken.IsAdmin() {
		t.Fatalf("payload токена: %+v", fromToken)
	}
}

func TestEndToEnd_ExpiredSession(t *testing.T) {
	st := newStack(t, fakeapi.WithUser("ivan", "secret1", models.UserProfile{}))
	ctx := context.Background()

	if _, err := st.session.Login(ctx, "ivan", "secret1"); err != nil {
		t.Fatalf("Login: %v", err)
	}

	st.api.ExpireSessions()

	_, err := st.client.Me(ctx)
	var authErr *apiclient.AuthError
	if !errors.As(err, &authErr) {
		t.Fatalf("ожидали AuthError, получили %v", err)
	}

	select {
	case from := <-st.redirect:
		if from != apiclient.MePath {
			t.Fatalf("from: %q", from)
		}
	default:
		t.Fatal("ожидали переход на экран входа")
	}
	if st.session.IsAuthenticated() || st.session.CurrentUser() != nil {
		t.Fatal("после 401 сессия должна быть очищена")
	}
}

func TestEndToEnd_ResultNotFound(t *testing.T) {
	st := newStack(t, fakeapi.WithUser("ivan", "secret1", models.UserProfile{}))
	ctx := context.Background()

	if _, err := st.session.Login(ctx, "ivan", "secret1"); err != nil {
		t.Fatal(err)
	}

	_, err := st.client.CheckResult(ctx, "9999")
	var nf *apiclient.NotFoundError
	if !errors.As(err, &nf) {
		t.Fatalf("ожидали NotFoundError, получили %v", err)
	}
	if apiclient.UserMessage(err) != "Результат проверки не найден" {
		t.Fatalf("сообщение: %q", apiclient.UserMessage(err))
	}
}

func TestEndToEnd_RegisterValidation(t *testing.T) {
	st := newStack(t, fakeapi.WithUser("taken", "secret1", models.UserProfile{}))

	_, err := st.session.Register(context.Background(), models.RegisterRequest{Login: "taken", Password: "secret2"})

	var httpErr *apiclient.HTTPError
	if !errors.As(err, &httpErr) || httpErr.Status != 400 {
		t.Fatalf("ожидали 400, получили %v", err)
	}
	if apiclient.UserMessage(err) != "Пользователь с таким логином уже существует" {
		t.Fatalf("сообщение: %q", apiclient.UserMessage(err))
	}
}
