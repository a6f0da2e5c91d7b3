// Package guard решает, можно ли открыть защищенный экран.
package guard

import (
	"errors"
	"fmt"
)

// Экраны приложения
const (
	LoginPath   = "/login"
	CheckPath   = "/check"
	ProfilePath = "/profile"
)

// DefaultDestination куда вести после входа, если исходного пути нет
const DefaultDestination = CheckPath

// ErrLoginRequired защищенный экран открыт без входа
var ErrLoginRequired = errors.New("login required")

// State состояние одной навигации
type State int

const (
	Loading State = iota
	Authenticated
	Unauthenticated
)

func (s State) String() string {
	switch s {
	case Loading:
		return "loading"
	case Authenticated:
		return "authenticated"
	case Unauthenticated:
		return "unauthenticated"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// AuthChecker источник статуса входа. *session.Session ему удовлетворяет
type AuthChecker interface {
	IsAuthenticated() bool
}

// Decision итог навигации. Для Unauthenticated заполнены RedirectTo и From
type Decision struct {
	State      State
	Path       string
	RedirectTo string
	From       string
}

// Allowed экран можно показывать
func (d Decision) Allowed() bool {
	return d.State == Authenticated
}

// Guard охраняет защищенные экраны
type Guard struct {
	auth AuthChecker
}

func New(auth AuthChecker) *Guard {
	return &Guard{auth: auth}
}

// Navigation одна попытка открыть экран. Состояние меняется один раз:
// из Loading в Authenticated или Unauthenticated
type Navigation struct {
	guard    *Guard
	path     string
	decision Decision
}

// Begin начинает навигацию к path в состоянии Loading
func (g *Guard) Begin(path string) *Navigation {
	return &Navigation{
		guard:    g,
		path:     path,
		decision: Decision{State: Loading, Path: path},
	}
}

// State текущее состояние навигации
func (n *Navigation) State() State {
	return n.decision.State
}

// Resolve одна синхронная проверка входа. Повторный вызов возвращает
// то же решение: состояния Authenticated и Unauthenticated финальные
func (n *Navigation) Resolve() Decision {
	if n.decision.State != Loading {
		return n.decision
	}

	if n.guard.auth != nil && n.guard.auth.IsAuthenticated() {
		n.decision.State = Authenticated
		return n.decision
	}

	n.decision.State = Unauthenticated
	n.decision.RedirectTo = LoginPath
	n.decision.From = n.path
	return n.decision
}

// Check Begin и Resolve одним вызовом
func (g *Guard) Check(path string) Decision {
	return g.Begin(path).Resolve()
}

// AfterLogin куда перейти после успешного входа
func (g *Guard) AfterLogin(from string) string {
	if from == "" || from == LoginPath {
		return DefaultDestination
	}
	return from
}

// RedirectError отказ в доступе с путем для возврата после входа
type RedirectError struct {
	To   string
	From string
}

func (e *RedirectError) Error() string {
	return fmt.Sprintf("%s: redirect to %s (from %s)", ErrLoginRequired, e.To, e.From)
}

func (e *RedirectError) Unwrap() error {
	return ErrLoginRequired
}

// Message текст для пользователя
func (e *RedirectError) Message() string {
	return "Требуется вход. Выполните: corrector login"
}

// Require для команд CLI: nil или *RedirectError
func (g *Guard) Require(path string) error {
	d := g.Check(path)
	if d.Allowed() {
		return nil
	}
	return &RedirectError{To: d.RedirectTo, From: d.From}
}
