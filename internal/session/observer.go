package session

import (
	"sync/atomic"

	"github.com/rx3lixir/corrector-client/internal/logger"
	"github.com/rx3lixir/corrector-client/internal/tokenstore"
)

// Navigator переход к экрану входа. В CLI это сообщение и выход,
// в других фронтендах настоящая навигация
type Navigator interface {
	RedirectToLogin(from string)
}

// NavigatorFunc адаптер функции к Navigator
type NavigatorFunc func(from string)

func (f NavigatorFunc) RedirectToLogin(from string) { f(from) }

// Observer единственный получатель сигнала 401 от HTTP-клиента.
// Очищает хранилище и уводит на вход один раз; следующий успешный вход
// снова взводит его
type Observer struct {
	store tokenstore.Store
	nav   Navigator
	log   logger.Logger
	fired atomic.Bool
}

func NewObserver(store tokenstore.Store, nav Navigator, log logger.Logger) *Observer {
	if log == nil {
		log = logger.Nop()
	}
	return &Observer{store: store, nav: nav, log: log}
}

// HandleUnauthorized подходит как apiclient.UnauthorizedHandler
func (o *Observer) HandleUnauthorized(path string) {
	if !o.fired.CompareAndSwap(false, true) {
		o.log.Debug("session already expired, skipping redirect", "path", path)
		return
	}

	o.log.Warn("session expired, clearing credentials", "path", path)
	if err := o.store.Clear(); err != nil {
		o.log.Error("failed to clear token store", "error", err)
	}
	if o.nav != nil {
		o.nav.RedirectToLogin(path)
	}
}

// Rearm вызывается после успешного входа
func (o *Observer) Rearm() {
	o.fired.Store(false)
}

// Expired сообщает, что сессия была сброшена по 401 и вход еще не повторен
func (o *Observer) Expired() bool {
	return o.fired.Load()
}
