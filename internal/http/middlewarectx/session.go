// Package middlewarectx содержит HTTP middleware портала: восстановление
// сессии из куки, вычисление контекста доступа и охранные предикаты маршрутов.
package middlewarectx

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/middleware"

	"github.com/GRI-ESPCI/intrarez/internal/lib/sl"
	"github.com/GRI-ESPCI/intrarez/internal/models"
)

// Key тип для ключей контекста HTTP-запроса.
type Key string

const (
	// KeyPrincipal — ключ аутентифицированного аккаунта в контексте.
	KeyPrincipal Key = "principal"
	// KeyEntitlement — ключ вычисленного контекста доступа.
	KeyEntitlement Key = "entitlement"
)

// Authenticator описывает сервис восстановления аккаунта из токена сессии.
type Authenticator interface {
	Authenticate(ctx context.Context, token string) (*models.Account, error)
}

// Session возвращает middleware, восстанавливающее аккаунт из сессионной
// куки. Отсутствие или невалидность куки не ошибка: запрос продолжается
// анонимным, решение принимают охранные предикаты ниже по цепочке.
func Session(auth Authenticator, cookieName string, log *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			const op = "middlewarectx.Session"

			cookie, err := r.Cookie(cookieName)
			if err != nil {
				next.ServeHTTP(w, r)
				return
			}

			account, err := auth.Authenticate(r.Context(), cookie.Value)
			if err != nil {
				log.Error("session lookup failed",
					slog.String("op", op),
					slog.String("request_id", middleware.GetReqID(r.Context())),
					sl.Err(err))
				next.ServeHTTP(w, r)
				return
			}
			if account == nil {
				next.ServeHTTP(w, r)
				return
			}

			ctx := context.WithValue(r.Context(), KeyPrincipal, account)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// PrincipalFromContext возвращает аккаунт текущей сессии или nil.
func PrincipalFromContext(ctx context.Context) *models.Account {
	account, _ := ctx.Value(KeyPrincipal).(*models.Account)
	return account
}
