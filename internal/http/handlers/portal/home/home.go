// Package home реализует заглавную страницу портала: сводка доступа
// для вошедшего резидента, приглашение войти для анонима.
package home

import (
	"net/http"

	"log/slog"

	"github.com/go-chi/render"

	"github.com/GRI-ESPCI/intrarez/internal/http/middlewarectx"
	"github.com/GRI-ESPCI/intrarez/internal/http/response"
)

// Handler отвечает на запросы заглавной страницы.
type Handler struct {
	log *slog.Logger
}

// New создает новый Handler.
func New(log *slog.Logger) *Handler {
	return &Handler{log: log}
}

// ServeHTTP godoc
// @Summary Заглавная страница портала
// @Tags Portal
// @Produce  json
// @Success 200 {object} response.Response "Сводка доступа"
// @Router / [get]
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ec := middlewarectx.EntitlementFromContext(r.Context())
	if ec == nil || !ec.LoggedIn {
		render.JSON(w, r, response.StatusOKWithData(map[string]any{
			"welcome": "IntraRez",
			"login":   "/api/v1/auth/login",
		}))
		return
	}

	data := map[string]any{
		"username":  ec.Account.Username,
		"sub_state": ec.Account.SubState,
		"internal":  ec.Internal,
		"all_good":  ec.AllGood,
	}
	if ec.MaintenanceWarning {
		data["maintenance_warning"] = true
	}
	if ec.Redemption != nil {
		data["redemption"] = ec.Redemption.Endpoint
	}
	render.JSON(w, r, response.StatusOKWithData(data))
}
