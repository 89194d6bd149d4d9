// Package external реализует страницу для запросов извне резиденции:
// портал доступен, но сетевые операции с устройствами возможны только
// из внутренней сети.
package external

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/render"

	"github.com/GRI-ESPCI/intrarez/internal/http/middlewarectx"
	"github.com/GRI-ESPCI/intrarez/internal/http/response"
)

// Handler отвечает на запросы внешней страницы.
type Handler struct {
	log *slog.Logger
}

// New создает новый Handler.
func New(log *slog.Logger) *Handler {
	return &Handler{log: log}
}

// ServeHTTP godoc
// @Summary Внешняя страница портала
// @Tags Portal
// @Produce  json
// @Success 200 {object} response.Response "Внешний режим"
// @Router /external [get]
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	data := map[string]any{
		"external": true,
		"detail":   "you are browsing from outside the residence network",
	}
	if ec := middlewarectx.EntitlementFromContext(r.Context()); ec != nil && ec.LoggedIn {
		data["username"] = ec.Account.Username
		data["sub_state"] = ec.Account.SubState
	}
	render.JSON(w, r, response.StatusOKWithData(data))
}
