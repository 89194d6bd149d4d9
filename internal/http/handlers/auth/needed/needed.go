// Package needed реализует страницу-приземление для неаутентифицированных
// запросов: контекст доступа отправляет сюда анонимов за входом.
package needed

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/render"

	"github.com/GRI-ESPCI/intrarez/internal/http/response"
)

// Handler отвечает на запросы страницы аутентификации.
type Handler struct {
	log *slog.Logger
}

// New создает новый Handler.
func New(log *slog.Logger) *Handler {
	return &Handler{log: log}
}

// ServeHTTP godoc
// @Summary Страница аутентификации
// @Description Сообщает, что для продолжения нужен вход, и куда вернуться после него.
// @Tags Auth
// @Produce  json
// @Param next query string false "Путь возврата после входа"
// @Success 401 {object} response.Response "Требуется вход"
// @Router /auth/needed [get]
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusUnauthorized)
	render.JSON(w, r, response.Response{
		Status: response.StatusError,
		Error:  "authentication required",
		Data: map[string]any{
			"login": "/api/v1/auth/login",
			"next":  r.URL.Query().Get("next"),
		},
	})
}
