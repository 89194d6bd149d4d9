// Package accounts реализует HTTP-обработчик списка аккаунтов для GRI.
package accounts

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"

	"github.com/GRI-ESPCI/intrarez/internal/http/response"
	"github.com/GRI-ESPCI/intrarez/internal/lib/sl"
	"github.com/GRI-ESPCI/intrarez/internal/models"
)

// Handler обрабатывает HTTP-запросы списка аккаунтов.
type Handler struct {
	log     *slog.Logger // Логгер для записи операций и ошибок
	service Service      // Сервис административных операций
}

// Service описывает интерфейс списка аккаунтов.
type Service interface {
	Accounts(ctx context.Context, limit, offset int) ([]*models.Account, error)
}

// New создает новый Handler с переданными логгером и сервисом.
func New(log *slog.Logger, service Service) *Handler {
	return &Handler{log: log, service: service}
}

// ServeHTTP godoc
// @Summary Список аккаунтов
// @Tags Gris
// @Produce  json
// @Param limit query int false "Размер страницы"
// @Param offset query int false "Смещение"
// @Success 200 {object} response.Response "Аккаунты"
// @Failure 500 {object} response.ErrorResponse "Внутренняя ошибка сервера"
// @Router /gris/accounts [get]
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.gris.accounts"
	log := h.log.With(
		slog.String("op", op),
		slog.String("request_id", middleware.GetReqID(r.Context())),
	)

	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	offset, _ := strconv.Atoi(r.URL.Query().Get("offset"))

	accounts, err := h.service.Accounts(r.Context(), limit, offset)
	if err != nil {
		log.Error("failed to list accounts", sl.Err(err))
		w.WriteHeader(http.StatusInternalServerError)
		render.JSON(w, r, response.Error("could not list accounts"))
		return
	}

	render.JSON(w, r, response.StatusOKWithData(map[string]any{
		"accounts": accounts,
		"count":    len(accounts),
	}))
}
