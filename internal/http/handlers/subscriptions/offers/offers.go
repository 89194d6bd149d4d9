// Package offers реализует HTTP-обработчик каталога предложений.
package offers

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"

	"github.com/GRI-ESPCI/intrarez/internal/http/response"
	"github.com/GRI-ESPCI/intrarez/internal/lib/sl"
	"github.com/GRI-ESPCI/intrarez/internal/models"
)

// Handler обрабатывает HTTP-запросы каталога предложений.
type Handler struct {
	log     *slog.Logger // Логгер для записи операций и ошибок
	service Service      // Сервис бизнес-логики подписок
}

// Service описывает интерфейс каталога предложений.
type Service interface {
	Offers(ctx context.Context) ([]*models.Offer, error)
}

// New создает новый Handler с переданными логгером и сервисом.
func New(log *slog.Logger, service Service) *Handler {
	return &Handler{log: log, service: service}
}

// ServeHTTP godoc
// @Summary Каталог предложений
// @Description Возвращает видимые активные предложения подписки.
// @Tags Subscriptions
// @Produce  json
// @Success 200 {object} response.Response "Предложения"
// @Failure 500 {object} response.ErrorResponse "Внутренняя ошибка сервера"
// @Router /offers [get]
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.subscriptions.offers"
	log := h.log.With(
		slog.String("op", op),
		slog.String("request_id", middleware.GetReqID(r.Context())),
	)

	offers, err := h.service.Offers(r.Context())
	if err != nil {
		log.Error("failed to list offers", sl.Err(err))
		w.WriteHeader(http.StatusInternalServerError)
		render.JSON(w, r, response.Error("could not list offers"))
		return
	}

	render.JSON(w, r, response.StatusOKWithData(map[string]any{
		"offers": offers,
	}))
}
