// Package runsubstate реализует HTTP-обработчик пересчёта состояний
// подписки по запросу GRI, вне суточного расписания.
package runsubstate

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"

	"github.com/GRI-ESPCI/intrarez/internal/http/response"
	"github.com/GRI-ESPCI/intrarez/internal/lib/sl"
	"github.com/GRI-ESPCI/intrarez/internal/services/substate"
)

// Handler обрабатывает HTTP-запросы запуска пересчёта.
type Handler struct {
	log     *slog.Logger // Логгер для записи операций и ошибок
	service Service      // Сервис пересчёта состояний
}

// Service описывает интерфейс пересчёта состояний.
type Service interface {
	RunOnce(ctx context.Context) (substate.Stats, error)
}

// New создает новый Handler с переданными логгером и сервисом.
func New(log *slog.Logger, service Service) *Handler {
	return &Handler{log: log, service: service}
}

// ServeHTTP godoc
// @Summary Пересчитать состояния подписки
// @Tags Gris
// @Produce  json
// @Success 200 {object} response.Response "Итоги пересчёта"
// @Failure 500 {object} response.ErrorResponse "Внутренняя ошибка сервера"
// @Router /gris/substate/run [post]
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.gris.runsubstate"
	log := h.log.With(
		slog.String("op", op),
		slog.String("request_id", middleware.GetReqID(r.Context())),
	)

	stats, err := h.service.RunOnce(r.Context())
	if err != nil {
		log.Error("substate recomputation failed", sl.Err(err))
		w.WriteHeader(http.StatusInternalServerError)
		render.JSON(w, r, response.Error("could not recompute states"))
		return
	}

	log.Info("substate recomputation done",
		slog.Int("scanned", stats.Scanned), slog.Int("changed", stats.Changed))
	render.JSON(w, r, response.StatusOKWithData(stats))
}
