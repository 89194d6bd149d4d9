// Package list реализует HTTP-обработчик списка устройств резидента.
package list

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"

	"github.com/GRI-ESPCI/intrarez/internal/http/middlewarectx"
	"github.com/GRI-ESPCI/intrarez/internal/http/response"
	"github.com/GRI-ESPCI/intrarez/internal/lib/sl"
	"github.com/GRI-ESPCI/intrarez/internal/models"
)

// Handler обрабатывает HTTP-запросы списка устройств.
type Handler struct {
	log     *slog.Logger // Логгер для записи операций и ошибок
	service Service      // Сервис бизнес-логики устройств
}

// Service описывает интерфейс бизнес-логики устройств.
type Service interface {
	List(ctx context.Context, accountID int) ([]*models.Device, error)
}

// New создает новый Handler с переданными логгером и сервисом.
func New(log *slog.Logger, service Service) *Handler {
	return &Handler{log: log, service: service}
}

// ServeHTTP godoc
// @Summary Устройства резидента
// @Description Возвращает все устройства действующего аккаунта.
// @Tags Devices
// @Produce  json
// @Success 200 {object} response.Response "Устройства"
// @Failure 500 {object} response.ErrorResponse "Внутренняя ошибка сервера"
// @Router /devices [get]
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.devices.list"
	log := h.log.With(
		slog.String("op", op),
		slog.String("request_id", middleware.GetReqID(r.Context())),
	)

	ec := middlewarectx.EntitlementFromContext(r.Context())

	devices, err := h.service.List(r.Context(), ec.Account.ID)
	if err != nil {
		log.Error("failed to list devices", sl.Err(err))
		w.WriteHeader(http.StatusInternalServerError)
		render.JSON(w, r, response.Error("could not list devices"))
		return
	}

	render.JSON(w, r, response.StatusOKWithData(map[string]any{
		"devices": devices,
	}))
}
