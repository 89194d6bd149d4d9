// Package rundhcp реализует HTTP-обработчик принудительной перегенерации
// файла DHCP: публикует событие, которое обрабатывает воркер dhcp-watcher.
package rundhcp

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"

	"github.com/GRI-ESPCI/intrarez/internal/http/response"
	"github.com/GRI-ESPCI/intrarez/internal/lib/rabbitmq"
	"github.com/GRI-ESPCI/intrarez/internal/lib/sl"
	"github.com/GRI-ESPCI/intrarez/internal/models"
)

// Handler обрабатывает HTTP-запросы перегенерации DHCP.
type Handler struct {
	log    *slog.Logger   // Логгер для записи операций и ошибок
	events EventPublisher // Издатель событий портала
}

// EventPublisher публикует события портала.
type EventPublisher interface {
	Publish(routingKey string, message any) error
}

// New создает новый Handler с переданными логгером и издателем.
func New(log *slog.Logger, events EventPublisher) *Handler {
	return &Handler{log: log, events: events}
}

// ServeHTTP godoc
// @Summary Перегенерировать файл DHCP
// @Tags Gris
// @Produce  json
// @Success 202 {object} response.Response "Событие опубликовано"
// @Failure 500 {object} response.ErrorResponse "Не удалось опубликовать событие"
// @Router /gris/dhcp/run [post]
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.gris.rundhcp"
	log := h.log.With(
		slog.String("op", op),
		slog.String("request_id", middleware.GetReqID(r.Context())),
	)

	event := models.DHCPRegenerateEvent{Reason: "manual run"}
	if err := h.events.Publish(rabbitmq.RoutingKeyDHCP, event); err != nil {
		log.Error("failed to publish dhcp regenerate event", sl.Err(err))
		w.WriteHeader(http.StatusInternalServerError)
		render.JSON(w, r, response.Error("could not publish regenerate event"))
		return
	}

	log.Info("dhcp regenerate event published")
	w.WriteHeader(http.StatusAccepted)
	render.JSON(w, r, response.StatusOKWithData(nil))
}
