// Package deviceerror реализует диагностическую страницу для запросов,
// у которых не удаётся определить сетевую идентичность: нет заголовка
// с IP клиента либо IP не находится в ARP-снимке.
package deviceerror

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/render"

	"github.com/GRI-ESPCI/intrarez/internal/http/response"
)

// Handler отвечает на запросы диагностической страницы.
type Handler struct {
	log *slog.Logger
}

// New создает новый Handler.
func New(log *slog.Logger) *Handler {
	return &Handler{log: log}
}

// ServeHTTP godoc
// @Summary Диагностика сетевой идентичности
// @Description Объясняет, почему портал не смог определить IP или MAC клиента.
// @Tags Devices
// @Produce  json
// @Param reason query string false "Причина: ip или mac"
// @Success 200 {object} response.Response "Диагностика"
// @Router /devices/error [get]
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	reason := r.URL.Query().Get("reason")

	var detail string
	switch reason {
	case "ip":
		detail = "client IP could not be determined, contact the GRIs if this persists"
	case "mac":
		detail = "client MAC could not be resolved from the network"
	default:
		reason = "unknown"
		detail = "network identity could not be established"
	}

	h.log.Warn("device error page served", slog.String("reason", reason))
	render.JSON(w, r, response.StatusOKWithData(map[string]any{
		"reason": reason,
		"detail": detail,
	}))
}
