// Package me отдаёт резиденту его вычисленный контекст доступа:
// кто он, откуда пришёл, чего не хватает до полного доступа.
package me

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/render"

	"github.com/GRI-ESPCI/intrarez/internal/http/middlewarectx"
	"github.com/GRI-ESPCI/intrarez/internal/http/response"
	"github.com/GRI-ESPCI/intrarez/internal/services/entitlement"
)

// Handler отвечает на запросы контекста текущей сессии.
type Handler struct {
	log *slog.Logger
}

// New создает новый Handler.
func New(log *slog.Logger) *Handler {
	return &Handler{log: log}
}

// view — сериализуемое представление контекста доступа.
type view struct {
	Username           string         `json:"username"`
	IsGri              bool           `json:"is_gri"`
	Doas               bool           `json:"doas,omitempty"`
	SubState           string         `json:"sub_state"`
	Internal           bool           `json:"internal"`
	RemoteIP           string         `json:"remote_ip,omitempty"`
	MAC                string         `json:"mac,omitempty"`
	HasRoom            bool           `json:"has_room"`
	RoomNum            int            `json:"room_num,omitempty"`
	OwnDevice          bool           `json:"own_device"`
	AllGood            bool           `json:"all_good"`
	Redemption         map[string]any `json:"redemption,omitempty"`
	MaintenanceWarning bool           `json:"maintenance_warning,omitempty"`
}

// ServeHTTP godoc
// @Summary Контекст текущей сессии
// @Description Возвращает вычисленный контекст доступа резидента.
// @Tags Portal
// @Produce  json
// @Success 200 {object} response.Response "Контекст доступа"
// @Failure 401 {object} response.ErrorResponse "Требуется вход"
// @Router /me [get]
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ec := middlewarectx.EntitlementFromContext(r.Context())
	render.JSON(w, r, response.StatusOKWithData(buildView(ec)))
}

func buildView(ec *entitlement.Context) view {
	v := view{
		Username:           ec.Account.Username,
		IsGri:              ec.IsGri,
		Doas:               ec.Doas,
		SubState:           string(ec.Account.SubState),
		Internal:           ec.Internal,
		RemoteIP:           ec.RemoteIP,
		MAC:                ec.MAC,
		HasRoom:            ec.HasRoom,
		OwnDevice:          ec.OwnDevice,
		AllGood:            ec.AllGood,
		MaintenanceWarning: ec.MaintenanceWarning,
	}
	if ec.Rental != nil {
		v.RoomNum = ec.Rental.RoomNum
	}
	if ec.Redemption != nil {
		v.Redemption = map[string]any{
			"endpoint": ec.Redemption.Endpoint,
			"params":   ec.Redemption.Params,
		}
	}
	return v
}
