// Package transfer реализует HTTP-обработчик передачи устройства
// текущему резиденту, например при смене хозяина комнаты.
package transfer

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"
	"github.com/go-playground/validator"

	"github.com/GRI-ESPCI/intrarez/internal/http/middlewarectx"
	"github.com/GRI-ESPCI/intrarez/internal/http/response"
	"github.com/GRI-ESPCI/intrarez/internal/lib/sl"
	"github.com/GRI-ESPCI/intrarez/internal/models"
	"github.com/GRI-ESPCI/intrarez/internal/services/devices"
)

// Handler обрабатывает HTTP-запросы передачи устройств.
type Handler struct {
	log      *slog.Logger        // Логгер для записи операций и ошибок
	service  Service             // Сервис бизнес-логики устройств
	validate *validator.Validate // Валидатор структуры входящих данных
}

// Service описывает интерфейс бизнес-логики передачи устройства.
type Service interface {
	Transfer(ctx context.Context, accountID int, req models.TransferDeviceRequest) error
}

// New создает новый Handler с переданными логгером и сервисом.
func New(log *slog.Logger, service Service) *Handler {
	return &Handler{
		log:      log,
		service:  service,
		validate: validator.New(),
	}
}

// ServeHTTP godoc
// @Summary Перевести устройство на себя
// @Tags Devices
// @Accept  json
// @Produce  json
// @Param request body models.TransferDeviceRequest true "MAC устройства"
// @Success 200 {object} response.Response "Устройство переведено"
// @Failure 400 {object} response.ErrorResponse "Некорректный JSON"
// @Failure 404 {object} response.ErrorResponse "Устройства с таким MAC нет"
// @Failure 409 {object} response.ErrorResponse "Устройство уже принадлежит резиденту"
// @Failure 422 {object} response.ErrorResponse "Ошибка валидации"
// @Failure 500 {object} response.ErrorResponse "Внутренняя ошибка сервера"
// @Router /devices/transfer [post]
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.devices.transfer"
	log := h.log.With(
		slog.String("op", op),
		slog.String("request_id", middleware.GetReqID(r.Context())),
	)

	ec := middlewarectx.EntitlementFromContext(r.Context())

	var req models.TransferDeviceRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		log.Error("failed to decode request body", sl.Err(err))
		w.WriteHeader(http.StatusBadRequest)
		render.JSON(w, r, response.Error("invalid request body"))
		return
	}

	if err := h.validate.Struct(req); err != nil {
		log.Error("validation failed", sl.Err(err))
		w.WriteHeader(http.StatusUnprocessableEntity)
		render.JSON(w, r, response.ValidationError(err.(validator.ValidationErrors)))
		return
	}

	if err := h.service.Transfer(r.Context(), ec.Account.ID, req); err != nil {
		switch {
		case errors.Is(err, devices.ErrUnknownDevice):
			w.WriteHeader(http.StatusNotFound)
			render.JSON(w, r, response.Error("no device with this MAC"))
		case errors.Is(err, devices.ErrAlreadyOwn):
			w.WriteHeader(http.StatusConflict)
			render.JSON(w, r, response.Error("device already belongs to this account"))
		default:
			log.Error("failed to transfer device", sl.Err(err))
			w.WriteHeader(http.StatusInternalServerError)
			render.JSON(w, r, response.Error("could not transfer device"))
		}
		return
	}

	log.Info("device transferred", slog.Int("account_id", ec.Account.ID))
	render.JSON(w, r, response.StatusOKWithData(nil))
}
