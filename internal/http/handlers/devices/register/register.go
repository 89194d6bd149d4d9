// Package register реализует HTTP-обработчик регистрации устройства.
package register

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

// Handler обрабатывает HTTP-запросы регистрации устройств.
type Handler struct {
	log      *slog.Logger        // Логгер для записи операций и ошибок
	service  Service             // Сервис бизнес-логики устройств
	validate *validator.Validate // Валидатор структуры входящих данных
}

// Service описывает интерфейс бизнес-логики регистрации устройства.
type Service interface {
	Register(ctx context.Context, accountID int, req models.RegisterDeviceRequest) (int, error)
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
// @Summary Зарегистрировать устройство
// @Description Регистрирует устройство на текущего резидента. MAC глобально уникален.
// @Tags Devices
// @Accept  json
// @Produce  json
// @Param request body models.RegisterDeviceRequest true "Данные устройства"
// @Success 200 {object} map[string]any "Устройство зарегистрировано"
// @Failure 400 {object} response.ErrorResponse "Некорректный JSON"
// @Failure 409 {object} response.ErrorResponse "MAC уже зарегистрирован"
// @Failure 422 {object} response.ErrorResponse "Ошибка валидации"
// @Failure 500 {object} response.ErrorResponse "Внутренняя ошибка сервера"
// @Router /devices/register [post]
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.devices.register"
	log := h.log.With(
		slog.String("op", op),
		slog.String("request_id", middleware.GetReqID(r.Context())),
	)

	ec := middlewarectx.EntitlementFromContext(r.Context())

	var req models.RegisterDeviceRequest
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

	id, err := h.service.Register(r.Context(), ec.Account.ID, req)
	if err != nil {
		if errors.Is(err, devices.ErrMACTaken) {
			w.WriteHeader(http.StatusConflict)
			render.JSON(w, r, response.Error("device with this MAC is already registered"))
			return
		}
		log.Error("failed to register device", sl.Err(err))
		w.WriteHeader(http.StatusInternalServerError)
		render.JSON(w, r, response.Error("could not register device"))
		return
	}

	log.Info("device registered",
		slog.Int("device_id", id), slog.Int("account_id", ec.Account.ID))
	render.JSON(w, r, response.StatusOKWithData(map[string]any{
		"device_id": id,
	}))
}
