// Package register реализует HTTP-обработчик оформления аренды комнаты.
//
// Занятая комната без подтверждения force даёт 409; с подтверждением аренда
// предыдущего занимающего закрывается, а его ID возвращается в ответе.
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
	"github.com/GRI-ESPCI/intrarez/internal/services/rooms"
	"github.com/GRI-ESPCI/intrarez/internal/storage/repository"
)

// Handler обрабатывает HTTP-запросы оформления аренды.
type Handler struct {
	log      *slog.Logger        // Логгер для записи операций и ошибок
	service  Service             // Сервис бизнес-логики аренды
	validate *validator.Validate // Валидатор структуры входящих данных
}

// Service описывает интерфейс бизнес-логики аренды.
type Service interface {
	Register(ctx context.Context, accountID int, req models.RegisterRentalRequest) (int, int, error)
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
// @Summary Оформить аренду комнаты
// @Description Оформляет аренду комнаты на текущего резидента. Занятая комната требует подтверждения force.
// @Tags Rooms
// @Accept  json
// @Produce  json
// @Param request body models.RegisterRentalRequest true "Данные аренды"
// @Success 200 {object} map[string]any "Аренда оформлена"
// @Failure 400 {object} response.ErrorResponse "Некорректный JSON"
// @Failure 404 {object} response.ErrorResponse "Комнаты не существует"
// @Failure 409 {object} response.ErrorResponse "Комната занята или аренда уже есть"
// @Failure 422 {object} response.ErrorResponse "Ошибка валидации"
// @Failure 500 {object} response.ErrorResponse "Внутренняя ошибка сервера"
// @Router /rooms/register [post]
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.rooms.register"
	log := h.log.With(
		slog.String("op", op),
		slog.String("request_id", middleware.GetReqID(r.Context())),
	)

	ec := middlewarectx.EntitlementFromContext(r.Context())

	var req models.RegisterRentalRequest
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

	rentalID, displaced, err := h.service.Register(r.Context(), ec.Account.ID, req)
	if err != nil {
		switch {
		case errors.Is(err, rooms.ErrNoSuchRoom):
			w.WriteHeader(http.StatusNotFound)
			render.JSON(w, r, response.Error("room does not exist"))
		case errors.Is(err, repository.ErrRoomOccupied):
			w.WriteHeader(http.StatusConflict)
			render.JSON(w, r, response.Error("room already occupied, pass force to take over"))
		case errors.Is(err, repository.ErrAlreadyRenting):
			w.WriteHeader(http.StatusConflict)
			render.JSON(w, r, response.Error("account already has a current rental"))
		default:
			log.Error("failed to register rental", sl.Err(err))
			w.WriteHeader(http.StatusInternalServerError)
			render.JSON(w, r, response.Error("could not register rental"))
		}
		return
	}

	log.Info("rental registered",
		slog.Int("rental_id", rentalID), slog.Int("room_num", req.RoomNum))
	data := map[string]any{"rental_id": rentalID}
	if displaced != 0 {
		data["displaced_account_id"] = displaced
	}
	render.JSON(w, r, response.StatusOKWithData(data))
}
