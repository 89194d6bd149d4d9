// Package unban реализует HTTP-обработчик снятия текущего бана.
package unban

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
	"github.com/GRI-ESPCI/intrarez/internal/services/gris"
)

// Handler обрабатывает HTTP-запросы снятия бана.
type Handler struct {
	log      *slog.Logger        // Логгер для записи операций и ошибок
	service  Service             // Сервис административных операций
	validate *validator.Validate // Валидатор структуры входящих данных
}

// Service описывает интерфейс снятия бана.
type Service interface {
	Unban(ctx context.Context, griID int, req models.UnbanRequest) error
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
// @Summary Снять текущий бан с резидента
// @Tags Gris
// @Accept  json
// @Produce  json
// @Param request body models.UnbanRequest true "ID аккаунта"
// @Success 200 {object} response.Response "Бан снят"
// @Failure 400 {object} response.ErrorResponse "Некорректный JSON"
// @Failure 404 {object} response.ErrorResponse "Текущего бана нет"
// @Failure 422 {object} response.ErrorResponse "Ошибка валидации"
// @Failure 500 {object} response.ErrorResponse "Внутренняя ошибка сервера"
// @Router /gris/unban [post]
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.gris.unban"
	log := h.log.With(
		slog.String("op", op),
		slog.String("request_id", middleware.GetReqID(r.Context())),
	)

	ec := middlewarectx.EntitlementFromContext(r.Context())

	var req models.UnbanRequest
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

	if err := h.service.Unban(r.Context(), ec.Account.ID, req); err != nil {
		if errors.Is(err, gris.ErrNotBanned) {
			w.WriteHeader(http.StatusNotFound)
			render.JSON(w, r, response.Error("account has no active ban"))
			return
		}
		log.Error("failed to lift ban", sl.Err(err))
		w.WriteHeader(http.StatusInternalServerError)
		render.JSON(w, r, response.Error("could not lift ban"))
		return
	}

	log.Info("ban lifted", slog.Int("account_id", req.AccountID))
	render.JSON(w, r, response.StatusOKWithData(nil))
}
