// Package ban реализует HTTP-обработчик наложения бана на резидента.
package ban

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
	"github.com/GRI-ESPCI/intrarez/internal/storage/repository"
)

// Handler обрабатывает HTTP-запросы наложения бана.
type Handler struct {
	log      *slog.Logger        // Логгер для записи операций и ошибок
	service  Service             // Сервис административных операций
	validate *validator.Validate // Валидатор структуры входящих данных
}

// Service описывает интерфейс наложения бана.
type Service interface {
	Ban(ctx context.Context, griID int, req models.BanRequest) (int, error)
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
// @Summary Наложить бан на резидента
// @Tags Gris
// @Accept  json
// @Produce  json
// @Param request body models.BanRequest true "Данные бана"
// @Success 200 {object} map[string]any "Бан наложен"
// @Failure 400 {object} response.ErrorResponse "Некорректный JSON"
// @Failure 404 {object} response.ErrorResponse "Аккаунта не существует"
// @Failure 409 {object} response.ErrorResponse "Бан уже действует"
// @Failure 422 {object} response.ErrorResponse "Ошибка валидации"
// @Failure 500 {object} response.ErrorResponse "Внутренняя ошибка сервера"
// @Router /gris/ban [post]
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.gris.ban"
	log := h.log.With(
		slog.String("op", op),
		slog.String("request_id", middleware.GetReqID(r.Context())),
	)

	ec := middlewarectx.EntitlementFromContext(r.Context())

	var req models.BanRequest
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

	id, err := h.service.Ban(r.Context(), ec.Account.ID, req)
	if err != nil {
		switch {
		case errors.Is(err, gris.ErrNoSuchAccount):
			w.WriteHeader(http.StatusNotFound)
			render.JSON(w, r, response.Error("account does not exist"))
		case errors.Is(err, repository.ErrAlreadyBanned):
			w.WriteHeader(http.StatusConflict)
			render.JSON(w, r, response.Error("account already has an active ban"))
		default:
			log.Error("failed to create ban", sl.Err(err))
			w.WriteHeader(http.StatusInternalServerError)
			render.JSON(w, r, response.Error("could not create ban"))
		}
		return
	}

	log.Info("ban created", slog.Int("ban_id", id), slog.Int("account_id", req.AccountID))
	render.JSON(w, r, response.StatusOKWithData(map[string]any{
		"ban_id": id,
	}))
}
