// Package register реализует HTTP-обработчик регистрации аккаунта резидента.
//
// Handler принимает JSON-запрос с данными аккаунта, валидирует их, вызывает
// бизнес-логику регистрации и возвращает ID созданного аккаунта.
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

	"github.com/GRI-ESPCI/intrarez/internal/http/response"
	"github.com/GRI-ESPCI/intrarez/internal/lib/sl"
	"github.com/GRI-ESPCI/intrarez/internal/models"
	"github.com/GRI-ESPCI/intrarez/internal/services/auth"
)

// Handler обрабатывает HTTP-запросы регистрации аккаунтов.
type Handler struct {
	log      *slog.Logger        // Логгер для записи операций и ошибок
	service  Service             // Сервис бизнес-логики аккаунтов
	validate *validator.Validate // Валидатор структуры входящих данных
}

// Service описывает интерфейс бизнес-логики регистрации.
type Service interface {
	Register(ctx context.Context, req models.RegisterAccountRequest) (int, error)
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
// @Summary Зарегистрировать аккаунт
// @Description Создает аккаунт резидента в состоянии trial. Возвращает ID аккаунта.
// @Tags Auth
// @Accept  json
// @Produce  json
// @Param request body models.RegisterAccountRequest true "Данные аккаунта"
// @Success 200 {object} map[string]any "Успешная регистрация"
// @Failure 400 {object} response.ErrorResponse "Некорректный JSON"
// @Failure 409 {object} response.ErrorResponse "Имя пользователя занято"
// @Failure 422 {object} response.ErrorResponse "Ошибка валидации"
// @Failure 500 {object} response.ErrorResponse "Внутренняя ошибка сервера"
// @Router /auth/register [post]
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.auth.register"
	log := h.log.With(
		slog.String("op", op),
		slog.String("request_id", middleware.GetReqID(r.Context())),
	)

	var req models.RegisterAccountRequest
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

	id, err := h.service.Register(r.Context(), req)
	if err != nil {
		if errors.Is(err, auth.ErrUsernameTaken) {
			log.Info("username already taken", slog.String("username", req.Username))
			w.WriteHeader(http.StatusConflict)
			render.JSON(w, r, response.Error("username already taken"))
			return
		}
		log.Error("failed to register account", sl.Err(err))
		w.WriteHeader(http.StatusInternalServerError)
		render.JSON(w, r, response.Error("could not register account"))
		return
	}

	log.Info("account registered", slog.Int("account_id", id))
	render.JSON(w, r, response.StatusOKWithData(map[string]any{
		"account_id": id,
	}))
}
