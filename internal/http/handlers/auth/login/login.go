// Package login реализует HTTP-обработчик входа резидента.
//
// При успешной аутентификации сессионный токен отдаётся в JSON и ставится
// в HttpOnly-куку, по которой middleware восстанавливает сессию.
package login

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

// Handler обрабатывает HTTP-запросы входа.
type Handler struct {
	log        *slog.Logger        // Логгер для записи операций и ошибок
	service    Service             // Сервис аутентификации
	cookieName string              // Имя сессионной куки
	validate   *validator.Validate // Валидатор структуры входящих данных
}

// Service описывает интерфейс бизнес-логики входа.
type Service interface {
	Login(ctx context.Context, username, password string) (string, *models.Account, error)
}

// New создает новый Handler с переданными логгером и сервисом.
func New(log *slog.Logger, service Service, cookieName string) *Handler {
	return &Handler{
		log:        log,
		service:    service,
		cookieName: cookieName,
		validate:   validator.New(),
	}
}

// ServeHTTP godoc
// @Summary Вход резидента
// @Description Аутентифицирует резидента по имени и паролю. Ставит сессионную куку.
// @Tags Auth
// @Accept  json
// @Produce  json
// @Param request body models.LoginRequest true "Учетные данные"
// @Success 200 {object} map[string]any "Успешный вход"
// @Failure 400 {object} response.ErrorResponse "Некорректный JSON"
// @Failure 401 {object} response.ErrorResponse "Неверные учетные данные"
// @Failure 422 {object} response.ErrorResponse "Ошибка валидации"
// @Failure 500 {object} response.ErrorResponse "Внутренняя ошибка сервера"
// @Router /auth/login [post]
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.auth.login"
	log := h.log.With(
		slog.String("op", op),
		slog.String("request_id", middleware.GetReqID(r.Context())),
	)

	var req models.LoginRequest
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

	sessionToken, account, err := h.service.Login(r.Context(), req.Username, req.Password)
	if err != nil {
		if errors.Is(err, auth.ErrInvalidCredentials) {
			log.Info("invalid credentials", slog.String("username", req.Username))
			w.WriteHeader(http.StatusUnauthorized)
			render.JSON(w, r, response.Error("invalid credentials"))
			return
		}
		log.Error("login failed", sl.Err(err))
		w.WriteHeader(http.StatusInternalServerError)
		render.JSON(w, r, response.Error("internal error"))
		return
	}

	http.SetCookie(w, &http.Cookie{
		Name:     h.cookieName,
		Value:    sessionToken,
		Path:     "/",
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})

	log.Info("login success", slog.String("username", account.Username))
	render.JSON(w, r, response.StatusOKWithData(map[string]any{
		"token":    sessionToken,
		"username": account.Username,
		"is_gri":   account.IsGri,
	}))
}
