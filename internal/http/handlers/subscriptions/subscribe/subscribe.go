// Package subscribe реализует HTTP-обработчик оформления подписки.
//
// Платёж записывается вручную: деньги принимает GRI. При имперсонации
// doas плательщиком записывается сам GRI, а подписка достаётся резиденту.
package subscribe

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
	"github.com/GRI-ESPCI/intrarez/internal/services/subscription"
)

// Handler обрабатывает HTTP-запросы оформления подписки.
type Handler struct {
	log      *slog.Logger        // Логгер для записи операций и ошибок
	service  Service             // Сервис бизнес-логики подписок
	validate *validator.Validate // Валидатор структуры входящих данных
}

// Service описывает интерфейс оформления подписки.
type Service interface {
	Subscribe(ctx context.Context, account *models.Account, offerSlug string, griID int) (int, error)
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
// @Summary Оформить подписку
// @Description Оформляет подписку на предложение. Новая подписка продлевает текущую со дня отключения.
// @Tags Subscriptions
// @Accept  json
// @Produce  json
// @Param request body models.SubscribeRequest true "Слаг предложения"
// @Success 200 {object} map[string]any "Подписка оформлена"
// @Failure 400 {object} response.ErrorResponse "Некорректный JSON"
// @Failure 404 {object} response.ErrorResponse "Предложения нет или оно неактивно"
// @Failure 422 {object} response.ErrorResponse "Ошибка валидации"
// @Failure 500 {object} response.ErrorResponse "Внутренняя ошибка сервера"
// @Router /subscriptions/subscribe [post]
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.subscriptions.subscribe"
	log := h.log.With(
		slog.String("op", op),
		slog.String("request_id", middleware.GetReqID(r.Context())),
	)

	ec := middlewarectx.EntitlementFromContext(r.Context())

	var req models.SubscribeRequest
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

	// При имперсонации платёж записывается на GRI из сессии.
	griID := 0
	if ec.Doas {
		if principal := middlewarectx.PrincipalFromContext(r.Context()); principal != nil {
			griID = principal.ID
		}
	}

	id, err := h.service.Subscribe(r.Context(), ec.Account, req.OfferSlug, griID)
	if err != nil {
		if errors.Is(err, subscription.ErrUnknownOffer) {
			w.WriteHeader(http.StatusNotFound)
			render.JSON(w, r, response.Error("offer not available"))
			return
		}
		log.Error("failed to subscribe", sl.Err(err))
		w.WriteHeader(http.StatusInternalServerError)
		render.JSON(w, r, response.Error("could not subscribe"))
		return
	}

	log.Info("subscription created",
		slog.Int("subscription_id", id), slog.Int("account_id", ec.Account.ID))
	render.JSON(w, r, response.StatusOKWithData(map[string]any{
		"subscription_id": id,
		"sub_state":       ec.Account.SubState,
	}))
}
