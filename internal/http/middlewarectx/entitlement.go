package middlewarectx

import (
	"context"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"

	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/GRI-ESPCI/intrarez/internal/http/response"
	"github.com/GRI-ESPCI/intrarez/internal/lib/sl"
	"github.com/GRI-ESPCI/intrarez/internal/services/entitlement"
)

var decisionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "intrarez_entitlement_decisions_total",
	Help: "Entitlement evaluation outcomes by decision.",
}, []string{"decision"})

// Evaluator описывает сервис вычисления контекста доступа.
type Evaluator interface {
	Evaluate(ctx context.Context, in entitlement.Input) (*entitlement.Context, error)
}

// Entitlement возвращает middleware, вычисляющее контекст доступа для
// каждого запроса группы портала. Результат кладётся в контекст запроса;
// сюда же сведены два ранних исхода, не зависящих от маршрута: срезание
// чужого doas и режим обслуживания.
func Entitlement(evaluator Evaluator, clientIPHeader string, log *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			const op = "middlewarectx.Entitlement"

			in := entitlement.Input{
				Principal: PrincipalFromContext(r.Context()),
				DoasID:    r.URL.Query().Get("doas"),
				RemoteIP:  r.Header.Get(clientIPHeader),
			}
			ec, err := evaluator.Evaluate(r.Context(), in)
			if err != nil {
				log.Error("entitlement evaluation failed",
					slog.String("op", op),
					slog.String("request_id", middleware.GetReqID(r.Context())),
					sl.Err(err))
				render.Status(r, http.StatusInternalServerError)
				render.JSON(w, r, response.Error("internal error"))
				decisionsTotal.WithLabelValues("error").Inc()
				return
			}

			if ec.StripDoas {
				decisionsTotal.WithLabelValues("strip_doas").Inc()
				query := r.URL.Query()
				query.Del("doas")
				target := r.URL.Path
				if encoded := query.Encode(); encoded != "" {
					target += "?" + encoded
				}
				http.Redirect(w, r, target, http.StatusFound)
				return
			}
			if ec.ServiceClosed {
				decisionsTotal.WithLabelValues("maintenance").Inc()
				render.Status(r, http.StatusServiceUnavailable)
				render.JSON(w, r, response.Error("service temporarily closed for maintenance"))
				return
			}

			if ec.AllGood {
				decisionsTotal.WithLabelValues("all_good").Inc()
			} else {
				decisionsTotal.WithLabelValues("redemption").Inc()
			}

			ctx := context.WithValue(r.Context(), KeyEntitlement, ec)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// EntitlementFromContext возвращает вычисленный контекст доступа или nil.
func EntitlementFromContext(ctx context.Context) *entitlement.Context {
	ec, _ := ctx.Value(KeyEntitlement).(*entitlement.Context)
	return ec
}

// RedemptionURL собирает адрес редиректа на страницу исправления: параметры
// редемпшена, обратный путь next и, при имперсонации, сохранённый doas.
func RedemptionURL(ec *entitlement.Context, currentPath string) string {
	values := url.Values{}
	for key, value := range ec.Redemption.Params {
		values.Set(key, value)
	}
	values.Set("next", currentPath)
	if ec.Doas {
		values.Set("doas", strconv.Itoa(ec.Account.ID))
	}
	return ec.Redemption.Endpoint + "?" + values.Encode()
}
