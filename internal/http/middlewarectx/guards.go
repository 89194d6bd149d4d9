package middlewarectx

import (
	"net/http"

	"github.com/go-chi/render"

	"github.com/GRI-ESPCI/intrarez/internal/http/response"
	"github.com/GRI-ESPCI/intrarez/internal/services/entitlement"
)

// AllGoodOnly пропускает только полностью настроенные запросы. Остальные
// получают один 302 на страницу исправления с параметром next для возврата.
// Если страница исправления и есть текущий маршрут, запрос пропускается,
// иначе редирект зациклится.
func AllGoodOnly(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ec := EntitlementFromContext(r.Context())
		if ec == nil {
			render.Status(r, http.StatusInternalServerError)
			render.JSON(w, r, response.Error("entitlement context missing"))
			return
		}
		if ec.AllGood || ec.Redemption == nil || ec.Redemption.Endpoint == r.URL.Path {
			next.ServeHTTP(w, r)
			return
		}
		http.Redirect(w, r, RedemptionURL(ec, r.URL.Path), http.StatusFound)
	})
}

// LoggedInOnly требует аутентифицированной сессии.
func LoggedInOnly(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ec := EntitlementFromContext(r.Context())
		if ec == nil || !ec.LoggedIn {
			render.Status(r, http.StatusUnauthorized)
			render.JSON(w, r, response.Error("authentication required"))
			return
		}
		next.ServeHTTP(w, r)
	})
}

// InternalOnly требует запроса из внутренней сети (MAC найден в ARP).
func InternalOnly(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ec := EntitlementFromContext(r.Context())
		if ec == nil || !ec.Internal {
			render.Status(r, http.StatusUnauthorized)
			render.JSON(w, r, response.Error("internal network required"))
			return
		}
		next.ServeHTTP(w, r)
	})
}

// GrisOnly требует прав GRI: аноним отправляется аутентифицироваться,
// резидент без прав получает 403.
func GrisOnly(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ec := EntitlementFromContext(r.Context())
		if ec == nil || !ec.LoggedIn {
			http.Redirect(w, r, entitlement.EndpointAuthNeeded+"?next="+r.URL.Path, http.StatusFound)
			return
		}
		if !ec.IsGri {
			render.Status(r, http.StatusForbidden)
			render.JSON(w, r, response.Error("GRI privileges required"))
			return
		}
		next.ServeHTTP(w, r)
	})
}
