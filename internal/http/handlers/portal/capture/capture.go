// Package capture реализует точку приземления перехваченных запросов.
//
// Nginx заворачивает сюда весь HTTP-трафик клиентов из служебных
// диапазонов: 10.0.0.100–199 — DHCP-адреса незарегистрированных
// устройств, 10.0.8.0/24 — без подписки, 10.0.9.0/24 — забаненные.
// Обработчик классифицирует IP и отправляет клиента на заглавную
// страницу портала, где контекст доступа объяснит, что делать дальше.
package capture

import (
	"log/slog"
	"net"
	"net/url"
	"strings"

	"net/http"

	"github.com/GRI-ESPCI/intrarez/internal/lib/sl"
)

// Handler обрабатывает перехваченные запросы.
type Handler struct {
	log            *slog.Logger // Логгер для записи операций и ошибок
	clientIPHeader string       // Заголовок с IP клиента от Nginx
	netlocs        []string     // Хосты, на которые разрешён редирект
}

// New создает новый Handler.
func New(log *slog.Logger, clientIPHeader string, netlocs []string) *Handler {
	return &Handler{log: log, clientIPHeader: clientIPHeader, netlocs: netlocs}
}

// Classify определяет служебный диапазон перехваченного IP.
func Classify(rawIP string) string {
	ip := net.ParseIP(rawIP)
	if ip == nil {
		return "unknown"
	}
	ip4 := ip.To4()
	if ip4 == nil || ip4[0] != 10 || ip4[1] != 0 {
		return "unknown"
	}
	switch {
	case ip4[2] == 0 && ip4[3] >= 100 && ip4[3] <= 199:
		return "unregistered"
	case ip4[2] == 8:
		return "unsubscribed"
	case ip4[2] >= 9:
		return "banned"
	default:
		return "unknown"
	}
}

// ServeHTTP godoc
// @Summary Приземление перехваченного запроса
// @Description Классифицирует IP клиента и отправляет его на заглавную страницу портала.
// @Tags Portal
// @Param next query string false "Изначально запрошенный адрес"
// @Success 302 {string} string "Редирект на портал"
// @Router /capture [get]
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.portal.capture"

	clientIP := r.Header.Get(h.clientIPHeader)
	class := Classify(clientIP)
	h.log.Info("captured request",
		slog.String("op", op),
		slog.String("client_ip", clientIP),
		slog.String("class", class),
		slog.String("requested", r.URL.Query().Get("next")))

	http.Redirect(w, r, h.safeTarget(r.URL.Query().Get("next")), http.StatusFound)
}

// safeTarget возвращает адрес редиректа: относительный путь портала или
// адрес на разрешённом хосте; всё прочее заменяется заглавной страницей.
func (h *Handler) safeTarget(next string) string {
	if next == "" {
		return "/"
	}
	parsed, err := url.Parse(next)
	if err != nil {
		h.log.Warn("unparsable capture target", sl.Err(err))
		return "/"
	}
	if parsed.Host == "" && parsed.Scheme == "" && strings.HasPrefix(parsed.Path, "/") {
		return parsed.String()
	}
	for _, netloc := range h.netlocs {
		if parsed.Host == netloc {
			return parsed.String()
		}
	}
	return "/"
}
