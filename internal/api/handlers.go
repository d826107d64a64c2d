package api

import (
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"strings"

	"go.uber.org/zap"

	"feastq/internal/referral"
	"feastq/internal/reputation"
)

// maxRequestBody - ограничение размера тела JSON-запроса.
const maxRequestBody = 64 << 10

// jsonResponse - вспомогательная структура для стандартного ответа API
type jsonResponse struct {
	Status  string      `json:"status"` // "success" или "error"
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
}

// handlers связывает HTTP-обработчики с сервисами.
type handlers struct {
	referrals  *referral.Issuer
	reputation *reputation.Aggregator
	// прокси, которым разрешено передавать адрес клиента в X-Forwarded-For
	trustedProxies []*net.IPNet
	log            *zap.SugaredLogger
}

// --- Вспомогательные функции для JSON-ответов ---
func writeJSONError(w http.ResponseWriter, statusCode int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(jsonResponse{Status: "error", Message: message})
}

func writeJSONSuccess(w http.ResponseWriter, message string, data interface{}) {
	writeJSONStatus(w, http.StatusOK, message, data)
}

func writeJSONStatus(w http.ResponseWriter, statusCode int, message string, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(jsonResponse{Status: "success", Message: message, Data: data})
}

// decodeJSON читает тело запроса в dst.
func decodeJSON(w http.ResponseWriter, r *http.Request, dst interface{}) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxRequestBody)
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	return dec.Decode(dst)
}

// parseTrustedProxies разбирает список IP и CIDR. Некорректные записи пропускаются.
func parseTrustedProxies(entries []string, logger *zap.SugaredLogger) []*net.IPNet {
	var nets []*net.IPNet
	for _, entry := range entries {
		if !strings.Contains(entry, "/") {
			if ip := net.ParseIP(entry); ip != nil {
				bits := 8 * net.IPv6len
				if ip.To4() != nil {
					ip, bits = ip.To4(), 8*net.IPv4len
				}
				nets = append(nets, &net.IPNet{IP: ip, Mask: net.CIDRMask(bits, bits)})
				continue
			}
		}
		_, ipNet, err := net.ParseCIDR(entry)
		if err != nil {
			logger.Warnw("Некорректный адрес доверенного прокси, пропущен", "entry", entry)
			continue
		}
		nets = append(nets, ipNet)
	}
	return nets
}

func (h *handlers) isTrustedProxy(ip net.IP) bool {
	for _, n := range h.trustedProxies {
		if n.Contains(ip) {
			return true
		}
	}
	return false
}

// clientIP возвращает адрес клиента для лимитов.
// Адрес берется из соединения; X-Forwarded-For учитывается, только если
// соединение пришло от доверенного прокси, и тогда берется самый правый
// адрес, не принадлежащий доверенным прокси.
func (h *handlers) clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		host = r.RemoteAddr
	}
	remote := net.ParseIP(host)
	if remote == nil || !h.isTrustedProxy(remote) {
		return host
	}

	hops := strings.Split(strings.Join(r.Header.Values("X-Forwarded-For"), ","), ",")
	for i := len(hops) - 1; i >= 0; i-- {
		ip := net.ParseIP(strings.TrimSpace(hops[i]))
		if ip == nil {
			break
		}
		if !h.isTrustedProxy(ip) {
			return ip.String()
		}
	}
	return host
}

// writeServiceError переводит ошибки сервисов в HTTP-ответ.
func (h *handlers) writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, referral.ErrInvalidInput),
		errors.Is(err, reputation.ErrInvalidScope),
		errors.Is(err, reputation.ErrInvalidResponse),
		errors.Is(err, reputation.ErrInvalidStatus):
		writeJSONError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, referral.ErrInvalidCode),
		errors.Is(err, referral.ErrReferralNotFound),
		errors.Is(err, reputation.ErrReviewNotFound),
		errors.Is(err, reputation.ErrMenuNotFound):
		writeJSONError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, reputation.ErrNotAuthorized):
		// чужое меню неотличимо от несуществующего
		writeJSONError(w, http.StatusNotFound, "Menu not found")
	case errors.Is(err, referral.ErrDuplicateReferral),
		errors.Is(err, referral.ErrInvalidTransition):
		writeJSONError(w, http.StatusConflict, err.Error())
	case errors.Is(err, referral.ErrRateLimited):
		writeJSONError(w, http.StatusTooManyRequests, err.Error())
	default:
		h.log.Errorw("Внутренняя ошибка обработки запроса",
			"method", r.Method, "path", r.URL.Path, "error", err)
		writeJSONError(w, http.StatusInternalServerError, "Internal server error")
	}
}
