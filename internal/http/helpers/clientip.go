package helpers

import (
	"net"
	"net/http"
	"strings"

	"github.com/dropDatabas3/staffauth/internal/security/ipallow"
)

// ClientIP resuelve la IP del cliente. X-Forwarded-For solo se respeta
// cuando el peer directo es un proxy de confianza; en ese caso se toma la
// primera entrada (de derecha a izquierda) que no sea un proxy.
func ClientIP(r *http.Request, trusted *ipallow.List) string {
	peer := remoteHost(r.RemoteAddr)
	if trusted.Empty() || !trusted.Contains(peer) {
		return peer
	}
	xff := r.Header.Get("X-Forwarded-For")
	if xff == "" {
		return peer
	}
	hops := strings.Split(xff, ",")
	for i := len(hops) - 1; i >= 0; i-- {
		hop := strings.TrimSpace(hops[i])
		if hop == "" {
			continue
		}
		if !trusted.Contains(hop) {
			return hop
		}
	}
	return strings.TrimSpace(hops[0])
}

func remoteHost(addr string) string {
	host, _, err := net.SplitHostPort(addr)
	if err != nil {
		return addr
	}
	return host
}
