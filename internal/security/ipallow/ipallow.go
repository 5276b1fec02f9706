// Package ipallow evalúa si una IP pertenece a una lista de IPs/CIDRs.
package ipallow

import (
	"fmt"
	"net/netip"
	"strings"
)

// List es una lista compilada de IPs y prefijos permitidos.
type List struct {
	prefixes []netip.Prefix
}

// Parse compila entradas como "10.0.0.1", "10.0.0.0/24" o "::1/128".
func Parse(entries []string) (*List, error) {
	l := &List{prefixes: make([]netip.Prefix, 0, len(entries))}
	for _, raw := range entries {
		e := strings.TrimSpace(raw)
		if e == "" {
			continue
		}
		if strings.Contains(e, "/") {
			p, err := netip.ParsePrefix(e)
			if err != nil {
				return nil, fmt.Errorf("ipallow: invalid prefix %q: %w", e, err)
			}
			l.prefixes = append(l.prefixes, p.Masked())
			continue
		}
		a, err := netip.ParseAddr(e)
		if err != nil {
			return nil, fmt.Errorf("ipallow: invalid address %q: %w", e, err)
		}
		a = a.Unmap()
		l.prefixes = append(l.prefixes, netip.PrefixFrom(a, a.BitLen()))
	}
	return l, nil
}

// Empty indica que la lista no tiene entradas (sin restricción).
func (l *List) Empty() bool { return l == nil || len(l.prefixes) == 0 }

// Contains verifica si ip (v4, v6 o v4-mapped) está en la lista.
// Una IP que no parsea nunca es miembro.
func (l *List) Contains(ip string) bool {
	if l == nil {
		return false
	}
	a, err := netip.ParseAddr(strings.TrimSpace(ip))
	if err != nil {
		return false
	}
	a = a.Unmap().WithZone("")
	for _, p := range l.prefixes {
		if p.Contains(a) {
			return true
		}
	}
	return false
}

// Contains es un atajo para una evaluación puntual sin compilar.
func Contains(entries []string, ip string) (bool, error) {
	l, err := Parse(entries)
	if err != nil {
		return false, err
	}
	return l.Contains(ip), nil
}
