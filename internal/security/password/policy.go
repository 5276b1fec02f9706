package password

import (
	"strings"
	"unicode"
)

// Policy define las reglas de complejidad para passwords locales.
type Policy struct {
	MinLength     int
	MaxLength     int
	RequireUpper  bool
	RequireLower  bool
	RequireDigit  bool
	RequireSymbol bool
	// Blacklist opcional de passwords comunes.
	Blacklist *Blacklist
}

// DefaultPolicy es la política aplicada cuando la config no define otra.
var DefaultPolicy = Policy{MinLength: 9, MaxLength: 100, RequireLower: true, RequireDigit: true}

// Validate devuelve las razones por las que s no cumple la política.
// username se usa para rechazar passwords que lo contienen.
func (p Policy) Validate(s, username string) (ok bool, reasons []string) {
	n := len([]rune(s))
	if n < p.MinLength {
		reasons = append(reasons, "too_short")
	}
	if p.MaxLength > 0 && n > p.MaxLength {
		reasons = append(reasons, "too_long")
	}
	var hasU, hasL, hasD, hasS bool
	for _, r := range s {
		switch {
		case unicode.IsUpper(r):
			hasU = true
		case unicode.IsLower(r):
			hasL = true
		case unicode.IsDigit(r):
			hasD = true
		case unicode.IsPunct(r) || unicode.IsSymbol(r):
			hasS = true
		}
	}
	if p.RequireUpper && !hasU {
		reasons = append(reasons, "missing_upper")
	}
	if p.RequireLower && !hasL && !hasU {
		reasons = append(reasons, "missing_alpha")
	}
	if p.RequireDigit && !hasD {
		reasons = append(reasons, "missing_digit")
	}
	if p.RequireSymbol && !hasS {
		reasons = append(reasons, "missing_symbol")
	}
	if username != "" && strings.Contains(strings.ToUpper(s), strings.ToUpper(username)) {
		reasons = append(reasons, "contains_username")
	}
	if p.Blacklist.Contains(s) {
		reasons = append(reasons, "blacklisted")
	}
	return len(reasons) == 0, reasons
}
