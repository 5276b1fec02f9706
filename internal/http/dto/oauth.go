package dto

// OAuthError es el error estándar de RFC 6749 §5.2.
type OAuthError struct {
	Error       string `json:"error"`
	Description string `json:"error_description,omitempty"`
}

// HealthResponse es la respuesta de GET /health.
type HealthResponse struct {
	Status     string            `json:"status"`
	Components map[string]string `json:"components,omitempty"`
	Cache      *CacheStats       `json:"cache,omitempty"`
}

// CacheStats resume el cache de clientes.
type CacheStats struct {
	Driver string `json:"driver"`
	Hits   int64  `json:"hits"`
	Misses int64  `json:"misses"`
	Keys   int64  `json:"keys"`
}
