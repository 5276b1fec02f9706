package directory

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/dropDatabas3/staffauth/internal/domain/types"
	"github.com/dropDatabas3/staffauth/internal/observability/logger"
)

// HTTPConfig configura el cliente de un directorio remoto.
type HTTPConfig struct {
	BaseURL        string
	ConnectTimeout time.Duration
	ReadTimeout    time.Duration
	Username       string
	Password       string
}

// HTTPClient hace llamadas JSON a un directorio y clasifica los errores.
type HTTPClient struct {
	source  types.AuthSource
	baseURL string
	user    string
	pass    string
	http    *http.Client
}

// StatusError es una respuesta 4xx que no tiene un significado propio.
type StatusError struct {
	Status int
	Body   []byte
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("directory: unexpected status %d", e.Status)
}

// NewHTTPClient crea un cliente con timeouts de conexión y lectura propios.
func NewHTTPClient(src types.AuthSource, cfg HTTPConfig) *HTTPClient {
	connect := cfg.ConnectTimeout
	if connect <= 0 {
		connect = 2 * time.Second
	}
	read := cfg.ReadTimeout
	if read <= 0 {
		read = 10 * time.Second
	}
	transport := &http.Transport{
		Proxy:                 http.ProxyFromEnvironment,
		DialContext:           (&net.Dialer{Timeout: connect}).DialContext,
		TLSHandshakeTimeout:   connect,
		ResponseHeaderTimeout: read,
		MaxIdleConnsPerHost:   10,
		IdleConnTimeout:       90 * time.Second,
	}
	return &HTTPClient{
		source:  src,
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		user:    cfg.Username,
		pass:    cfg.Password,
		http:    &http.Client{Transport: transport, Timeout: connect + read},
	}
}

// Do ejecuta method sobre path. in (opcional) se envía como JSON y out
// (opcional) recibe el cuerpo de una respuesta 2xx.
//
// Clasificación: error de transporte o 5xx → *UnavailableError;
// 404 → ErrNotFound; 401/403 → ErrUnauthorized; otro 4xx → *StatusError.
func (c *HTTPClient) Do(ctx context.Context, method, path string, in, out any) error {
	log := logger.From(ctx).With(
		logger.Layer("directory"),
		logger.Component("directory."+string(c.source)),
		logger.Method(method),
		logger.Path(path),
	)

	var body io.Reader
	if in != nil {
		b, err := json.Marshal(in)
		if err != nil {
			return err
		}
		body = bytes.NewReader(b)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.user != "" {
		req.SetBasicAuth(c.user, c.pass)
	}

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		// cancelación del llamador: no es culpa del directorio
		if errors.Is(ctx.Err(), context.Canceled) {
			return ctx.Err()
		}
		log.Warn("directory call failed", logger.Duration(time.Since(start)), logger.Err(err))
		return &UnavailableError{Source: c.source, Err: err}
	}
	defer resp.Body.Close()
	payload, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<20))

	switch {
	case resp.StatusCode >= 500:
		log.Warn("directory server error", logger.Status(resp.StatusCode))
		return &UnavailableError{Source: c.source, Err: fmt.Errorf("status %d", resp.StatusCode)}
	case resp.StatusCode == http.StatusNotFound:
		return ErrNotFound
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return ErrUnauthorized
	case resp.StatusCode >= 400:
		return &StatusError{Status: resp.StatusCode, Body: payload}
	}

	log.Debug("directory call ok", logger.Status(resp.StatusCode), logger.Duration(time.Since(start)))
	if out != nil && len(payload) > 0 {
		if err := json.Unmarshal(payload, out); err != nil {
			return fmt.Errorf("directory %s: decode response: %w", c.source, err)
		}
	}
	return nil
}
