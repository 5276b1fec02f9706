// Package tokenverify avisa al servicio externo de verificación de tokens
// cada vez que se emite un access token. Los avisos son fire-and-forget: un
// fallo se loguea y nunca bloquea la emisión.
package tokenverify

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/dropDatabas3/staffauth/internal/metrics"
	"github.com/dropDatabas3/staffauth/internal/observability/logger"
)

// Forwarder recibe los avisos de emisión.
type Forwarder interface {
	// ForwardAccess avisa un access token nuevo con su jti.
	ForwardAccess(ctx context.Context, token, jwtID string)
	// ForwardRefresh avisa el access token obtenido por refresh, con el jti
	// del access token original (claim ati del refresh token).
	ForwardRefresh(ctx context.Context, token, accessJwtID string)
}

// Config configura el cliente.
type Config struct {
	Enabled bool
	BaseURL string
	Timeout time.Duration
}

// Client implementa Forwarder por HTTP.
type Client struct {
	enabled bool
	baseURL string
	timeout time.Duration
	http    *http.Client
	wg      sync.WaitGroup
}

// New crea el cliente.
func New(cfg Config) *Client {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 5 * time.Second
	}
	return &Client{
		enabled: cfg.Enabled && cfg.BaseURL != "",
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		timeout: cfg.Timeout,
		http:    &http.Client{Timeout: cfg.Timeout},
	}
}

func (c *Client) ForwardAccess(ctx context.Context, token, jwtID string) {
	c.post(ctx, "/token?authJwtId="+url.QueryEscape(jwtID), token, jwtID)
}

func (c *Client) ForwardRefresh(ctx context.Context, token, accessJwtID string) {
	c.post(ctx, "/token/refresh?accessJwtId="+url.QueryEscape(accessJwtID), token, accessJwtID)
}

// Wait bloquea hasta que terminen los avisos en vuelo.
func (c *Client) Wait() { c.wg.Wait() }

func (c *Client) post(ctx context.Context, path, token, jwtID string) {
	if !c.enabled {
		return
	}
	log := logger.From(ctx).With(logger.Component("tokenverify"), logger.JwtID(jwtID))
	// el aviso sobrevive al request que lo originó
	bg := context.WithoutCancel(ctx)

	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		start := time.Now()
		if err := c.send(bg, path, token); err != nil {
			log.Warn("token verification forward failed", logger.Err(err))
			return
		}
		metrics.VerificationForwardLatency.Observe(float64(time.Since(start).Milliseconds()))
		log.Debug("token forwarded for verification")
	}()
}

func (c *Client) send(ctx context.Context, path, token string) error {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, strings.NewReader(token))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "text/plain")
	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)
	if resp.StatusCode >= 300 {
		return fmt.Errorf("token verification status %d", resp.StatusCode)
	}
	return nil
}

// Forward es un aviso capturado por Recorder.
type Forward struct {
	Refresh bool
	Token   string
	JwtID   string
}

// Recorder implementa Forwarder en memoria.
type Recorder struct {
	mu       sync.Mutex
	forwards []Forward
}

func (r *Recorder) ForwardAccess(_ context.Context, token, jwtID string) {
	r.add(Forward{Token: token, JwtID: jwtID})
}

func (r *Recorder) ForwardRefresh(_ context.Context, token, accessJwtID string) {
	r.add(Forward{Refresh: true, Token: token, JwtID: accessJwtID})
}

func (r *Recorder) add(f Forward) {
	r.mu.Lock()
	r.forwards = append(r.forwards, f)
	r.mu.Unlock()
}

// Forwards retorna una copia de los avisos registrados.
func (r *Recorder) Forwards() []Forward {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Forward(nil), r.forwards...)
}
