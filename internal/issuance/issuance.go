// Package issuance emite access y refresh tokens: aplica las políticas del
// cliente (IPs permitidas y fecha de fin), enriquece las claims según su
// directiva jwtFields, audita y avisa al servicio de verificación.
package issuance

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/dropDatabas3/staffauth/internal/audit"
	"github.com/dropDatabas3/staffauth/internal/claims"
	"github.com/dropDatabas3/staffauth/internal/domain/repository"
	"github.com/dropDatabas3/staffauth/internal/domain/types"
	jwtx "github.com/dropDatabas3/staffauth/internal/jwt"
	"github.com/dropDatabas3/staffauth/internal/metrics"
	"github.com/dropDatabas3/staffauth/internal/observability/logger"
	"github.com/dropDatabas3/staffauth/internal/security/ipallow"
	"github.com/dropDatabas3/staffauth/internal/tokenverify"
	"github.com/dropDatabas3/staffauth/internal/validation"
)

// Grant types.
const (
	GrantPassword          = "password"
	GrantAuthorizationCode = "authorization_code"
	GrantClientCredentials = "client_credentials"
	GrantRefreshToken      = "refresh_token"
)

// DefaultVerificationClientID es el cliente del propio servicio de verificación.
const DefaultVerificationClientID = "token-verification-api-client"

// claims que no se copian de un refresh token al nuevo access token
var reservedClaims = map[string]bool{
	"iss": true, "sub": true, "aud": true, "iat": true, "nbf": true, "exp": true,
	jwtx.ClaimJTI: true, jwtx.ClaimATI: true,
}

// Deps contiene las dependencias del servicio.
type Deps struct {
	Clients              repository.ClientRepository
	Issuer               *jwtx.Issuer
	Enhancer             *claims.Enhancer // nil = uno nuevo
	Forwarder            tokenverify.Forwarder
	VerificationClientID string
	Audit                audit.Recorder
	Now                  func() time.Time
}

// Service emite tokens.
type Service struct {
	deps Deps
}

// NewService crea el servicio.
func NewService(deps Deps) *Service {
	if deps.Enhancer == nil {
		deps.Enhancer = &claims.Enhancer{}
	}
	if deps.VerificationClientID == "" {
		deps.VerificationClientID = DefaultVerificationClientID
	}
	if deps.Now == nil {
		deps.Now = time.Now
	}
	deps.Audit = audit.OrDefault(deps.Audit)
	return &Service{deps: deps}
}

// Request describe una emisión.
type Request struct {
	ClientID  string
	ClientIP  string
	GrantType string
	// Identity es la identidad autenticada; nil en emisiones client-only.
	Identity *repository.Identity
	// JwtID es el id de la sesión autenticada, si la hay; si no se usa el jti.
	JwtID string
	// Username y AuthSource son parámetros opcionales de client_credentials.
	Username   string
	AuthSource string
	Scopes     []string
}

// ClientOnly indica que no hay usuario detrás del token.
func (r Request) ClientOnly() bool {
	return r.Identity == nil
}

// Result es el par emitido.
type Result struct {
	AccessToken  *jwtx.Token
	RefreshToken *jwtx.Token // nil si el cliente no usa refresh
	Scope        []string
}

// CreateAccessToken valida las políticas del cliente y emite el token.
func (s *Service) CreateAccessToken(ctx context.Context, req Request) (*Result, error) {
	log := logger.From(ctx).With(
		logger.Layer("service"),
		logger.Component("issuance"),
		logger.Op("CreateAccessToken"),
		logger.ClientID(req.ClientID),
	)

	client, err := s.deps.Clients.GetClient(ctx, req.ClientID)
	if repository.IsNotFound(err) {
		return nil, ErrUnknownClient
	}
	if err != nil {
		return nil, err
	}

	if err := s.checkClientPolicy(ctx, client.ID, req.ClientIP); err != nil {
		log.Info("token issuance denied", logger.ClientIP(req.ClientIP), logger.Err(err))
		return nil, err
	}

	values := s.claimValues(client, req)
	extra, err := s.deps.Enhancer.Enhance(client.JwtFields, values)
	if err != nil {
		return nil, fmt.Errorf("client %s: %w", client.ID, err)
	}
	if client.DatabaseUsernameField != "" {
		if v, ok := values[claims.DatabaseUsername]; ok {
			extra[claims.DatabaseUsername] = v
		}
	}
	sub, _ := extra[claims.Sub].(string)
	delete(extra, claims.Sub)

	scopes := req.Scopes
	if len(scopes) == 0 {
		scopes = client.Scopes
	} else if bad, ok := validation.CheckScopes(scopes, client.Scopes); !ok {
		return nil, &InvalidScopeError{ClientID: client.ID, Scope: bad}
	}
	extra["client_id"] = client.ID
	extra["grant_type"] = req.GrantType
	if len(scopes) > 0 {
		extra["scope"] = scopes
	}
	if auths := authorities(client, req); len(auths) > 0 {
		extra["authorities"] = auths
	}

	access, err := s.deps.Issuer.IssueAccess(sub, client.ID, client.AccessTTL, extra)
	if err != nil {
		return nil, fmt.Errorf("issue access token: %w", err)
	}
	res := &Result{AccessToken: access, Scope: scopes}

	if req.GrantType != GrantClientCredentials && hasGrant(client, GrantRefreshToken) {
		refresh, err := s.deps.Issuer.IssueRefresh(sub, client.ID, access.JTI, extra)
		if err != nil {
			return nil, fmt.Errorf("issue refresh token: %w", err)
		}
		res.RefreshToken = refresh
	}

	username := auditUsername(req, values)
	event := "CreateAccessToken"
	kind := "access"
	if req.ClientOnly() {
		event = "CreateSystemAccessToken"
		kind = "system"
	}
	s.deps.Audit.Record(ctx, event, map[string]string{
		"username":        username,
		"clientId":        client.ID,
		"clientIpAddress": req.ClientIP,
	})
	metrics.TokensIssued.WithLabelValues(kind).Inc()

	if client.ID != s.deps.VerificationClientID {
		jwtID := req.JwtID
		if jwtID == "" {
			jwtID = access.JTI
		}
		if req.GrantType != GrantClientCredentials && jwtID != "" && s.deps.Forwarder != nil {
			s.deps.Forwarder.ForwardAccess(ctx, access.Raw, jwtID)
		}
		log.Info("created access token", logger.Username(username), logger.JwtID(jwtID))
	}
	return res, nil
}

// RefreshRequest describe un refresh.
type RefreshRequest struct {
	RefreshToken string
	ClientID     string
	ClientIP     string
}

// RefreshAccessToken emite un access token nuevo a partir de un refresh
// token del mismo cliente. No vuelve a evaluar IPs ni fecha de fin. El
// refresh token se reutiliza tal cual.
func (s *Service) RefreshAccessToken(ctx context.Context, req RefreshRequest) (*Result, error) {
	log := logger.From(ctx).With(
		logger.Layer("service"),
		logger.Component("issuance"),
		logger.Op("RefreshAccessToken"),
		logger.ClientID(req.ClientID),
	)

	rc, err := s.deps.Issuer.Parse(req.RefreshToken)
	if err != nil {
		return nil, ErrInvalidRefreshToken
	}
	ati, _ := rc[jwtx.ClaimATI].(string)
	if aud, _ := rc["aud"].(string); ati == "" || aud != req.ClientID {
		return nil, ErrInvalidRefreshToken
	}
	exp, _ := rc["exp"].(float64)

	client, err := s.deps.Clients.GetClient(ctx, req.ClientID)
	if repository.IsNotFound(err) {
		return nil, ErrUnknownClient
	}
	if err != nil {
		return nil, err
	}

	extra := make(map[string]any, len(rc))
	for k, v := range rc {
		if !reservedClaims[k] {
			extra[k] = v
		}
	}
	extra["grant_type"] = GrantRefreshToken
	sub, _ := rc["sub"].(string)

	access, err := s.deps.Issuer.IssueAccess(sub, client.ID, client.AccessTTL, extra)
	if err != nil {
		return nil, fmt.Errorf("issue access token: %w", err)
	}
	refresh := &jwtx.Token{Raw: req.RefreshToken, JTI: stringClaim(rc, jwtx.ClaimJTI), Claims: rc}
	if exp > 0 {
		refresh.ExpiresAt = time.Unix(int64(exp), 0).UTC()
	}

	username := stringClaim(rc, claims.UserName)
	if username == "" {
		username = string(types.SourceNone)
	}
	if client.ID != s.deps.VerificationClientID {
		if s.deps.Forwarder != nil {
			s.deps.Forwarder.ForwardRefresh(ctx, access.Raw, ati)
		}
		log.Info("created refresh token", logger.Username(username), logger.JwtID(ati))
	}
	s.deps.Audit.Record(ctx, "RefreshAccessToken", map[string]string{
		"username":        username,
		"clientId":        client.ID,
		"clientIpAddress": req.ClientIP,
	})
	metrics.TokensIssued.WithLabelValues("refresh").Inc()

	scopes, _ := extra["scope"].([]any)
	res := &Result{AccessToken: access, RefreshToken: refresh}
	for _, sc := range scopes {
		if v, ok := sc.(string); ok {
			res.Scope = append(res.Scope, v)
		}
	}
	return res, nil
}

// checkClientPolicy aplica las IPs permitidas y la fecha de fin de la
// configuración compartida del cliente.
func (s *Service) checkClientPolicy(ctx context.Context, clientID, ip string) error {
	cfg, err := s.deps.Clients.GetConfig(ctx, repository.BaseClientID(clientID))
	if repository.IsNotFound(err) {
		return nil
	}
	if err != nil {
		return err
	}

	if len(cfg.IPs) > 0 {
		s.deps.Audit.Record(ctx, "CreateAccessTokenAllowedIps", map[string]string{
			"clientId":        clientID,
			"clientIpAddress": ip,
			"allowedIps":      strings.Join(cfg.IPs, ","),
		})
		allowed, err := ipallow.Parse(cfg.IPs)
		if err != nil {
			return fmt.Errorf("client %s allowed ips: %w", clientID, err)
		}
		if !allowed.Contains(ip) {
			return &AllowedIpError{ClientID: clientID, IP: ip}
		}
	}

	if cfg.ClientEndDate != nil && beforeToday(*cfg.ClientEndDate, s.deps.Now()) {
		return &EndDateClientError{ClientID: clientID, EndDate: *cfg.ClientEndDate}
	}
	return nil
}

// beforeToday compara solo la fecha (UTC).
func beforeToday(end, now time.Time) bool {
	ey, em, ed := end.UTC().Date()
	ny, nm, nd := now.UTC().Date()
	endDay := time.Date(ey, em, ed, 0, 0, 0, 0, time.UTC)
	today := time.Date(ny, nm, nd, 0, 0, 0, 0, time.UTC)
	return endDay.Before(today)
}

// claimValues arma todos los valores posibles; la directiva del cliente
// decide cuáles viajan en el token.
func (s *Service) claimValues(client *repository.Client, req Request) map[string]any {
	if req.ClientOnly() {
		v := map[string]any{
			claims.Sub:        client.ID,
			claims.AuthSource: string(types.SourceNone),
		}
		if u := repository.NormalizeUsername(req.Username); u != "" {
			v[claims.UserName] = u
			v[claims.AuthSource] = string(types.SourceOrNone(req.AuthSource))
		}
		return v
	}
	id := req.Identity
	v := map[string]any{
		claims.Sub:        id.Username,
		claims.UserName:   id.Username,
		claims.AuthSource: string(id.Source),
		claims.Name:       id.Name(),
		claims.UserID:     id.UserID,
		claims.UserUUID:   id.UUID,
	}
	if client.DatabaseUsernameField != "" || id.Source == types.SourceNomis {
		v[claims.DatabaseUsername] = id.Username
	}
	return v
}

func authorities(client *repository.Client, req Request) []string {
	if req.ClientOnly() {
		return client.Authorities
	}
	return req.Identity.Authorities
}

func hasGrant(c *repository.Client, grant string) bool {
	for _, g := range c.GrantTypes {
		if g == grant {
			return true
		}
	}
	return false
}

// auditUsername prefiere la identidad autenticada; las directivas del
// cliente pueden quitar user_name del token pero no de la auditoría.
func auditUsername(req Request, values map[string]any) string {
	if req.Identity != nil && req.Identity.Username != "" {
		return req.Identity.Username
	}
	if u, _ := values[claims.UserName].(string); u != "" {
		return u
	}
	return string(types.SourceNone)
}

func stringClaim(c map[string]any, k string) string {
	v, _ := c[k].(string)
	return v
}

// IsAccessDenied indica un rechazo por política de cliente.
func IsAccessDenied(err error) bool { return errors.Is(err, ErrAccessDenied) }
