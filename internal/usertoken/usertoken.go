// Package usertoken emite y valida los tokens opacos de corta vida que
// encadenan flujos de varios pasos (reset de password, verificación de
// email, desafío MFA, remember-me).
package usertoken

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/dropDatabas3/staffauth/internal/audit"
	"github.com/dropDatabas3/staffauth/internal/domain/repository"
	"github.com/dropDatabas3/staffauth/internal/domain/types"
	"github.com/dropDatabas3/staffauth/internal/identity"
	"github.com/dropDatabas3/staffauth/internal/metrics"
	"github.com/dropDatabas3/staffauth/internal/observability/logger"
	tokens "github.com/dropDatabas3/staffauth/internal/security/token"
	"github.com/google/uuid"
)

// Reason es el motivo por el que un token no es utilizable. Vacío = válido.
type Reason string

const (
	ReasonNone    Reason = ""
	ReasonInvalid Reason = "invalid"
	ReasonExpired Reason = "expired"
)

// DefaultExpiry es la vigencia por tipo si la config no define otra.
var DefaultExpiry = map[types.TokenType]time.Duration{
	types.TokenReset:     24 * time.Hour,
	types.TokenChange:    20 * time.Minute,
	types.TokenVerified:  24 * time.Hour,
	types.TokenSecondary: 24 * time.Hour,
	types.TokenMFA:       20 * time.Minute,
	types.TokenMFACode:   20 * time.Minute,
	types.TokenMFARmbr:   7 * 24 * time.Hour,
	types.TokenAccount:   20 * time.Minute,
}

// DefaultInitialPasswordExpiry es la vigencia de los tokens de alta de usuario.
const DefaultInitialPasswordExpiry = 7 * 24 * time.Hour

const (
	opaqueTokenBytes = 32
	mfaCodeDigits    = 6
	maxIDAttempts    = 5
)

// ErrInvalidType indica un tipo de token desconocido.
var ErrInvalidType = errors.New("usertoken: invalid token type")

// Deps contiene las dependencias del servicio.
type Deps struct {
	Tokens                repository.UserTokenRepository
	Identity              *identity.Service
	Expiry                map[types.TokenType]time.Duration // se completa con DefaultExpiry
	InitialPasswordExpiry time.Duration
	Audit                 audit.Recorder
	Now                   func() time.Time
}

// Service administra los tokens de corta vida.
type Service struct {
	tokens        repository.UserTokenRepository
	ids           *identity.Service
	expiry        map[types.TokenType]time.Duration
	initialExpiry time.Duration
	audit         audit.Recorder
	now           func() time.Time
}

// NewService crea el servicio.
func NewService(deps Deps) *Service {
	expiry := make(map[types.TokenType]time.Duration, len(DefaultExpiry))
	for t, d := range DefaultExpiry {
		expiry[t] = d
	}
	for t, d := range deps.Expiry {
		if d > 0 {
			expiry[t] = d
		}
	}
	if deps.InitialPasswordExpiry <= 0 {
		deps.InitialPasswordExpiry = DefaultInitialPasswordExpiry
	}
	if deps.Now == nil {
		deps.Now = time.Now
	}
	return &Service{
		tokens:        deps.Tokens,
		ids:           deps.Identity,
		expiry:        expiry,
		initialExpiry: deps.InitialPasswordExpiry,
		audit:         audit.OrDefault(deps.Audit),
		now:           deps.Now,
	}
}

// Expiry retorna la vigencia configurada para el tipo.
func (s *Service) Expiry(t types.TokenType) time.Duration { return s.expiry[t] }

// CreateToken emite un token del tipo dado para el username, creando el
// registro local que lo ancla si la identidad es externa. Reemplaza
// cualquier token previo del mismo tipo para ese usuario.
func (s *Service) CreateToken(ctx context.Context, t types.TokenType, username string) (string, error) {
	if !t.IsValid() {
		return "", ErrInvalidType
	}
	u, err := s.ids.ResolveOrCreate(ctx, username)
	if err != nil {
		return "", fmt.Errorf("resolve user: %w", err)
	}
	return s.issue(ctx, t, u.Username, s.expiry[t])
}

// NewUser describe una cuenta local creada por un administrador.
type NewUser struct {
	Username  string
	Email     string
	FirstName string
	LastName  string
}

// CreateTokenForNewUser crea la cuenta local, todavía sin password, y emite
// un token con la vigencia de alta inicial.
func (s *Service) CreateTokenForNewUser(ctx context.Context, t types.TokenType, in NewUser) (string, error) {
	if !t.IsValid() {
		return "", ErrInvalidType
	}
	u := &repository.User{
		ID:        uuid.NewString(),
		Username:  repository.NormalizeUsername(in.Username),
		Email:     repository.NormalizeEmail(in.Email),
		Enabled:   true,
		Source:    types.SourceAuth,
		FirstName: strings.TrimSpace(in.FirstName),
		LastName:  strings.TrimSpace(in.LastName),
		CreatedAt: s.now().UTC(),
	}
	if u.Username == "" {
		return "", repository.ErrInvalidInput
	}
	if err := s.ids.Users().Create(ctx, u); err != nil {
		return "", fmt.Errorf("create user: %w", err)
	}
	return s.issue(ctx, t, u.Username, s.initialExpiry)
}

func (s *Service) issue(ctx context.Context, t types.TokenType, username string, ttl time.Duration) (string, error) {
	log := logger.From(ctx).With(
		logger.Layer("service"),
		logger.Component("usertoken"),
		logger.Op("CreateToken"),
		logger.TokenType(string(t)),
		logger.Username(username),
	)

	now := s.now().UTC()
	for attempt := 0; attempt < maxIDAttempts; attempt++ {
		id, err := newID(t)
		if err != nil {
			return "", err
		}
		ut := &repository.UserToken{
			Token:     id,
			Type:      t,
			Username:  username,
			CreatedAt: now,
			ExpiresAt: now.Add(ttl),
		}
		err = s.tokens.Save(ctx, ut)
		if repository.IsConflict(err) {
			continue
		}
		if err != nil {
			return "", fmt.Errorf("save token: %w", err)
		}
		log.Info("token issued", logger.String("token", tokens.Mask(id)))
		s.audit.Record(ctx, t.Description()+"Request", map[string]string{"username": username})
		metrics.TokensIssued.WithLabelValues(string(t)).Inc()
		return id, nil
	}
	return "", fmt.Errorf("save token: %w", repository.ErrConflict)
}

// Los códigos MFA se escriben a mano: numéricos y cortos.
func newID(t types.TokenType) (string, error) {
	if t == types.TokenMFACode {
		return tokens.GenerateNumericCode(mfaCodeDigits)
	}
	return tokens.GenerateOpaqueToken(opaqueTokenBytes)
}

// GetToken retorna el token si existe y es del tipo dado.
func (s *Service) GetToken(ctx context.Context, t types.TokenType, token string) (*repository.UserToken, error) {
	if strings.TrimSpace(token) == "" {
		return nil, repository.ErrNotFound
	}
	ut, err := s.tokens.Get(ctx, token)
	if err != nil {
		return nil, err
	}
	if ut.Type != t {
		return nil, repository.ErrNotFound
	}
	return ut, nil
}

// CheckToken valida el token sin consumirlo. Un token vencido se deja en
// su lugar para que el llamador decida cuándo borrarlo.
func (s *Service) CheckToken(ctx context.Context, t types.TokenType, token string) (Reason, error) {
	ut, err := s.GetToken(ctx, t, token)
	if repository.IsNotFound(err) {
		s.invalid(ctx, t)
		return ReasonInvalid, nil
	}
	if err != nil {
		return ReasonNone, err
	}
	return s.checkActive(ctx, ut), nil
}

// CheckTokenForUser valida además que el token pertenezca al username. Ante
// cualquier motivo de rechazo el token se borra.
func (s *Service) CheckTokenForUser(ctx context.Context, t types.TokenType, token, username string) (Reason, error) {
	ut, err := s.GetToken(ctx, t, token)
	if repository.IsNotFound(err) {
		s.invalid(ctx, t)
		return ReasonInvalid, nil
	}
	if err != nil {
		return ReasonNone, err
	}
	reason := s.checkActive(ctx, ut)
	if reason == ReasonNone && !ownedBy(ut, username) {
		s.invalid(ctx, t)
		reason = ReasonInvalid
	}
	if reason != ReasonNone {
		if err := s.RemoveToken(ctx, t, token); err != nil {
			return reason, err
		}
	}
	return reason, nil
}

// IsValid consume el token: retorna true solo para el primer llamador que
// lo presenta vigente y a nombre del username. En cualquier otro caso el
// token queda borrado igual.
func (s *Service) IsValid(ctx context.Context, t types.TokenType, token, username string) (bool, error) {
	if strings.TrimSpace(token) == "" {
		return false, nil
	}
	ut, err := s.tokens.Consume(ctx, token, t)
	if repository.IsNotFound(err) {
		s.invalid(ctx, t)
		return false, nil
	}
	if err != nil {
		return false, err
	}
	if s.checkActive(ctx, ut) != ReasonNone {
		return false, nil
	}
	if !ownedBy(ut, username) {
		s.invalid(ctx, t)
		return false, nil
	}
	return true, nil
}

// ConsumeToken borra el token y lo retorna junto con el motivo de rechazo.
// Solo un llamador puede obtenerlo; un token vencido también se borra.
func (s *Service) ConsumeToken(ctx context.Context, t types.TokenType, token string) (*repository.UserToken, Reason, error) {
	if strings.TrimSpace(token) == "" {
		s.invalid(ctx, t)
		return nil, ReasonInvalid, nil
	}
	ut, err := s.tokens.Consume(ctx, token, t)
	if repository.IsNotFound(err) {
		s.invalid(ctx, t)
		return nil, ReasonInvalid, nil
	}
	if err != nil {
		return nil, ReasonNone, err
	}
	if reason := s.checkActive(ctx, ut); reason != ReasonNone {
		return ut, reason, nil
	}
	return ut, ReasonNone, nil
}

// RestoreToken vuelve a guardar un token consumido con su vencimiento
// original, para cuando la operación que lo usaba no llegó a aplicarse.
func (s *Service) RestoreToken(ctx context.Context, ut *repository.UserToken) error {
	if ut == nil || ut.HasExpired(s.now()) {
		return nil
	}
	cp := *ut
	return s.tokens.Save(ctx, &cp)
}

// RemoveToken borra el token si existe y es del tipo dado. Idempotente.
func (s *Service) RemoveToken(ctx context.Context, t types.TokenType, token string) error {
	if strings.TrimSpace(token) == "" {
		return nil
	}
	_, err := s.tokens.Consume(ctx, token, t)
	if err != nil && !repository.IsNotFound(err) {
		return err
	}
	return nil
}

// RemoveForUser borra el token del tipo dado del usuario, si lo hay.
func (s *Service) RemoveForUser(ctx context.Context, t types.TokenType, username string) error {
	return s.tokens.DeleteForUser(ctx, repository.NormalizeUsername(username), t)
}

func (s *Service) checkActive(ctx context.Context, ut *repository.UserToken) Reason {
	if !ut.HasExpired(s.now()) {
		return ReasonNone
	}
	logger.From(ctx).Info("token expired",
		logger.Component("usertoken"), logger.TokenType(string(ut.Type)), logger.Username(ut.Username))
	s.audit.Record(ctx, ut.Type.Description()+"Failure", map[string]string{
		"username": ut.Username,
		"reason":   string(ReasonExpired),
	})
	return ReasonExpired
}

func (s *Service) invalid(ctx context.Context, t types.TokenType) {
	logger.From(ctx).Info("invalid token", logger.Component("usertoken"), logger.TokenType(string(t)))
	s.audit.Record(ctx, t.Description()+"Failure", map[string]string{"reason": string(ReasonInvalid)})
}

func ownedBy(ut *repository.UserToken, username string) bool {
	return ut.Username == repository.NormalizeUsername(username)
}
