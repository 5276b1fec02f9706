// Package identity resuelve la "master identity" de una persona entre los
// directorios configurados y mantiene el registro local que la ancla.
package identity

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/dropDatabas3/staffauth/internal/directory"
	"github.com/dropDatabas3/staffauth/internal/directory/delius"
	"github.com/dropDatabas3/staffauth/internal/domain/repository"
	"github.com/dropDatabas3/staffauth/internal/domain/types"
	"github.com/dropDatabas3/staffauth/internal/metrics"
	"github.com/dropDatabas3/staffauth/internal/observability/logger"
	"github.com/dropDatabas3/staffauth/internal/requestctx"
	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
)

// ErrNotFound indica que ningún directorio tiene la identidad.
var ErrNotFound = errors.New("identity: not found")

// legacyEmailSuffix marca emails del directorio A que no se adoptan como verificados.
const legacyEmailSuffix = "hmps.gsi.gov.uk"

// Deps contiene las dependencias del servicio.
type Deps struct {
	Users    repository.UserRepository
	Adapters []directory.Adapter
	Now      func() time.Time
}

// resolver es un paso de la cadena de precedencia.
type resolver struct {
	source types.AuthSource
	skip   func(username string) bool
	find   func(ctx context.Context, username string) (*repository.Identity, error)
}

// Service resuelve identidades.
type Service struct {
	users     repository.UserRepository
	adapters  map[types.AuthSource]directory.Adapter
	resolvers []resolver
	now       func() time.Time
}

// NewService crea el servicio. Los adaptadores pueden venir en cualquier
// orden: la cadena se arma según types.MasterPrecedence.
func NewService(deps Deps) *Service {
	if deps.Now == nil {
		deps.Now = time.Now
	}
	s := &Service{
		users:    deps.Users,
		adapters: make(map[types.AuthSource]directory.Adapter, len(deps.Adapters)),
		now:      deps.Now,
	}
	for _, a := range deps.Adapters {
		s.adapters[a.Source()] = a
	}
	for _, src := range types.MasterPrecedence {
		a, ok := s.adapters[src]
		if !ok {
			continue
		}
		r := resolver{source: src, find: a.FindByUsername}
		if src == types.SourceDelius {
			r.skip = delius.IsEmailStyle
		}
		s.resolvers = append(s.resolvers, r)
	}
	return s
}

// Adapter retorna el adaptador del directorio dado.
func (s *Service) Adapter(src types.AuthSource) (directory.Adapter, bool) {
	a, ok := s.adapters[src]
	return a, ok
}

// Users expone el repositorio de registros locales.
func (s *Service) Users() repository.UserRepository { return s.users }

// FindMasterIdentity recorre los directorios en orden de precedencia y
// retorna el primer registro presente. Un directorio que no responde se
// anota en el scope del request y la búsqueda sigue con el próximo.
func (s *Service) FindMasterIdentity(ctx context.Context, username string) (*repository.Identity, error) {
	log := logger.From(ctx).With(
		logger.Layer("service"),
		logger.Component("identity"),
		logger.Op("FindMasterIdentity"),
	)

	username = repository.NormalizeUsername(username)
	if username == "" {
		return nil, ErrNotFound
	}

	for _, r := range s.resolvers {
		if r.skip != nil && r.skip(username) {
			continue
		}
		id, err := r.find(ctx, username)
		switch {
		case err == nil:
			s.attachAnchor(ctx, id)
			return id, nil
		case directory.IsNotFound(err):
			continue
		case directory.IsUnavailable(err):
			s.markUnavailable(ctx, r.source)
			log.Warn("directory unavailable during lookup", logger.AuthSource(string(r.source)), logger.Err(err))
			continue
		default:
			return nil, fmt.Errorf("lookup %s: %w", r.source, err)
		}
	}
	return nil, ErrNotFound
}

// GetMasterIdentity busca la identidad en un directorio concreto.
func (s *Service) GetMasterIdentity(ctx context.Context, username string, src types.AuthSource) (*repository.Identity, error) {
	a, ok := s.adapters[src]
	if !ok {
		return nil, ErrNotFound
	}
	id, err := a.FindByUsername(ctx, repository.NormalizeUsername(username))
	switch {
	case err == nil:
		s.attachAnchor(ctx, id)
		return id, nil
	case directory.IsNotFound(err):
		return nil, ErrNotFound
	case directory.IsUnavailable(err):
		s.markUnavailable(ctx, src)
	}
	return nil, err
}

// FindEnabledOrLockedIdentity retorna la master identity si está habilitada,
// o si está bloqueada en el directorio A (sigue siendo elegible para reset).
func (s *Service) FindEnabledOrLockedIdentity(ctx context.Context, username string) (*repository.Identity, error) {
	id, err := s.FindMasterIdentity(ctx, username)
	if err != nil {
		return nil, err
	}
	if id.Enabled || (id.Source == types.SourceNomis && id.Locked) {
		return id, nil
	}
	return nil, ErrNotFound
}

// FindByEmail busca identidades por email en un directorio. En el almacén
// local solo cuentan los emails verificados.
func (s *Service) FindByEmail(ctx context.Context, email string, src types.AuthSource) ([]repository.Identity, error) {
	email = repository.NormalizeEmail(email)
	a, ok := s.adapters[src]
	if email == "" || !ok {
		return nil, nil
	}
	ids, err := a.FindByEmail(ctx, email)
	if directory.IsUnavailable(err) {
		s.markUnavailable(ctx, src)
		logger.From(ctx).Warn("directory unavailable during email search",
			logger.Component("identity"), logger.AuthSource(string(src)), logger.Err(err))
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if src != types.SourceAuth {
		return ids, nil
	}
	out := ids[:0]
	for _, id := range ids {
		if id.Verified {
			out = append(out, id)
		}
	}
	return out, nil
}

// FindByEmailInDirectories consulta varios directorios en paralelo. El
// resultado respeta el orden de sources.
func (s *Service) FindByEmailInDirectories(ctx context.Context, email string, sources ...types.AuthSource) ([]repository.Identity, error) {
	results := make([][]repository.Identity, len(sources))
	g, gctx := errgroup.WithContext(ctx)
	for i, src := range sources {
		i, src := i, src
		g.Go(func() error {
			ids, err := s.FindByEmail(gctx, email, src)
			results[i] = ids
			return err
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	var out []repository.Identity
	for _, ids := range results {
		out = append(out, ids...)
	}
	return out, nil
}

// GetEmail retorna el email verificado de la identidad, si lo hay. Para
// directorios externos prefiere el del registro local.
func (s *Service) GetEmail(ctx context.Context, id *repository.Identity) (string, bool) {
	if id.Source != types.SourceAuth {
		if u, err := s.users.GetByUsername(ctx, id.Username); err == nil && u.HasVerifiedEmail() {
			return u.Email, true
		}
	}
	if id.Verified && strings.TrimSpace(id.Email) != "" {
		return id.Email, true
	}
	return "", false
}

// ResolveOrCreate retorna el registro local del username, materializando un
// shadow desde la master identity si aún no existe.
func (s *Service) ResolveOrCreate(ctx context.Context, username string) (*repository.User, error) {
	u, err := s.users.GetByUsername(ctx, username)
	if err == nil {
		return u, nil
	}
	if !repository.IsNotFound(err) {
		return nil, err
	}
	id, err := s.FindMasterIdentity(ctx, username)
	if err != nil {
		return nil, err
	}
	return s.Materialize(ctx, id)
}

// Materialize persiste el shadow local de una identidad externa. Es
// idempotente: si otro request ya lo creó retorna el existente.
func (s *Service) Materialize(ctx context.Context, id *repository.Identity) (*repository.User, error) {
	log := logger.From(ctx).With(
		logger.Layer("service"),
		logger.Component("identity"),
		logger.Op("Materialize"),
		logger.Username(id.Username),
	)

	if u, err := s.users.GetByUsername(ctx, id.Username); err == nil {
		return u, nil
	} else if !repository.IsNotFound(err) {
		return nil, err
	}

	u := &repository.User{
		ID:        uuid.NewString(),
		Username:  repository.NormalizeUsername(id.Username),
		Enabled:   true,
		Source:    id.Source,
		FirstName: id.FirstName,
		LastName:  id.LastName,
		CreatedAt: s.now().UTC(),
	}
	u.Email, u.Verified = adoptEmail(id)

	if err := s.users.Create(ctx, u); err != nil {
		if repository.IsConflict(err) {
			return s.users.GetByUsername(ctx, u.Username)
		}
		return nil, err
	}
	log.Info("shadow record created", logger.AuthSource(string(id.Source)))
	id.UUID = u.ID
	return u, nil
}

// adoptEmail decide qué email copia el shadow. Los emails del directorio A
// se adoptan como verificados salvo los del dominio legado.
func adoptEmail(id *repository.Identity) (string, bool) {
	email := repository.NormalizeEmail(id.Email)
	if email == "" {
		return "", false
	}
	if id.Source == types.SourceNomis {
		if strings.HasSuffix(email, legacyEmailSuffix) {
			return "", false
		}
		return email, true
	}
	return email, id.Verified
}

// attachAnchor completa el UUID con el del registro local, si existe.
func (s *Service) attachAnchor(ctx context.Context, id *repository.Identity) {
	if id.UUID != "" || id.Source == types.SourceAuth {
		return
	}
	if u, err := s.users.GetByUsername(ctx, id.Username); err == nil {
		id.UUID = u.ID
	}
}

func (s *Service) markUnavailable(ctx context.Context, src types.AuthSource) {
	requestctx.MarkUnavailable(ctx, src)
	metrics.DirectoryUnavailable.WithLabelValues(string(src)).Inc()
}
