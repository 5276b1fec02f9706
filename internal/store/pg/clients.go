package pg

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/dropDatabas3/staffauth/internal/domain/repository"
	"github.com/dropDatabas3/staffauth/internal/domain/types"
)

// ClientRepo implementa repository.ClientRepository.
type ClientRepo struct {
	pool *pgxpool.Pool
}

// NewClientRepo crea el repositorio de clientes.
func NewClientRepo(pool *pgxpool.Pool) *ClientRepo {
	return &ClientRepo{pool: pool}
}

func (r *ClientRepo) GetClient(ctx context.Context, clientID string) (*repository.Client, error) {
	var (
		c          repository.Client
		ttlSeconds int
		mfa        string
	)
	err := r.pool.QueryRow(ctx, `
		SELECT id, secret_hash, grant_types, authorities, scopes, access_ttl_seconds,
			jwt_fields, database_username_field, mfa, mfa_remember_me
		FROM oauth_client WHERE id = $1`, clientID).Scan(
		&c.ID, &c.SecretHash, &c.GrantTypes, &c.Authorities, &c.Scopes, &ttlSeconds,
		&c.JwtFields, &c.DatabaseUsernameField, &mfa, &c.MfaRememberMe)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, repository.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	c.AccessTTL = time.Duration(ttlSeconds) * time.Second
	c.Mfa = types.ClientMfa(mfa)
	return &c, nil
}

func (r *ClientRepo) GetConfig(ctx context.Context, baseClientID string) (*repository.ClientConfig, error) {
	c := repository.ClientConfig{BaseClientID: baseClientID}
	err := r.pool.QueryRow(ctx,
		`SELECT ips, client_end_date FROM oauth_client_config WHERE base_client_id = $1`,
		baseClientID).Scan(&c.IPs, &c.ClientEndDate)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, repository.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &c, nil
}
