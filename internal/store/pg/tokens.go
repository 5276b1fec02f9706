package pg

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/dropDatabas3/staffauth/internal/domain/repository"
	"github.com/dropDatabas3/staffauth/internal/domain/types"
)

// TokenRepo implementa repository.UserTokenRepository.
type TokenRepo struct {
	pool *pgxpool.Pool
}

// NewTokenRepo crea el repositorio de tokens de corta vida.
func NewTokenRepo(pool *pgxpool.Pool) *TokenRepo {
	return &TokenRepo{pool: pool}
}

func (r *TokenRepo) Save(ctx context.Context, t *repository.UserToken) error {
	if t == nil || t.Token == "" {
		return repository.ErrInvalidInput
	}
	username := repository.NormalizeUsername(t.Username)
	return pgx.BeginFunc(ctx, r.pool, func(tx pgx.Tx) error {
		// Un token vigente por usuario y tipo
		if _, err := tx.Exec(ctx,
			`DELETE FROM user_token WHERE username = $1 AND token_type = $2`,
			username, string(t.Type)); err != nil {
			return err
		}
		_, err := tx.Exec(ctx, `
			INSERT INTO user_token (token, token_type, username, created_at, expires_at)
			VALUES ($1, $2, $3, $4, $5)`,
			t.Token, string(t.Type), username, t.CreatedAt, t.ExpiresAt)
		return mapErr(err)
	})
}

func scanToken(row pgx.Row) (*repository.UserToken, error) {
	var (
		t   repository.UserToken
		typ string
	)
	err := row.Scan(&t.Token, &typ, &t.Username, &t.CreatedAt, &t.ExpiresAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, repository.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	t.Type = types.TokenType(typ)
	return &t, nil
}

func (r *TokenRepo) Get(ctx context.Context, token string) (*repository.UserToken, error) {
	return scanToken(r.pool.QueryRow(ctx,
		`SELECT token, token_type, username, created_at, expires_at FROM user_token WHERE token = $1`, token))
}

// Consume usa DELETE ... RETURNING: solo una transacción puede obtener la fila.
func (r *TokenRepo) Consume(ctx context.Context, token string, typ types.TokenType) (*repository.UserToken, error) {
	return scanToken(r.pool.QueryRow(ctx, `
		DELETE FROM user_token WHERE token = $1 AND token_type = $2
		RETURNING token, token_type, username, created_at, expires_at`, token, string(typ)))
}

func (r *TokenRepo) DeleteForUser(ctx context.Context, username string, typ types.TokenType) error {
	_, err := r.pool.Exec(ctx, `DELETE FROM user_token WHERE username = $1 AND token_type = $2`,
		repository.NormalizeUsername(username), string(typ))
	return err
}
