package pg

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/dropDatabas3/staffauth/internal/domain/repository"
	"github.com/dropDatabas3/staffauth/internal/domain/types"
)

// UserRepo implementa repository.UserRepository.
type UserRepo struct {
	pool *pgxpool.Pool
}

// NewUserRepo crea el repositorio de usuarios.
func NewUserRepo(pool *pgxpool.Pool) *UserRepo {
	return &UserRepo{pool: pool}
}

const userColumns = `id, username, email, verified, enabled, locked, source, authorities,
	password_hash, password_expiry, last_logged_in, mfa_preference, contacts,
	first_name, last_name, created_at`

type contactRow struct {
	Type     string `json:"type"`
	Value    string `json:"value"`
	Verified bool   `json:"verified"`
}

func scanUser(row pgx.Row) (*repository.User, error) {
	var (
		u                 repository.User
		email, hash       *string
		expiry, lastLogin *time.Time
		source, mfa       string
		contactsJSON      []byte
	)
	err := row.Scan(&u.ID, &u.Username, &email, &u.Verified, &u.Enabled, &u.Locked, &source,
		&u.Authorities, &hash, &expiry, &lastLogin, &mfa, &contactsJSON,
		&u.FirstName, &u.LastName, &u.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, repository.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	u.Email = derefStr(email)
	u.PasswordHash = derefStr(hash)
	u.PasswordExpiry = derefTime(expiry)
	u.LastLoggedIn = derefTime(lastLogin)
	u.Source = types.AuthSource(source)
	u.MfaPreference = types.MfaPreference(mfa)

	var contacts []contactRow
	if len(contactsJSON) > 0 {
		if err := json.Unmarshal(contactsJSON, &contacts); err != nil {
			return nil, err
		}
	}
	for _, c := range contacts {
		u.Contacts = append(u.Contacts, repository.Contact{
			Type: types.ContactType(c.Type), Value: c.Value, Verified: c.Verified,
		})
	}
	return &u, nil
}

func contactsJSON(cs []repository.Contact) ([]byte, error) {
	rows := make([]contactRow, 0, len(cs))
	for _, c := range cs {
		rows = append(rows, contactRow{Type: string(c.Type), Value: c.Value, Verified: c.Verified})
	}
	return json.Marshal(rows)
}

func (r *UserRepo) GetByUsername(ctx context.Context, username string) (*repository.User, error) {
	row := r.pool.QueryRow(ctx,
		`SELECT `+userColumns+` FROM users WHERE username = $1`,
		repository.NormalizeUsername(username))
	return scanUser(row)
}

func (r *UserRepo) FindByEmail(ctx context.Context, email string) ([]repository.User, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT `+userColumns+` FROM users WHERE email = $1 ORDER BY username`,
		repository.NormalizeEmail(email))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []repository.User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *u)
	}
	return out, rows.Err()
}

func (r *UserRepo) Create(ctx context.Context, u *repository.User) error {
	if u == nil || u.Username == "" {
		return repository.ErrInvalidInput
	}
	if u.ID == "" {
		u.ID = uuid.NewString()
	}
	if u.CreatedAt.IsZero() {
		u.CreatedAt = time.Now().UTC()
	}
	cj, err := contactsJSON(u.Contacts)
	if err != nil {
		return err
	}
	authorities := u.Authorities
	if authorities == nil {
		authorities = []string{}
	}
	_, err = r.pool.Exec(ctx, `
		INSERT INTO users (`+userColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)`,
		u.ID, repository.NormalizeUsername(u.Username), nullIfEmpty(repository.NormalizeEmail(u.Email)),
		u.Verified, u.Enabled, u.Locked, string(u.Source), authorities,
		nullIfEmpty(u.PasswordHash), nullTime(u.PasswordExpiry), nullTime(u.LastLoggedIn),
		string(u.MfaPreference), cj, u.FirstName, u.LastName, u.CreatedAt)
	return mapErr(err)
}

func (r *UserRepo) Update(ctx context.Context, u *repository.User) error {
	if u == nil {
		return repository.ErrInvalidInput
	}
	cj, err := contactsJSON(u.Contacts)
	if err != nil {
		return err
	}
	authorities := u.Authorities
	if authorities == nil {
		authorities = []string{}
	}
	tag, err := r.pool.Exec(ctx, `
		UPDATE users SET email = $2, verified = $3, enabled = $4, locked = $5, source = $6,
			authorities = $7, password_hash = $8, password_expiry = $9, last_logged_in = $10,
			mfa_preference = $11, contacts = $12, first_name = $13, last_name = $14
		WHERE username = $1`,
		repository.NormalizeUsername(u.Username), nullIfEmpty(repository.NormalizeEmail(u.Email)),
		u.Verified, u.Enabled, u.Locked, string(u.Source), authorities,
		nullIfEmpty(u.PasswordHash), nullTime(u.PasswordExpiry), nullTime(u.LastLoggedIn),
		string(u.MfaPreference), cj, u.FirstName, u.LastName)
	if err != nil {
		return mapErr(err)
	}
	if tag.RowsAffected() == 0 {
		return repository.ErrNotFound
	}
	return nil
}

func (r *UserRepo) SetLocked(ctx context.Context, username string, locked bool) error {
	tag, err := r.pool.Exec(ctx, `UPDATE users SET locked = $2 WHERE username = $1`,
		repository.NormalizeUsername(username), locked)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return repository.ErrNotFound
	}
	return nil
}

func (r *UserRepo) UpdatePassword(ctx context.Context, username, hash string, expiry time.Time) error {
	tag, err := r.pool.Exec(ctx,
		`UPDATE users SET password_hash = $2, password_expiry = $3 WHERE username = $1`,
		repository.NormalizeUsername(username), hash, nullTime(expiry))
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return repository.ErrNotFound
	}
	return nil
}
