// Package store arma los repositorios según la configuración: memory o
// postgres como almacén principal y redis opcional para reintentos, tokens
// y cache de clientes.
package store

import (
	"context"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5/pgxpool"
	rdb "github.com/redis/go-redis/v9"

	"github.com/dropDatabas3/staffauth/internal/cache"
	"github.com/dropDatabas3/staffauth/internal/config"
	"github.com/dropDatabas3/staffauth/internal/domain/repository"
	"github.com/dropDatabas3/staffauth/internal/observability/logger"
	"github.com/dropDatabas3/staffauth/internal/store/memory"
	"github.com/dropDatabas3/staffauth/internal/store/pg"
	redisstore "github.com/dropDatabas3/staffauth/internal/store/redis"
	migrations "github.com/dropDatabas3/staffauth/migrations/postgres"
)

// Stores agrupa los repositorios abiertos.
type Stores struct {
	Users   repository.UserRepository
	Tokens  repository.UserTokenRepository
	Retries repository.RetryRepository
	Clients *cache.ClientRepository

	// Cache es el backend usado por Clients (health lo consulta).
	Cache cache.Client
	// Redis es nil si no hay redis configurado.
	Redis *rdb.Client
	// Pool es nil con el driver memory.
	Pool *pgxpool.Pool
}

// Open abre los stores. cleanup cierra las conexiones abiertas.
func Open(ctx context.Context, cfg *config.Config) (*Stores, func(), error) {
	log := logger.From(ctx).With(logger.Layer("store"), logger.Op("Open"))
	s := &Stores{}
	var closers []func()
	cleanup := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}

	var clients repository.ClientRepository
	switch strings.ToLower(cfg.Storage.Driver) {
	case "", "memory":
		s.Users = memory.NewUserStore()
		s.Tokens = memory.NewTokenStore()
		s.Retries = memory.NewRetryStore()
		if cfg.Storage.ClientsFile != "" {
			cs, err := memory.LoadClientsFile(cfg.Storage.ClientsFile)
			if err != nil {
				return nil, cleanup, err
			}
			clients = cs
		} else {
			clients = memory.NewClientStore()
		}
		log.Info("memory store ready")
	case "postgres", "pg":
		pool, err := pg.Connect(ctx, pg.PoolConfig{
			DSN:             cfg.Storage.DSN,
			MaxConns:        cfg.Storage.Postgres.MaxOpenConns,
			MinConns:        cfg.Storage.Postgres.MaxIdleConns,
			ConnMaxLifetime: cfg.Storage.Postgres.ConnMaxLifetime,
		})
		if err != nil {
			return nil, cleanup, err
		}
		closers = append(closers, pool.Close)
		if cfg.Storage.Postgres.AutoMigrate {
			applied, err := pg.Migrate(ctx, pool, migrations.FS)
			if err != nil {
				return nil, cleanup, err
			}
			log.Info("migrations applied", logger.Count(len(applied)))
		}
		s.Pool = pool
		s.Users = pg.NewUserRepo(pool)
		s.Tokens = pg.NewTokenRepo(pool)
		s.Retries = pg.NewRetryRepo(pool)
		clients = pg.NewClientRepo(pool)
		log.Info("postgres store ready")
	default:
		return nil, cleanup, fmt.Errorf("store: unknown driver %q", cfg.Storage.Driver)
	}

	if cfg.Redis.Addr != "" {
		client := rdb.NewClient(&rdb.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		closers = append(closers, func() {
			if err := client.Close(); err != nil {
				log.Warn("redis close failed", logger.Err(err))
			}
		})
		if err := client.Ping(ctx).Err(); err != nil {
			return nil, cleanup, fmt.Errorf("store: redis ping: %w", err)
		}
		s.Redis = client
		s.Retries = redisstore.NewRetryStore(client, cfg.Redis.Prefix)
		tokens := redisstore.NewTokenStore(client, cfg.Redis.Prefix)
		if cfg.Redis.TokenRetention > 0 {
			tokens.Retention = cfg.Redis.TokenRetention
		}
		s.Tokens = tokens
		s.Cache = cache.NewRedis(client, cfg.Redis.Prefix+"cache:")
		log.Info("redis ready", logger.String("addr", cfg.Redis.Addr))
	} else {
		s.Cache = cache.NewMemory("clients:")
	}

	s.Clients = cache.NewClientRepository(clients, s.Cache, cfg.Cache.ClientTTL)
	return s, cleanup, nil
}
