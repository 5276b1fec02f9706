// Package app arma el contenedor de servicios a partir de la configuración.
// Lo usan tanto el servidor como el CLI de operación.
package app

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/dropDatabas3/staffauth/internal/account"
	"github.com/dropDatabas3/staffauth/internal/authn"
	"github.com/dropDatabas3/staffauth/internal/claims"
	"github.com/dropDatabas3/staffauth/internal/config"
	"github.com/dropDatabas3/staffauth/internal/directory"
	"github.com/dropDatabas3/staffauth/internal/directory/azure"
	"github.com/dropDatabas3/staffauth/internal/directory/delius"
	"github.com/dropDatabas3/staffauth/internal/directory/local"
	"github.com/dropDatabas3/staffauth/internal/directory/nomis"
	"github.com/dropDatabas3/staffauth/internal/domain/types"
	accountctrl "github.com/dropDatabas3/staffauth/internal/http/controllers/account"
	authctrl "github.com/dropDatabas3/staffauth/internal/http/controllers/auth"
	healthctrl "github.com/dropDatabas3/staffauth/internal/http/controllers/health"
	oauthctrl "github.com/dropDatabas3/staffauth/internal/http/controllers/oauth"
	"github.com/dropDatabas3/staffauth/internal/http/router"
	"github.com/dropDatabas3/staffauth/internal/identity"
	"github.com/dropDatabas3/staffauth/internal/issuance"
	jwtx "github.com/dropDatabas3/staffauth/internal/jwt"
	"github.com/dropDatabas3/staffauth/internal/ledger"
	"github.com/dropDatabas3/staffauth/internal/mfa"
	"github.com/dropDatabas3/staffauth/internal/notify"
	"github.com/dropDatabas3/staffauth/internal/observability/logger"
	"github.com/dropDatabas3/staffauth/internal/rate"
	"github.com/dropDatabas3/staffauth/internal/security/ipallow"
	"github.com/dropDatabas3/staffauth/internal/security/password"
	"github.com/dropDatabas3/staffauth/internal/store"
	"github.com/dropDatabas3/staffauth/internal/tokenverify"
	"github.com/dropDatabas3/staffauth/internal/usertoken"
)

// Container agrupa los servicios cableados.
type Container struct {
	Config *config.Config
	Stores *store.Stores
	Issuer *jwtx.Issuer

	Identity  *identity.Service
	Ledger    *ledger.Ledger
	Tokens    *usertoken.Service
	Mfa       *mfa.Service
	Authn     *authn.Provider
	Issuance  *issuance.Service
	Account   *account.Service
	Notifier  notify.Notifier
	Forwarder *tokenverify.Client

	LoginLimiter   rate.Limiter
	TrustedProxies *ipallow.List
}

// Build abre los stores y arma todos los servicios. cleanup espera los
// envíos de verificación pendientes y cierra las conexiones.
func Build(ctx context.Context, cfg *config.Config) (*Container, func(), error) {
	log := logger.From(ctx).With(logger.Layer("app"), logger.Op("Build"))

	stores, closeStores, err := store.Open(ctx, cfg)
	if err != nil {
		return nil, closeStores, err
	}
	c := &Container{Config: cfg, Stores: stores}

	if c.Issuer, err = buildIssuer(cfg); err != nil {
		return nil, closeStores, err
	}

	adapters, err := buildAdapters(cfg, stores)
	if err != nil {
		return nil, closeStores, err
	}
	c.Identity = identity.NewService(identity.Deps{Users: stores.Users, Adapters: adapters})

	threshold := cfg.Auth.AccountLockoutCount
	c.Ledger = ledger.New(ledger.Deps{
		Retries:   stores.Retries,
		Identity:  c.Identity,
		Threshold: func() int { return threshold },
	})

	expiry, err := tokenExpiry(cfg)
	if err != nil {
		return nil, closeStores, err
	}
	c.Tokens = usertoken.NewService(usertoken.Deps{
		Tokens:                stores.Tokens,
		Identity:              c.Identity,
		Expiry:                expiry,
		InitialPasswordExpiry: cfg.Auth.InitialPasswordExpiry,
	})

	if c.Notifier, err = buildNotifier(cfg); err != nil {
		return nil, closeStores, err
	}

	approved, err := ipallow.Parse(cfg.MFA.ApprovedNetworks)
	if err != nil {
		return nil, closeStores, fmt.Errorf("mfa.approved_networks: %w", err)
	}
	c.Mfa = mfa.NewService(mfa.Deps{
		Clients:            stores.Clients,
		Identity:           c.Identity,
		Tokens:             c.Tokens,
		Ledger:             c.Ledger,
		Notifier:           c.Notifier,
		ApprovedNetworks:   approved,
		LegacyClientID:     cfg.MFA.LegacyDiaryClient,
		LegacyMigratedRole: cfg.MFA.LegacyMigratedRole,
	})

	c.Authn = authn.NewProvider(authn.Deps{Identity: c.Identity, Ledger: c.Ledger, Mfa: c.Mfa})

	c.Forwarder = tokenverify.New(tokenverify.Config{
		Enabled: cfg.TokenVerification.Enabled,
		BaseURL: cfg.TokenVerification.BaseURL,
		Timeout: cfg.TokenVerification.Timeout,
	})
	c.Issuance = issuance.NewService(issuance.Deps{
		Clients:              stores.Clients,
		Issuer:               c.Issuer,
		Enhancer:             &claims.Enhancer{},
		Forwarder:            c.Forwarder,
		VerificationClientID: cfg.TokenVerification.ClientID,
	})

	c.Account = account.NewService(account.Deps{
		Identity: c.Identity,
		Tokens:   c.Tokens,
		Ledger:   c.Ledger,
		Notifier: c.Notifier,
	})

	if c.TrustedProxies, err = ipallow.Parse(cfg.Server.TrustedProxies); err != nil {
		return nil, closeStores, fmt.Errorf("server.trusted_proxies: %w", err)
	}
	if cfg.Rate.Enabled {
		if stores.Redis != nil {
			c.LoginLimiter = rate.NewRedisLimiter(stores.Redis, cfg.Redis.Prefix+"rl:", cfg.Rate.Login.Limit, cfg.Rate.Login.Window)
		} else {
			c.LoginLimiter = rate.NewMemoryLimiter(cfg.Rate.Login.Limit, cfg.Rate.Login.Window)
		}
	}

	log.Info("services ready",
		logger.String("storage", cfg.Storage.Driver),
		logger.Int("directories", len(adapters)),
		logger.Bool("redis", stores.Redis != nil),
		logger.Bool("token_verification", cfg.TokenVerification.Enabled),
	)

	cleanup := func() {
		c.Forwarder.Wait()
		closeStores()
	}
	return c, cleanup, nil
}

// Handler arma el router HTTP sobre el contenedor.
func (c *Container) Handler() http.Handler {
	base := strings.TrimRight(c.Config.Notify.BaseURL, "/")
	checks := map[string]healthctrl.Check{
		"cache": c.Stores.Cache.Ping,
	}
	if c.Stores.Pool != nil {
		checks["postgres"] = c.Stores.Pool.Ping
	}
	if c.Stores.Redis != nil {
		checks["redis"] = func(ctx context.Context) error { return c.Stores.Redis.Ping(ctx).Err() }
	}

	return router.New(router.Deps{
		Auth: authctrl.NewController(authctrl.Deps{
			Authn:         c.Authn,
			Mfa:           c.Mfa,
			Tokens:        c.Tokens,
			Issuance:      c.Issuance,
			Clients:       c.Stores.Clients,
			SecureCookies: c.Config.IsProd(),
		}),
		Account: accountctrl.NewController(accountctrl.Deps{
			Account:     c.Account,
			ResetURL:    base + "/reset-password",
			VerifyURL:   base + "/auth/verify-email/confirm",
			ExposeLinks: !c.Config.IsProd(),
		}),
		OAuth: oauthctrl.NewTokenController(oauthctrl.Deps{
			Clients:  c.Stores.Clients,
			Issuance: c.Issuance,
		}),
		Health: healthctrl.NewController(healthctrl.Deps{
			Checks: checks,
			Cache:  c.Stores.Cache,
			Issuer: c.Issuer,
		}),
		Issuer:         c.Issuer,
		LoginLimiter:   c.LoginLimiter,
		TrustedProxies: c.TrustedProxies,
	})
}

func buildIssuer(cfg *config.Config) (*jwtx.Issuer, error) {
	var (
		ks  *jwtx.KeySet
		err error
	)
	if cfg.JWT.PrivateKeySeed != "" {
		ks, err = jwtx.NewFromSeed(cfg.JWT.KID, cfg.JWT.PrivateKeySeed)
	} else {
		logger.L().Warn("jwt.private_key_seed not set, using an ephemeral key")
		ks, err = jwtx.NewDevEd25519(cfg.JWT.KID)
	}
	if err != nil {
		return nil, err
	}
	iss := jwtx.NewIssuer(cfg.JWT.Issuer, ks)
	iss.AccessTTL = cfg.JWT.AccessTTL
	iss.RefreshTTL = cfg.JWT.RefreshTTL
	return iss, nil
}

func buildAdapters(cfg *config.Config, stores *store.Stores) ([]directory.Adapter, error) {
	pp := cfg.Auth.PasswordPolicy
	policy := password.Policy{
		MinLength:     pp.MinLength,
		MaxLength:     pp.MaxLength,
		RequireUpper:  pp.RequireUpper,
		RequireLower:  pp.RequireLower,
		RequireDigit:  pp.RequireDigit,
		RequireSymbol: pp.RequireSymbol,
	}
	if path := cfg.Auth.PasswordBlacklistPath; path != "" {
		bl, err := password.LoadBlacklist(path)
		if err != nil {
			return nil, fmt.Errorf("password blacklist: %w", err)
		}
		policy.Blacklist = bl
	}

	adapters := []directory.Adapter{
		local.New(stores.Users, local.Config{
			Params:      password.Default,
			Policy:      policy,
			PasswordAge: cfg.Auth.PasswordAge,
		}),
	}
	if n := cfg.Directories.Nomis; n.Enabled {
		adapters = append(adapters, nomis.New(httpConfig(n)))
	}
	if cfg.Directories.Azure.Enabled {
		adapters = append(adapters, azure.New(stores.Users))
	}
	if d := cfg.Directories.Delius; d.Enabled {
		adapters = append(adapters, delius.New(delius.Config{
			Enabled:      true,
			HTTP:         httpConfig(d.DirectoryConfig),
			RoleMappings: d.RoleMappings,
		}))
	}
	return adapters, nil
}

func httpConfig(d config.DirectoryConfig) directory.HTTPConfig {
	return directory.HTTPConfig{
		BaseURL:        d.BaseURL,
		ConnectTimeout: d.ConnectTimeout,
		ReadTimeout:    d.ReadTimeout,
		Username:       d.Username,
		Password:       d.Password,
	}
}

func tokenExpiry(cfg *config.Config) (map[types.TokenType]time.Duration, error) {
	out := map[types.TokenType]time.Duration{
		types.TokenMFARmbr: cfg.MFA.RememberMeExpiry,
	}
	for k, v := range cfg.Auth.TokenExpiry {
		t, ok := types.ParseTokenType(k)
		if !ok {
			return nil, fmt.Errorf("auth.token_expiry: unknown token type %q", k)
		}
		out[t] = v
	}
	return out, nil
}

func buildNotifier(cfg *config.Config) (*notify.Service, error) {
	templates, err := notify.LoadTemplates(cfg.Notify.TemplatesDir)
	if err != nil {
		return nil, err
	}
	var mailer notify.Mailer = notify.LogMailer{}
	if cfg.SMTP.Host != "" {
		mailer = notify.NewSMTPSender(notify.SMTPConfig{
			Host:               cfg.SMTP.Host,
			Port:               cfg.SMTP.Port,
			Username:           cfg.SMTP.Username,
			Password:           cfg.SMTP.Password,
			From:               cfg.SMTP.From,
			TLS:                cfg.SMTP.TLS,
			InsecureSkipVerify: cfg.SMTP.InsecureSkipVerify,
		})
	}
	return notify.NewService(notify.Deps{Mailer: mailer, Templates: templates}), nil
}
