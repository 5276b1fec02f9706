// authctl agrupa las operaciones de soporte: desbloqueo de cuentas, tokens
// de usuario, hashes, seeds de firma y migraciones.
package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/dropDatabas3/staffauth/internal/app"
	"github.com/dropDatabas3/staffauth/internal/config"
	"github.com/dropDatabas3/staffauth/internal/domain/types"
	jwtx "github.com/dropDatabas3/staffauth/internal/jwt"
	"github.com/dropDatabas3/staffauth/internal/observability/logger"
	"github.com/dropDatabas3/staffauth/internal/security/password"
	"github.com/dropDatabas3/staffauth/internal/store/pg"
	"github.com/dropDatabas3/staffauth/internal/util/atomicwrite"
	migrations "github.com/dropDatabas3/staffauth/migrations/postgres"
)

func main() {
	var (
		configPath = envOr("CONFIG_PATH", "")
		envFile    = ".env"
		timeout    = 30 * time.Second
	)

	root := &cobra.Command{
		Use:           "authctl",
		Short:         "Operaciones de soporte del proveedor de identidad",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			if envFile != "" {
				_ = godotenv.Load(envFile)
			}
			logger.Init(logger.Config{Env: "dev", Level: "warn", ServiceName: "authctl"})
		},
	}
	root.PersistentFlags().StringVar(&configPath, "config", configPath, "ruta a config.yaml (env CONFIG_PATH)")
	root.PersistentFlags().StringVar(&envFile, "env-file", envFile, "ruta a .env")
	root.PersistentFlags().DurationVar(&timeout, "timeout", timeout, "timeout de la operación")

	withContainer := func(fn func(ctx context.Context, c *app.Container) error) error {
		cfg, err := config.Load(configPath)
		if err != nil {
			return err
		}
		ctx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()
		c, cleanup, err := app.Build(ctx, cfg)
		defer cleanup()
		if err != nil {
			return err
		}
		return fn(ctx, c)
	}

	hashCmd := &cobra.Command{
		Use:   "hash-password <plain>",
		Short: "Genera un hash argon2id (usuarios locales o secretos de cliente)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			h, err := password.Hash(password.Default, args[0])
			if err != nil {
				return err
			}
			fmt.Println(h)
			return nil
		},
	}

	unlockCmd := &cobra.Command{
		Use:   "unlock <username>",
		Short: "Desbloquea la cuenta en su directorio y limpia los reintentos",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withContainer(func(ctx context.Context, c *app.Container) error {
				if err := c.Ledger.Unlock(ctx, args[0]); err != nil {
					return err
				}
				fmt.Println("unlocked")
				return nil
			})
		},
	}

	tokenCmd := &cobra.Command{Use: "token", Short: "Tokens de usuario de vida corta"}
	tokenCreateCmd := &cobra.Command{
		Use:   "create <type> <username>",
		Short: "Crea un token (RESET, CHANGE, VERIFIED, ...)",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			t, ok := types.ParseTokenType(args[0])
			if !ok {
				return fmt.Errorf("tipo de token desconocido: %s", args[0])
			}
			return withContainer(func(ctx context.Context, c *app.Container) error {
				tok, err := c.Tokens.CreateToken(ctx, t, args[1])
				if err != nil {
					return err
				}
				fmt.Println(tok)
				return nil
			})
		},
	}
	tokenCheckCmd := &cobra.Command{
		Use:   "check <type> <token>",
		Short: "Verifica un token sin consumirlo",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			t, ok := types.ParseTokenType(args[0])
			if !ok {
				return fmt.Errorf("tipo de token desconocido: %s", args[0])
			}
			return withContainer(func(ctx context.Context, c *app.Container) error {
				reason, err := c.Tokens.CheckToken(ctx, t, args[1])
				if err != nil {
					return err
				}
				if reason == "" {
					fmt.Println("valid")
					return nil
				}
				fmt.Println(reason)
				return nil
			})
		},
	}
	tokenCmd.AddCommand(tokenCreateCmd, tokenCheckCmd)

	var seedOut string
	keysCmd := &cobra.Command{Use: "keys", Short: "Claves de firma"}
	genSeedCmd := &cobra.Command{
		Use:   "gen-seed",
		Short: "Genera un seed Ed25519 en base64 para jwt.private_key_seed",
		RunE: func(cmd *cobra.Command, args []string) error {
			seed, err := jwtx.GenerateSeed()
			if err != nil {
				return err
			}
			if seedOut == "" {
				fmt.Println(seed)
				return nil
			}
			if err := atomicwrite.WriteFile(seedOut, []byte("JWT_PRIVATE_KEY_SEED="+seed+"\n"), 0o600); err != nil {
				return err
			}
			fmt.Println("written", seedOut)
			return nil
		},
	}
	genSeedCmd.Flags().StringVar(&seedOut, "out", "", "escribe JWT_PRIVATE_KEY_SEED=... en este archivo (0600)")
	keysCmd.AddCommand(genSeedCmd)

	migrateCmd := &cobra.Command{
		Use:   "migrate",
		Short: "Aplica las migraciones de postgres pendientes",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(configPath)
			if err != nil {
				return err
			}
			ctx, cancel := context.WithTimeout(context.Background(), timeout)
			defer cancel()
			pool, err := pg.Connect(ctx, pg.PoolConfig{DSN: cfg.Storage.DSN})
			if err != nil {
				return err
			}
			defer pool.Close()
			applied, err := pg.Migrate(ctx, pool, migrations.FS)
			if err != nil {
				return err
			}
			for _, name := range applied {
				fmt.Println("applied", name)
			}
			if len(applied) == 0 {
				fmt.Println("nothing to do")
			}
			return nil
		},
	}

	root.AddCommand(hashCmd, unlockCmd, tokenCmd, keysCmd, migrateCmd)
	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err.Error())
		os.Exit(1)
	}
}

func envOr(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}
