package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/dropDatabas3/staffauth/internal/app"
	"github.com/dropDatabas3/staffauth/internal/config"
	httpserver "github.com/dropDatabas3/staffauth/internal/http"
	"github.com/dropDatabas3/staffauth/internal/metrics"
	"github.com/dropDatabas3/staffauth/internal/observability/logger"
)

func main() {
	var (
		flagConfigPath = flag.String("config", "", "ruta a config.yaml (fallback: $CONFIG_PATH o configs/config.yaml)")
		flagEnvFile    = flag.String("env-file", ".env", "ruta a .env (si existe, se carga)")
		flagPrint      = flag.Bool("print-config", false, "imprime config efectiva y termina")
	)
	flag.Parse()

	if *flagEnvFile != "" {
		_ = godotenv.Load(*flagEnvFile)
	}

	cfg, err := config.Load(configPath(*flagConfigPath))
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	if *flagPrint {
		b, _ := yaml.Marshal(redacted(*cfg))
		fmt.Print(string(b))
		return
	}

	logger.Init(logger.Config{Env: cfg.App.Env, Level: cfg.Log.Level, ServiceName: "staffauth"})
	defer func() { _ = logger.Sync() }()
	lg := logger.L()

	if err := metrics.Register(nil); err != nil {
		lg.Fatal("metrics", logger.Err(err))
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	c, cleanup, err := app.Build(ctx, cfg)
	if err != nil {
		cleanup()
		lg.Fatal("build", logger.Err(err))
	}
	defer cleanup()

	err = httpserver.Run(ctx, httpserver.ServerConfig{
		Addr:         cfg.Server.Addr,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}, c.Handler())
	if err != nil {
		lg.Error("http", logger.Err(err))
	}
}

func configPath(flagPath string) string {
	if flagPath != "" {
		return flagPath
	}
	if p := os.Getenv("CONFIG_PATH"); p != "" {
		return p
	}
	if _, err := os.Stat("configs/config.yaml"); err == nil {
		return "configs/config.yaml"
	}
	return ""
}

// redacted oculta secretos antes de imprimir la config.
func redacted(c config.Config) config.Config {
	mask := func(s *string) {
		if *s != "" {
			*s = "***"
		}
	}
	mask(&c.Storage.DSN)
	mask(&c.Redis.Password)
	mask(&c.JWT.PrivateKeySeed)
	mask(&c.SMTP.Password)
	mask(&c.Directories.Nomis.Password)
	mask(&c.Directories.Delius.Password)
	return c
}
