package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/router-for-me/LLMConfigService/internal/app"
	"github.com/router-for-me/LLMConfigService/internal/config"
	"github.com/router-for-me/LLMConfigService/internal/http/api"

	log "github.com/sirupsen/logrus"
)

// errNoAuthSecret is returned when a token is requested but auth is disabled.
var errNoAuthSecret = errors.New("auth secret is not configured (set `auth.secret` or AUTH_SECRET)")

// main runs the CLI entrypoint and exits on unrecoverable command errors.
func main() {
	if errRun := run(context.Background(), os.Args[1:], os.Stdout); errRun != nil {
		log.WithError(errRun).Error("command failed")
		os.Exit(1)
	}
}

// run parses flags, loads config, and either issues a token, migrates, or starts the server.
func run(ctx context.Context, args []string, stdout io.Writer) error {
	fs := flag.NewFlagSet("llmconfig", flag.ContinueOnError)
	cfgPath := fs.String("config", "", "config file path (or env CONFIG_PATH)")
	listen := fs.String("listen", "", "listen address, overrides the config file")
	migrateOnly := fs.Bool("migrate", false, "run database migrations and exit")
	issueToken := fs.String("issue-token", "", "print a bearer token for this subject and exit")
	tokenTTL := fs.Duration("token-ttl", 24*time.Hour, "lifetime of a token printed by -issue-token")
	if errParse := fs.Parse(args); errParse != nil {
		return errParse
	}

	appCfg, err := loadConfig(*cfgPath)
	if err != nil {
		return err
	}
	if strings.TrimSpace(*listen) != "" {
		appCfg.Listen = strings.TrimSpace(*listen)
		if errValidate := appCfg.Validate(); errValidate != nil {
			return errValidate
		}
	}

	if subject := strings.TrimSpace(*issueToken); subject != "" {
		return printToken(stdout, appCfg.Auth.Secret, subject, *tokenTTL)
	}

	if *migrateOnly {
		if errLog := app.ConfigureLogging(appCfg.Log); errLog != nil {
			return errLog
		}
		if errMigrate := app.Migrate(ctx, appCfg); errMigrate != nil {
			return errMigrate
		}
		log.Info("migrations applied")
		return nil
	}
	return app.RunServer(ctx, appCfg)
}

// loadConfig prefers the -config flag and falls back to CONFIG_PATH.
func loadConfig(path string) (config.AppConfig, error) {
	if strings.TrimSpace(path) != "" {
		return config.Load(path)
	}
	return config.LoadFromEnv()
}

func printToken(w io.Writer, secret, subject string, ttl time.Duration) error {
	if strings.TrimSpace(secret) == "" {
		return errNoAuthSecret
	}
	if ttl <= 0 {
		return fmt.Errorf("invalid token ttl: %s", ttl)
	}
	token, errIssue := api.IssueToken(secret, subject, ttl)
	if errIssue != nil {
		return fmt.Errorf("issue token: %w", errIssue)
	}
	_, errWrite := fmt.Fprintln(w, token)
	return errWrite
}
