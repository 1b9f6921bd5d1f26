package main

import (
	"context"
	"database/sql"
	"flag"
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/joho/godotenv"

	"github.com/angelmondragon/storefront-backend/pkg/config"
	"github.com/angelmondragon/storefront-backend/pkg/db"
	"github.com/angelmondragon/storefront-backend/pkg/logger"
	"github.com/angelmondragon/storefront-backend/pkg/migrate"
)

type options struct {
	dir     string
	name    string
	version string
}

// offline commands work on files only.
var offline = map[string]func(opts options) error{
	"create": func(opts options) error {
		if opts.name == "" {
			return fmt.Errorf("missing -name for create")
		}
		path, err := migrate.CreateSQLMigration(dirOrDefault(opts.dir), opts.name)
		if err != nil {
			return err
		}
		fmt.Println("created migration:", path)
		return nil
	},
	"validate": func(opts options) error {
		if err := migrate.ValidateDir(opts.dir); err != nil {
			return err
		}
		fmt.Println("migration validation passed")
		return nil
	},
}

// online commands run against the configured database.
var online = map[string]func(ctx context.Context, sqlDB *sql.DB, dialect string, opts options) error{
	"up": func(ctx context.Context, sqlDB *sql.DB, dialect string, opts options) error {
		return migrate.Run(ctx, sqlDB, dialect, opts.dir, "up")
	},
	"down": func(ctx context.Context, sqlDB *sql.DB, dialect string, opts options) error {
		return migrate.Run(ctx, sqlDB, dialect, opts.dir, "down")
	},
	"status": func(ctx context.Context, sqlDB *sql.DB, dialect string, opts options) error {
		return migrate.Run(ctx, sqlDB, dialect, opts.dir, "status")
	},
	"version": func(ctx context.Context, sqlDB *sql.DB, dialect string, opts options) error {
		if opts.version == "" {
			return fmt.Errorf("missing -version for version command")
		}
		return migrate.MigrateToVersion(ctx, sqlDB, dialect, opts.dir, opts.version)
	},
	"current": func(ctx context.Context, sqlDB *sql.DB, dialect string, _ options) error {
		current, err := migrate.Version(ctx, sqlDB, dialect)
		if err != nil {
			return err
		}
		fmt.Println("schema version:", current)
		return nil
	},
}

func main() {
	logg := logger.New(logger.Options{ServiceName: "migrate"})
	_ = godotenv.Load()

	cmd := flag.String("cmd", "up", "migration command: "+strings.Join(commandNames(), "|"))
	var opts options
	flag.StringVar(&opts.dir, "dir", "", "goose migrations directory (empty uses the embedded set)")
	flag.StringVar(&opts.name, "name", "", "migration name (for create)")
	flag.StringVar(&opts.version, "version", "", "target version (YYYYMMDDHHMMSS) for -cmd=version")
	flag.Parse()

	cfg, err := config.Load()
	requireResource(context.Background(), logg, "config", err)
	logg = logger.New(logger.Options{
		ServiceName: "migrate",
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
		Format:      cfg.App.LogFormat,
	})
	ctx := logg.WithFields(context.Background(), map[string]any{
		"env": cfg.App.Env,
		"cmd": *cmd,
		"dir": opts.dir,
	})

	if run, ok := offline[*cmd]; ok {
		exitOnError(ctx, logg, *cmd, run(opts))
		return
	}
	run, ok := online[*cmd]
	if !ok {
		fmt.Fprintln(os.Stderr, "unknown -cmd value:", *cmd)
		os.Exit(2)
	}

	dbClient, err := db.New(ctx, cfg.DB, cfg.FeatureFlags.UseSQLite, logg)
	requireResource(ctx, logg, "database", err)
	defer dbClient.Close()
	sqlDB, err := dbClient.SQL()
	requireResource(ctx, logg, "sql database", err)

	dialect := migrate.GooseDialect(dbClient.Dialect())
	ctx = logg.WithField(ctx, "dialect", dialect)
	logg.Info(ctx, "migrate.started")
	exitOnError(ctx, logg, *cmd, run(ctx, sqlDB, dialect, opts))
	logg.Info(ctx, "migrate.finished")
}

func commandNames() []string {
	names := make([]string, 0, len(offline)+len(online))
	for name := range offline {
		names = append(names, name)
	}
	for name := range online {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func exitOnError(ctx context.Context, logg *logger.Logger, cmd string, err error) {
	if err == nil {
		return
	}
	logg.Error(ctx, "migrate.failed", err)
	fmt.Fprintf(os.Stderr, "%s failed: %v\n", cmd, err)
	os.Exit(1)
}

func requireResource(ctx context.Context, logg *logger.Logger, resource string, err error) {
	if err == nil {
		return
	}
	logg.Error(ctx, fmt.Sprintf("resource not working: %s", resource), err)
	os.Exit(1)
}

func dirOrDefault(dir string) string {
	if dir == "" {
		return migrate.DefaultDir
	}
	return dir
}
