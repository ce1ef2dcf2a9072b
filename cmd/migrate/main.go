package main

import (
	"database/sql"
	"errors"
	"flag"
	"fmt"
	"io/fs"
	"os"
	"strconv"

	"github.com/flowstate/agency/internal/infrastructure/config"
	"github.com/flowstate/agency/internal/infrastructure/logger"
	"github.com/flowstate/agency/internal/infrastructure/migration"
	"github.com/flowstate/agency/migrations"
	_ "github.com/lib/pq"
	"go.uber.org/zap"
)

const usage = `Agency schema migrations

Usage:
  migrate [flags] <command> [argument]

Commands:
  up               apply every pending migration
  down             roll every migration back
  step <n>         move n migrations (negative rolls back)
  version          print the applied version
  force <version>  mark a version as applied without running it
  list             list the migration files

Flags:
  -path string       read migrations from a directory instead of the embedded set
  -log-level string  log level (default "info")

Connection settings come from config.toml and AGENCY_DATABASE_* variables.
`

// command runs against an open migrator; arg is the optional positional argument
type command struct {
	needsArg bool
	run      func(m *migration.Migrator, arg int, log *zap.Logger) error
}

var commands = map[string]command{
	"up":   {run: func(m *migration.Migrator, _ int, _ *zap.Logger) error { return m.Up() }},
	"down": {run: func(m *migration.Migrator, _ int, _ *zap.Logger) error { return m.Down() }},
	"step": {needsArg: true, run: func(m *migration.Migrator, n int, _ *zap.Logger) error { return m.Steps(n) }},
	"force": {needsArg: true, run: func(m *migration.Migrator, v int, log *zap.Logger) error {
		log.Warn("Forcing migration version", zap.Int("version", v))
		return m.Force(v)
	}},
	"version": {run: func(m *migration.Migrator, _ int, log *zap.Logger) error {
		v, dirty, err := m.Version()
		if err != nil {
			return err
		}
		if v == 0 {
			log.Info("No migrations applied")
			return nil
		}
		log.Info("Current migration version", zap.Uint("version", v), zap.Bool("dirty", dirty))
		return nil
	}},
}

func main() {
	dir := flag.String("path", "", "migrations directory")
	level := flag.String("log-level", "info", "log level")
	flag.Usage = func() { fmt.Fprint(os.Stderr, usage) }
	flag.Parse()

	if flag.NArg() == 0 {
		flag.Usage()
		os.Exit(2)
	}
	name := flag.Arg(0)

	log, err := logger.New(&logger.Config{Level: *level, Format: "console", Output: "stdout", TimeFormat: "15:04:05"})
	if err != nil {
		fmt.Fprintf(os.Stderr, "logger: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = log.Sync() }()

	var source fs.FS = migrations.FS
	if *dir != "" {
		source = os.DirFS(*dir)
	}

	if name == "list" {
		if err := list(source); err != nil {
			log.Fatal("Failed to list migrations", zap.Error(err))
		}
		return
	}

	cmd, ok := commands[name]
	if !ok {
		log.Error("Unknown command", zap.String("command", name))
		flag.Usage()
		os.Exit(2)
	}

	var arg int
	if cmd.needsArg {
		if arg, err = intArg(flag.Arg(1)); err != nil {
			log.Fatal("Invalid argument", zap.String("command", name), zap.Error(err))
		}
	}

	m, closeDB, err := open(source, log)
	if err != nil {
		log.Fatal("Failed to open migrator", zap.Error(err))
	}
	defer closeDB()

	log.Info("Running migration command", zap.String("command", name), zap.String("source", sourceName(*dir)))
	if err := cmd.run(m, arg, log); err != nil {
		log.Fatal("Migration command failed", zap.String("command", name), zap.Error(err))
	}
}

func list(source fs.FS) error {
	names, err := migration.List(source)
	if err != nil {
		return err
	}
	for _, n := range names {
		fmt.Println(n)
	}
	return nil
}

func intArg(raw string) (int, error) {
	if raw == "" {
		return 0, errors.New("missing numeric argument")
	}
	return strconv.Atoi(raw)
}

func sourceName(dir string) string {
	if dir == "" {
		return "embedded"
	}
	return dir
}

// open connects to postgres and builds a migrator. The returned func closes both.
func open(source fs.FS, log *zap.Logger) (*migration.Migrator, func(), error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, fmt.Errorf("load config: %w", err)
	}
	if cfg.Database.Driver != "postgres" {
		return nil, nil, fmt.Errorf("driver %q: migrations target postgres, sqlite schemas are created on server start", cfg.Database.Driver)
	}

	db, err := sql.Open("postgres", cfg.Database.DSN())
	if err != nil {
		return nil, nil, err
	}
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, nil, fmt.Errorf("ping: %w", err)
	}

	m, err := migration.New(db, source, log)
	if err != nil {
		_ = db.Close()
		return nil, nil, err
	}
	return m, func() {
		_ = m.Close()
		_ = db.Close()
	}, nil
}
