package database

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"

	"github.com/m3rciful/finbot/core/logger"
)

// RunMigrations waits for Postgres and applies pending up migrations from
// cfg.MigrationsDir.
func RunMigrations(cfg Config) error {
	ctx := context.Background()
	fail := func(step string, err error) error {
		logger.Error(ctx, "db.migrate", "migrate."+step,
			slog.String("status", "fail"),
			slog.String("err", err.Error()),
		)
		return fmt.Errorf("migrate %s: %w", step, err)
	}

	waitCtx, cancel := context.WithTimeout(ctx, readyTimeout)
	err := waitReady(waitCtx, cfg.URL(), readyInterval)
	cancel()
	if err != nil {
		return fail("wait", err)
	}

	dir, err := resolveMigrationsDir(cfg.MigrationsDir)
	if err != nil {
		return fail("resolve", err)
	}
	files := upFiles(dir)
	logger.Debug(ctx, "db.migrate", "migrate.resolve", fileAttrs(files,
		slog.String("path", dir),
	)...)

	m, err := migrate.New("file://"+dir, cfg.URL())
	if err != nil {
		return fail("init", err)
	}
	defer func() { _, _ = m.Close() }()

	from := currentVersion(m)
	start := time.Now()
	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fail("apply", err)
	}
	to := currentVersion(m)
	applied := appliedBetween(files, from, to)

	logger.Info(ctx, "db.migrate", "migrate.summary", fileAttrs(applied,
		slog.Uint64("from_ver", from),
		slog.Uint64("to_ver", to),
		slog.Duration("duration", time.Since(start)),
	)...)
	return nil
}

func currentVersion(m *migrate.Migrate) uint64 {
	v, _, err := m.Version()
	if err != nil {
		return 0
	}
	return uint64(v)
}

func fileAttrs(files []string, attrs ...slog.Attr) []slog.Attr {
	attrs = append(attrs, slog.Int("files", len(files)))
	if len(files) == 0 {
		return attrs
	}
	preview := files[:min(len(files), 6)]
	attrs = append(attrs, slog.String("files_preview", strings.Join(preview, ", ")))
	if len(preview) < len(files) {
		attrs = append(attrs, slog.Bool("files_truncated", true))
	}
	return attrs
}

// resolveMigrationsDir makes a relative dir absolute against the working
// directory, as the file:// source requires.
func resolveMigrationsDir(dir string) (string, error) {
	if dir == "" {
		dir = "migrations"
	}
	if filepath.IsAbs(dir) {
		return dir, nil
	}
	return filepath.Abs(dir)
}

// upFiles lists *.up.sql names in dir, sorted.
func upFiles(dir string) []string {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil
	}
	var names []string
	for _, e := range entries {
		if !e.IsDir() && strings.HasSuffix(e.Name(), ".up.sql") {
			names = append(names, e.Name())
		}
	}
	sort.Strings(names)
	return names
}

func fileVersion(name string) uint64 {
	prefix, _, _ := strings.Cut(name, "_")
	v, _ := strconv.ParseUint(prefix, 10, 64)
	return v
}

// appliedBetween returns the files with from < version <= to.
func appliedBetween(files []string, from, to uint64) []string {
	var out []string
	for _, f := range files {
		if v := fileVersion(f); v > from && v <= to {
			out = append(out, f)
		}
	}
	return out
}
