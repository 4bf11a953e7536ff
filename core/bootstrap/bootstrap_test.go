package bootstrap

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/jmoiron/sqlx"

	coreconfig "github.com/m3rciful/finbot/core/config"
	coredatabase "github.com/m3rciful/finbot/core/database"
)

func noLogger(*coreconfig.Config) error { return nil }

// lazyPool opens a pool without dialing; lib/pq connects on first use.
func lazyPool(t *testing.T) *sqlx.DB {
	t.Helper()
	db, err := sqlx.Open("postgres", "host=127.0.0.1 port=1 dbname=none sslmode=disable")
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	return db
}

func TestRunWithoutDatabase(t *testing.T) {
	res, err := Run(Options{
		Config:     &coreconfig.Config{},
		LoggerInit: noLogger,
		Connect: func(coredatabase.Config) (*sqlx.DB, error) {
			t.Fatal("connect called without database config")
			return nil, nil
		},
	})
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if res.DB != nil {
		t.Fatal("expected nil DB")
	}
}

func TestRunLoggerFailure(t *testing.T) {
	want := errors.New("no sink")
	_, err := Run(Options{
		Config:     &coreconfig.Config{},
		LoggerInit: func(*coreconfig.Config) error { return want },
	})
	if !errors.Is(err, want) {
		t.Fatalf("err = %v", err)
	}
}

func TestRunClosesPoolWhenMigrationFails(t *testing.T) {
	db := lazyPool(t)

	want := errors.New("dirty")
	_, err := Run(Options{
		Config:     &coreconfig.Config{},
		Database:   &coredatabase.Config{Host: "db", Name: "finbot"},
		LoggerInit: noLogger,
		Connect:    func(coredatabase.Config) (*sqlx.DB, error) { return db, nil },
		Migrate:    func(coredatabase.Config) error { return want },
	})
	if !errors.Is(err, want) {
		t.Fatalf("err = %v", err)
	}
	if err := db.PingContext(context.Background()); err == nil || !strings.Contains(err.Error(), "closed") {
		t.Fatalf("pool not closed: %v", err)
	}
}

func TestRunReturnsPool(t *testing.T) {
	db := lazyPool(t)
	t.Cleanup(func() { _ = db.Close() })

	migrated := false
	res, err := Run(Options{
		Config:     &coreconfig.Config{},
		Database:   &coredatabase.Config{Host: "db", Name: "finbot"},
		LoggerInit: noLogger,
		Connect:    func(coredatabase.Config) (*sqlx.DB, error) { return db, nil },
		Migrate: func(coredatabase.Config) error {
			migrated = true
			return nil
		},
	})
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if res.DB != db || !migrated {
		t.Fatalf("res = %+v migrated = %v", res, migrated)
	}
}
