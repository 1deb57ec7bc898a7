package db

import (
	"net/url"
	"testing"

	"github.com/quillpress/apiserver/config"
)

func TestPostgresURL(t *testing.T) {
	dsn := PostgresURL(config.DatabaseConfig{
		Host:     "db.internal",
		Port:     6543,
		User:     "quill",
		Password: "p@ss/word",
		DBName:   "quill_db",
	})

	u, err := url.Parse(dsn)
	if err != nil {
		t.Fatalf("unexpected parse error: %v", err)
	}
	if u.Scheme != "postgres" {
		t.Errorf("expected postgres scheme, got %q", u.Scheme)
	}
	if u.Host != "db.internal:6543" {
		t.Errorf("unexpected host %q", u.Host)
	}
	if pass, _ := u.User.Password(); pass != "p@ss/word" {
		t.Errorf("password not preserved, got %q", pass)
	}
	if u.Path != "/quill_db" {
		t.Errorf("unexpected path %q", u.Path)
	}
	if got := u.Query().Get("sslmode"); got != "disable" {
		t.Errorf("expected sslmode=disable, got %q", got)
	}
}

func TestPostgresURL_SSL(t *testing.T) {
	dsn := PostgresURL(config.DatabaseConfig{Host: "localhost", Port: 5432, DBName: "x", UseSSL: true})

	u, err := url.Parse(dsn)
	if err != nil {
		t.Fatalf("unexpected parse error: %v", err)
	}
	if got := u.Query().Get("sslmode"); got != "require" {
		t.Errorf("expected sslmode=require, got %q", got)
	}
}
