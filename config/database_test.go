package config

import (
	"testing"
	"time"
)

func TestMysqlDSN(t *testing.T) {
	t.Setenv("DB_USER", "pos")
	t.Setenv("DB_PASSWORD", "secret")
	t.Setenv("DB_HOST", "10.0.0.5")
	t.Setenv("DB_PORT", "3306")
	t.Setenv("DB_NAME", "pos_core")
	if got, want := mysqlDSN(), "pos:secret@tcp(10.0.0.5:3306)/pos_core?parseTime=true&loc=UTC"; got != want {
		t.Fatalf("got %s, want %s", got, want)
	}

	t.Setenv("DB_HOST", "/cloudsql/proj:region:instance")
	if got, want := mysqlDSN(), "pos:secret@unix(/cloudsql/proj:region:instance)/pos_core?parseTime=true&loc=UTC"; got != want {
		t.Fatalf("got %s, want %s", got, want)
	}
}

func TestPoolSettingsAndBackoff(t *testing.T) {
	t.Setenv("DB_MAX_OPEN_CONNS", "8")
	t.Setenv("DB_CONN_MAX_LIFETIME_SECONDS", "junk")
	p := poolSettingsFromEnv()
	if p.maxOpen != 8 || p.maxIdle != 25 || p.maxLifetime != 300*time.Second {
		t.Fatalf("got %+v", p)
	}

	want := []time.Duration{2 * time.Second, 4 * time.Second, 8 * time.Second, 16 * time.Second, 30 * time.Second, 30 * time.Second}
	for i, w := range want {
		if got := backoff(i + 1); got != w {
			t.Fatalf("backoff(%d) = %s, want %s", i+1, got, w)
		}
	}
}
