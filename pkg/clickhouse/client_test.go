package clickhouse

import (
	"net/url"
	"testing"
	"time"
)

func TestBuildDSN(t *testing.T) {
	cfg := ClientConfig{
		Host:         "ch.local",
		Port:         9000,
		Database:     "panelsync",
		User:         "svc",
		Password:     "p@ss",
		DialTimeout:  2 * time.Second,
		MaxExecTime:  30 * time.Second,
		AsyncInsert:  true,
		WaitForAsync: true,
	}
	u, err := url.Parse(buildDSN(cfg))
	if err != nil {
		t.Fatalf("parse dsn: %v", err)
	}
	if u.Scheme != "clickhouse" || u.Host != "ch.local:9000" || u.Path != "/panelsync" {
		t.Fatalf("unexpected dsn base: %s", u)
	}
	if pw, _ := u.User.Password(); u.User.Username() != "svc" || pw != "p@ss" {
		t.Fatalf("credentials not round-tripped: %s", u.User)
	}
	q := u.Query()
	if q.Get("dial_timeout") != "2s" || q.Get("max_execution_time") != "30" {
		t.Fatalf("unexpected query: %s", u.RawQuery)
	}
	if q.Get("async_insert") != "1" || q.Get("wait_for_async_insert") != "1" {
		t.Fatalf("async insert flags missing: %s", u.RawQuery)
	}
	if q.Has("write_timeout") {
		t.Fatalf("write_timeout must stay client-side")
	}
}

func TestBuildDSNHTTP(t *testing.T) {
	u, err := url.Parse(buildDSN(ClientConfig{Host: "h", Port: 8123, Database: "d", UseHTTP: true}))
	if err != nil {
		t.Fatalf("parse dsn: %v", err)
	}
	if u.Scheme != "http" || u.User != nil || u.RawQuery != "" {
		t.Fatalf("unexpected dsn: %s", u)
	}
}

func TestNewClientRequiresHost(t *testing.T) {
	if _, err := NewClient(WithDatabase("x")); err == nil {
		t.Fatalf("expected error without host")
	}
}
