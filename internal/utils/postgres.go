package utils

import (
	"context"
	"database/sql"
	"fmt"
	"net/url"
	"strings"
	"sync"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
)

// PostgresConfig describes the database holding API keys and document records.
// Host may also carry a full postgres:// URL.
type PostgresConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port" validate:"gte=0,lte=65535"`
	Database string `yaml:"database"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	SSLMode  string `yaml:"sslmode"`
}

// Enabled reports whether a database was configured at all.
func (c PostgresConfig) Enabled() bool {
	return strings.TrimSpace(c.Host) != ""
}

var sharedDB struct {
	sync.Mutex
	dsn string
	db  *sql.DB
}

// sqlDriver is swapped in tests.
var sqlDriver = "pgx"

func postgresPort(cfg PostgresConfig) int {
	if cfg.Port != 0 {
		return cfg.Port
	}
	return 5432
}

func postgresDSN(cfg PostgresConfig) (string, error) {
	if strings.HasPrefix(cfg.Host, "postgres://") || strings.HasPrefix(cfg.Host, "postgresql://") {
		return cfg.Host, nil
	}
	if cfg.Host == "" {
		return "", fmt.Errorf("postgres host is empty")
	}
	if cfg.Database == "" {
		return "", fmt.Errorf("postgres database is empty")
	}
	if cfg.User == "" {
		return "", fmt.Errorf("postgres user is empty")
	}

	hostPort := cfg.Host
	port := postgresPort(cfg)
	// IPv6 literals and explicit host:port strings.
	if strings.HasPrefix(hostPort, "[") {
		if !strings.Contains(hostPort, "]:") {
			hostPort = fmt.Sprintf("%s:%d", hostPort, port)
		}
	} else if strings.Count(hostPort, ":") >= 2 {
		hostPort = fmt.Sprintf("[%s]:%d", hostPort, port)
	} else if !strings.Contains(hostPort, ":") {
		hostPort = fmt.Sprintf("%s:%d", hostPort, port)
	}

	u := &url.URL{Scheme: "postgres", Host: hostPort, Path: "/" + cfg.Database}
	if cfg.Password != "" {
		u.User = url.UserPassword(cfg.User, cfg.Password)
	} else {
		u.User = url.User(cfg.User)
	}
	q := u.Query()
	if cfg.SSLMode != "" {
		q.Set("sslmode", cfg.SSLMode)
	}
	u.RawQuery = q.Encode()
	return u.String(), nil
}

// PostgresDB returns a shared, pinged connection pool for cfg. The pool is
// reused while the DSN stays the same.
func PostgresDB(ctx context.Context, cfg PostgresConfig) (*sql.DB, error) {
	dsn, err := postgresDSN(cfg)
	if err != nil {
		return nil, err
	}

	sharedDB.Lock()
	defer sharedDB.Unlock()

	if sharedDB.db != nil && sharedDB.dsn == dsn {
		return sharedDB.db, nil
	}
	if sharedDB.db != nil {
		_ = sharedDB.db.Close()
		sharedDB.db = nil
		sharedDB.dsn = ""
	}

	db, err := sql.Open(sqlDriver, dsn)
	if err != nil {
		return nil, err
	}
	// Low-throughput control plane tables only.
	db.SetMaxOpenConns(5)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(30 * time.Minute)

	pingCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, err
	}

	sharedDB.db = db
	sharedDB.dsn = dsn
	return sharedDB.db, nil
}

// ClosePostgres closes the shared pool, if any.
func ClosePostgres() error {
	sharedDB.Lock()
	defer sharedDB.Unlock()
	if sharedDB.db == nil {
		return nil
	}
	err := sharedDB.db.Close()
	sharedDB.db = nil
	sharedDB.dsn = ""
	return err
}
