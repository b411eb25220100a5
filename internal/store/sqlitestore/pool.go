package sqlitestore

import (
	"context"
	"fmt"
	"runtime"

	"github.com/rs/zerolog/log"
	"zombiezen.com/go/sqlite"
	"zombiezen.com/go/sqlite/sqlitex"
)

// pool is a fixed-size set of connections with the standard pragmas
// applied once per connection. Connections are not safe for concurrent
// use; each goroutine takes its own and puts it back.
type pool struct {
	inner *sqlitex.Pool
	path  string
}

func openPool(path string, size int, onConnect func(*sqlite.Conn) error) (*pool, error) {
	if path == "" {
		return nil, fmt.Errorf("sqlitestore: path is required")
	}
	if size <= 0 {
		size = runtime.NumCPU()
		if size < 4 {
			size = 4
		}
	}
	inner, err := sqlitex.NewPool(path, sqlitex.PoolOptions{
		PoolSize: size,
		PrepareConn: func(conn *sqlite.Conn) error {
			return prepareConnection(conn, onConnect)
		},
	})
	if err != nil {
		return nil, fmt.Errorf("sqlitestore: opening %s: %w", path, err)
	}
	log.Info().Str("module", "store.sqlite").Str("path", path).Int("pool_size", size).Msg("pool opened")
	return &pool{inner: inner, path: path}, nil
}

func (p *pool) take(ctx context.Context) (*sqlite.Conn, error) {
	conn, err := p.inner.Take(ctx)
	if err != nil {
		return nil, fmt.Errorf("sqlitestore: take: %w", err)
	}
	return conn, nil
}

func (p *pool) put(conn *sqlite.Conn) { p.inner.Put(conn) }

func (p *pool) close() error {
	if err := p.inner.Close(); err != nil {
		log.Error().Err(err).Str("module", "store.sqlite").Str("path", p.path).Msg("pool close")
		return fmt.Errorf("sqlitestore: closing %s: %w", p.path, err)
	}
	log.Info().Str("module", "store.sqlite").Str("path", p.path).Msg("pool closed")
	return nil
}

func prepareConnection(conn *sqlite.Conn, onConnect func(*sqlite.Conn) error) error {
	// busy_timeout makes a second writer wait for the IMMEDIATE lock
	// instead of failing with SQLITE_BUSY; claims rely on that.
	pragmas := []string{
		"PRAGMA busy_timeout=5000",
		"PRAGMA journal_mode=WAL",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA foreign_keys=ON",
		"PRAGMA temp_store=MEMORY",
	}
	for _, pragma := range pragmas {
		if err := sqlitex.ExecuteTransient(conn, pragma, nil); err != nil {
			return fmt.Errorf("sqlitestore: %s: %w", pragma, err)
		}
	}
	if onConnect != nil {
		if err := onConnect(conn); err != nil {
			return fmt.Errorf("sqlitestore: OnConnect: %w", err)
		}
	}
	return nil
}
