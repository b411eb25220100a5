// Package sqlstore keeps the ledger in a networked SQL server through
// database/sql. Postgres goes through the pgx stdlib driver and MySQL
// through go-sql-driver. Guards are the UPDATE predicates; the row count
// decides the outcome.
package sqlstore

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/dkeye/barflow/internal/core"
	"github.com/dkeye/barflow/internal/domain"
	_ "github.com/go-sql-driver/mysql"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/rs/zerolog/log"
)

const (
	frontColumns = `id, table_no, item, price, adjustment, total, liquor_cost, other_cost,
		net_revenue, served, note, orderer, created_at`
	barColumns = `id, front_id, table_no, item, bartender, served, note, orderer, ordered_at, served_at`
)

type Config struct {
	Dialect      Dialect
	DSN          string
	MaxOpenConns int
}

type Store struct {
	db      *sql.DB
	dialect Dialect
}

var _ core.Store = (*Store)(nil)

// Open connects with retries, then creates the schema if missing.
func Open(ctx context.Context, cfg Config) (*Store, error) {
	if cfg.DSN == "" {
		return nil, errors.New("sqlstore: dsn is required")
	}
	db, err := connect(ctx, cfg)
	if err != nil {
		return nil, err
	}
	s := &Store{db: db, dialect: cfg.Dialect}
	if err := s.Migrate(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

func connect(ctx context.Context, cfg Config) (*sql.DB, error) {
	const (
		maxRetries = 10
		retryDelay = 2 * time.Second
		pingTTL    = 5 * time.Second
	)
	maxOpen := cfg.MaxOpenConns
	if maxOpen <= 0 {
		maxOpen = 25
	}

	var err error
	for i := 1; i <= maxRetries; i++ {
		var db *sql.DB
		db, err = sql.Open(cfg.Dialect.driverName(), cfg.DSN)
		if err == nil {
			db.SetMaxOpenConns(maxOpen)
			db.SetMaxIdleConns(maxOpen)
			db.SetConnMaxLifetime(30 * time.Minute)

			pctx, cancel := context.WithTimeout(ctx, pingTTL)
			err = db.PingContext(pctx)
			cancel()
			if err == nil {
				log.Info().Str("module", "store.sql").Str("dialect", string(cfg.Dialect)).Msg("connected")
				return db, nil
			}
			_ = db.Close()
		}
		log.Warn().Err(err).Str("module", "store.sql").Int("attempt", i).Msg("database not ready")

		select {
		case <-time.After(retryDelay):
		case <-ctx.Done():
			return nil, fmt.Errorf("sqlstore: connect canceled: %w", ctx.Err())
		}
	}
	return nil, fmt.Errorf("sqlstore: database unreachable after %d attempts: %w", maxRetries, err)
}

func (s *Store) Migrate(ctx context.Context) error {
	for _, stmt := range s.dialect.schema() {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("sqlstore: migrate: %w", err)
		}
	}
	return nil
}

func (s *Store) Close() error { return s.db.Close() }

func (s *Store) q(query string) string { return s.dialect.rebind(query) }

func (s *Store) LookupItem(ctx context.Context, name string) (domain.Item, error) {
	var (
		item      domain.Item
		materials string
	)
	err := s.db.QueryRowContext(ctx, s.q(
		`SELECT name, base_liquor, price, liquor_cost, other_cost, materials, note FROM items WHERE name = ?`), name).
		Scan(&item.Name, &item.BaseLiquor, &item.Price, &item.LiquorCost, &item.OtherCost, &materials, &item.Note)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Item{}, domain.ErrItemNotFound
	}
	if err != nil {
		return domain.Item{}, fmt.Errorf("sqlstore: lookup item: %w", err)
	}
	if materials != "" {
		if err := json.Unmarshal([]byte(materials), &item.Materials); err != nil {
			return domain.Item{}, fmt.Errorf("sqlstore: item %q materials: %w", name, err)
		}
	}
	return item, nil
}

func (s *Store) UpsertItem(ctx context.Context, item domain.Item) error {
	materials := []byte("[]")
	if item.Materials != nil {
		var err error
		if materials, err = json.Marshal(item.Materials); err != nil {
			return fmt.Errorf("sqlstore: marshal materials: %w", err)
		}
	}
	_, err := s.db.ExecContext(ctx, s.q(s.dialect.upsertItem()),
		item.Name, item.BaseLiquor, item.Price, item.LiquorCost, item.OtherCost,
		string(materials), item.Note, time.Now().UnixNano())
	if err != nil {
		return fmt.Errorf("sqlstore: upsert item %q: %w", item.Name, err)
	}
	return nil
}

func (s *Store) CreatePair(ctx context.Context, front domain.FrontTicket, bar domain.BarTicket) (domain.FrontTicket, domain.BarTicket, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return domain.FrontTicket{}, domain.BarTicket{}, domain.Aborted("begin", err)
	}
	defer func() { _ = tx.Rollback() }()

	frontID, err := s.insert(ctx, tx, `
		INSERT INTO front_tickets (table_no, item, price, adjustment, total, liquor_cost, other_cost,
			net_revenue, served, note, orderer, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, FALSE, ?, ?, ?)`,
		front.Table, front.Item, front.Price, front.Adjustment, front.Total, front.LiquorCost,
		front.OtherCost, front.NetRevenue, front.Note, front.Orderer, front.CreatedAt.UnixNano())
	if err != nil {
		return domain.FrontTicket{}, domain.BarTicket{}, domain.Aborted("insert front ticket", err)
	}

	barID, err := s.insert(ctx, tx, `
		INSERT INTO bar_tickets (front_id, table_no, item, bartender, served, note, orderer, ordered_at, served_at)
		VALUES (?, ?, ?, NULL, FALSE, ?, ?, ?, NULL)`,
		frontID, bar.Table, bar.Item, bar.Note, bar.Orderer, bar.OrderedAt.UnixNano())
	if err != nil {
		return domain.FrontTicket{}, domain.BarTicket{}, domain.Aborted("insert bar ticket", err)
	}

	if err := tx.Commit(); err != nil {
		return domain.FrontTicket{}, domain.BarTicket{}, domain.Aborted("commit", err)
	}

	front.ID = domain.TicketID(frontID)
	front.Served = false
	bar.ID = domain.TicketID(barID)
	bar.FrontID = front.ID
	bar.Bartender = nil
	bar.Served = false
	bar.ServedAt = nil
	return front, bar, nil
}

// insert returns the new row id. Postgres has no LastInsertId, so it
// uses RETURNING.
func (s *Store) insert(ctx context.Context, tx *sql.Tx, query string, args ...any) (int64, error) {
	if s.dialect == Postgres {
		var id int64
		err := tx.QueryRowContext(ctx, s.q(query+` RETURNING id`), args...).Scan(&id)
		return id, err
	}
	res, err := tx.ExecContext(ctx, s.q(query), args...)
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}

func (s *Store) ClaimBar(ctx context.Context, frontID domain.TicketID, bartender string) (domain.BarTicket, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return domain.BarTicket{}, domain.Aborted("begin", err)
	}
	defer func() { _ = tx.Rollback() }()

	res, err := tx.ExecContext(ctx, s.q(
		`UPDATE bar_tickets SET bartender = ? WHERE front_id = ? AND bartender IS NULL AND served = FALSE`),
		bartender, int64(frontID))
	if err != nil {
		return domain.BarTicket{}, domain.Aborted("claim", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return domain.BarTicket{}, domain.Aborted("claim", err)
	}
	if n == 0 {
		return domain.BarTicket{}, s.missOrConflict(ctx, tx, frontID, domain.ErrAlreadyClaimedOrServed)
	}

	bar, err := s.getBar(ctx, tx, frontID)
	if err != nil {
		return domain.BarTicket{}, domain.Aborted("claim read back", err)
	}
	if err := tx.Commit(); err != nil {
		return domain.BarTicket{}, domain.Aborted("commit", err)
	}
	return bar, nil
}

func (s *Store) CompletePair(ctx context.Context, frontID domain.TicketID, at time.Time) (domain.FrontTicket, domain.BarTicket, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return domain.FrontTicket{}, domain.BarTicket{}, domain.Aborted("begin", err)
	}
	defer func() { _ = tx.Rollback() }()

	res, err := tx.ExecContext(ctx, s.q(
		`UPDATE bar_tickets SET served = TRUE, served_at = ? WHERE front_id = ? AND served = FALSE`),
		at.UnixNano(), int64(frontID))
	if err != nil {
		return domain.FrontTicket{}, domain.BarTicket{}, domain.Aborted("complete bar ticket", err)
	}
	if n, err := res.RowsAffected(); err != nil {
		return domain.FrontTicket{}, domain.BarTicket{}, domain.Aborted("complete bar ticket", err)
	} else if n == 0 {
		return domain.FrontTicket{}, domain.BarTicket{}, s.missOrConflict(ctx, tx, frontID, domain.ErrAlreadyServed)
	}

	res, err = tx.ExecContext(ctx, s.q(
		`UPDATE front_tickets SET served = TRUE WHERE id = ? AND served = FALSE`), int64(frontID))
	if err != nil {
		return domain.FrontTicket{}, domain.BarTicket{}, domain.Aborted("complete front ticket", err)
	}
	if n, err := res.RowsAffected(); err != nil || n != 1 {
		if err == nil {
			err = fmt.Errorf("%d rows affected, want 1", n)
		}
		return domain.FrontTicket{}, domain.BarTicket{}, domain.Aborted("complete front ticket", err)
	}

	front, bar, err := s.getPair(ctx, tx, frontID)
	if err != nil {
		return domain.FrontTicket{}, domain.BarTicket{}, domain.Aborted("complete read back", err)
	}
	if err := tx.Commit(); err != nil {
		return domain.FrontTicket{}, domain.BarTicket{}, domain.Aborted("commit", err)
	}
	return front, bar, nil
}

func (s *Store) missOrConflict(ctx context.Context, tx *sql.Tx, frontID domain.TicketID, conflict error) error {
	var one int
	err := tx.QueryRowContext(ctx, s.q(`SELECT 1 FROM bar_tickets WHERE front_id = ?`), int64(frontID)).Scan(&one)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		return domain.ErrTicketNotFound
	case err != nil:
		return domain.Aborted("lookup", err)
	}
	return conflict
}

func (s *Store) GetPair(ctx context.Context, frontID domain.TicketID) (domain.FrontTicket, domain.BarTicket, error) {
	return s.getPair(ctx, s.db, frontID)
}

type queryer interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

func (s *Store) getPair(ctx context.Context, db queryer, frontID domain.TicketID) (domain.FrontTicket, domain.BarTicket, error) {
	front, err := scanFront(db.QueryRowContext(ctx, s.q(`SELECT `+frontColumns+` FROM front_tickets WHERE id = ?`), int64(frontID)))
	if errors.Is(err, sql.ErrNoRows) {
		return domain.FrontTicket{}, domain.BarTicket{}, domain.ErrTicketNotFound
	}
	if err != nil {
		return domain.FrontTicket{}, domain.BarTicket{}, fmt.Errorf("sqlstore: get front: %w", err)
	}
	bar, err := s.getBar(ctx, db, frontID)
	if err != nil {
		return domain.FrontTicket{}, domain.BarTicket{}, err
	}
	return front, bar, nil
}

func (s *Store) getBar(ctx context.Context, db queryer, frontID domain.TicketID) (domain.BarTicket, error) {
	bar, err := scanBar(db.QueryRowContext(ctx, s.q(`SELECT `+barColumns+` FROM bar_tickets WHERE front_id = ?`), int64(frontID)))
	if errors.Is(err, sql.ErrNoRows) {
		return domain.BarTicket{}, domain.ErrTicketNotFound
	}
	if err != nil {
		return domain.BarTicket{}, fmt.Errorf("sqlstore: get bar: %w", err)
	}
	return bar, nil
}

func (s *Store) ListFront(ctx context.Context, f core.FrontFilter) ([]domain.FrontTicket, error) {
	query := `SELECT ` + frontColumns + ` FROM front_tickets WHERE 1 = 1`
	var args []any
	if f.Table != "" {
		query += ` AND table_no = ?`
		args = append(args, f.Table)
	}
	switch f.Served {
	case core.ServedPending:
		query += ` AND served = FALSE`
	case core.ServedDone:
		query += ` AND served = TRUE`
	}
	query += ` ORDER BY served ASC, created_at DESC, id DESC`

	rows, err := s.db.QueryContext(ctx, s.q(query), args...)
	if err != nil {
		return nil, fmt.Errorf("sqlstore: list front: %w", err)
	}
	defer rows.Close()

	out := []domain.FrontTicket{}
	for rows.Next() {
		t, err := scanFront(rows)
		if err != nil {
			return nil, fmt.Errorf("sqlstore: list front: %w", err)
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

func (s *Store) ListBar(ctx context.Context, f core.BarFilter) ([]domain.BarTicket, error) {
	query := `SELECT ` + barColumns + ` FROM bar_tickets`
	if f.PendingOnly {
		query += ` WHERE served = FALSE`
	}
	query += ` ORDER BY served ASC, ordered_at ASC, id ASC`

	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("sqlstore: list bar: %w", err)
	}
	defer rows.Close()

	out := []domain.BarTicket{}
	for rows.Next() {
		t, err := scanBar(rows)
		if err != nil {
			return nil, fmt.Errorf("sqlstore: list bar: %w", err)
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanFront(row scanner) (domain.FrontTicket, error) {
	var (
		t       domain.FrontTicket
		id      int64
		created int64
	)
	err := row.Scan(&id, &t.Table, &t.Item, &t.Price, &t.Adjustment, &t.Total, &t.LiquorCost,
		&t.OtherCost, &t.NetRevenue, &t.Served, &t.Note, &t.Orderer, &created)
	if err != nil {
		return domain.FrontTicket{}, err
	}
	t.ID = domain.TicketID(id)
	t.CreatedAt = time.Unix(0, created).UTC()
	return t, nil
}

func scanBar(row scanner) (domain.BarTicket, error) {
	var (
		t         domain.BarTicket
		id, fid   int64
		bartender sql.NullString
		ordered   int64
		servedAt  sql.NullInt64
	)
	err := row.Scan(&id, &fid, &t.Table, &t.Item, &bartender, &t.Served, &t.Note, &t.Orderer, &ordered, &servedAt)
	if err != nil {
		return domain.BarTicket{}, err
	}
	t.ID = domain.TicketID(id)
	t.FrontID = domain.TicketID(fid)
	t.OrderedAt = time.Unix(0, ordered).UTC()
	if bartender.Valid {
		who := bartender.String
		t.Bartender = &who
	}
	if servedAt.Valid {
		at := time.Unix(0, servedAt.Int64).UTC()
		t.ServedAt = &at
	}
	return t, nil
}
