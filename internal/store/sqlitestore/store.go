// Package sqlitestore is the embedded ledger store. It keeps front and
// bar tickets plus the item catalog in one SQLite file and implements
// every transition as an IMMEDIATE transaction whose guards are the
// UPDATE predicates themselves.
package sqlitestore

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/dkeye/barflow/internal/core"
	"github.com/dkeye/barflow/internal/domain"
	"zombiezen.com/go/sqlite"
	"zombiezen.com/go/sqlite/sqlitex"
)

const schema = `
CREATE TABLE IF NOT EXISTS items (
	name        TEXT PRIMARY KEY,
	base_liquor TEXT NOT NULL DEFAULT '',
	price       REAL NOT NULL,
	liquor_cost REAL NOT NULL,
	other_cost  REAL NOT NULL,
	materials   TEXT NOT NULL DEFAULT '[]',
	note        TEXT NOT NULL DEFAULT '',
	updated_at  INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS front_tickets (
	id          INTEGER PRIMARY KEY AUTOINCREMENT,
	table_no    TEXT NOT NULL,
	item        TEXT NOT NULL,
	price       REAL NOT NULL,
	adjustment  REAL NOT NULL DEFAULT 0,
	total       REAL NOT NULL,
	liquor_cost REAL NOT NULL,
	other_cost  REAL NOT NULL,
	net_revenue REAL NOT NULL,
	served      INTEGER NOT NULL DEFAULT 0,
	note        TEXT NOT NULL DEFAULT '',
	orderer     TEXT NOT NULL,
	created_at  INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS bar_tickets (
	id         INTEGER PRIMARY KEY AUTOINCREMENT,
	front_id   INTEGER NOT NULL UNIQUE REFERENCES front_tickets(id),
	table_no   TEXT NOT NULL,
	item       TEXT NOT NULL,
	bartender  TEXT,
	served     INTEGER NOT NULL DEFAULT 0,
	note       TEXT NOT NULL DEFAULT '',
	orderer    TEXT NOT NULL,
	ordered_at INTEGER NOT NULL,
	served_at  INTEGER
);

CREATE INDEX IF NOT EXISTS idx_front_tickets_table ON front_tickets(table_no, served);
CREATE INDEX IF NOT EXISTS idx_bar_tickets_pending ON bar_tickets(served, ordered_at);
`

const (
	frontColumns = `id, table_no, item, price, adjustment, total, liquor_cost, other_cost,
		net_revenue, served, note, orderer, created_at`
	barColumns = `id, front_id, table_no, item, bartender, served, note, orderer, ordered_at, served_at`
)

type Config struct {
	Path     string
	PoolSize int
}

type Store struct {
	pool *pool
}

var _ core.Store = (*Store)(nil)

func Open(cfg Config) (*Store, error) {
	p, err := openPool(cfg.Path, cfg.PoolSize, func(conn *sqlite.Conn) error {
		return sqlitex.ExecuteScript(conn, schema, nil)
	})
	if err != nil {
		return nil, err
	}
	return &Store{pool: p}, nil
}

func (s *Store) Close() error { return s.pool.close() }

func (s *Store) LookupItem(ctx context.Context, name string) (item domain.Item, err error) {
	conn, err := s.pool.take(ctx)
	if err != nil {
		return domain.Item{}, domain.Aborted("take connection", err)
	}
	defer s.pool.put(conn)

	found := false
	var materials string
	err = sqlitex.Execute(conn,
		`SELECT name, base_liquor, price, liquor_cost, other_cost, materials, note FROM items WHERE name = ?`,
		&sqlitex.ExecOptions{
			Args: []any{name},
			ResultFunc: func(stmt *sqlite.Stmt) error {
				found = true
				item = domain.Item{
					Name:       stmt.ColumnText(0),
					BaseLiquor: stmt.ColumnText(1),
					Price:      stmt.ColumnFloat(2),
					LiquorCost: stmt.ColumnFloat(3),
					OtherCost:  stmt.ColumnFloat(4),
					Note:       stmt.ColumnText(6),
				}
				materials = stmt.ColumnText(5)
				return nil
			},
		})
	if err != nil {
		return domain.Item{}, fmt.Errorf("sqlitestore: lookup item: %w", err)
	}
	if !found {
		return domain.Item{}, domain.ErrItemNotFound
	}
	if materials != "" {
		if err := json.Unmarshal([]byte(materials), &item.Materials); err != nil {
			return domain.Item{}, fmt.Errorf("sqlitestore: item %q materials: %w", name, err)
		}
	}
	return item, nil
}

func (s *Store) UpsertItem(ctx context.Context, item domain.Item) error {
	conn, err := s.pool.take(ctx)
	if err != nil {
		return domain.Aborted("take connection", err)
	}
	defer s.pool.put(conn)

	materials, err := json.Marshal(item.Materials)
	if err != nil {
		return fmt.Errorf("sqlitestore: marshal materials: %w", err)
	}
	if item.Materials == nil {
		materials = []byte("[]")
	}
	err = sqlitex.Execute(conn, `
		INSERT INTO items (name, base_liquor, price, liquor_cost, other_cost, materials, note, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(name) DO UPDATE SET
			base_liquor = excluded.base_liquor,
			price       = excluded.price,
			liquor_cost = excluded.liquor_cost,
			other_cost  = excluded.other_cost,
			materials   = excluded.materials,
			note        = excluded.note,
			updated_at  = excluded.updated_at`,
		&sqlitex.ExecOptions{Args: []any{
			item.Name, item.BaseLiquor, item.Price, item.LiquorCost, item.OtherCost,
			string(materials), item.Note, time.Now().UnixNano(),
		}})
	if err != nil {
		return fmt.Errorf("sqlitestore: upsert item %q: %w", item.Name, err)
	}
	return nil
}

func (s *Store) CreatePair(ctx context.Context, front domain.FrontTicket, bar domain.BarTicket) (_ domain.FrontTicket, _ domain.BarTicket, err error) {
	conn, err := s.pool.take(ctx)
	if err != nil {
		return domain.FrontTicket{}, domain.BarTicket{}, domain.Aborted("take connection", err)
	}
	defer s.pool.put(conn)

	endTransaction, err := sqlitex.ImmediateTransaction(conn)
	if err != nil {
		return domain.FrontTicket{}, domain.BarTicket{}, domain.Aborted("begin", err)
	}
	defer endTransaction(&err)

	err = sqlitex.Execute(conn, `
		INSERT INTO front_tickets (table_no, item, price, adjustment, total, liquor_cost, other_cost,
			net_revenue, served, note, orderer, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, 0, ?, ?, ?)`,
		&sqlitex.ExecOptions{Args: []any{
			front.Table, front.Item, front.Price, front.Adjustment, front.Total, front.LiquorCost,
			front.OtherCost, front.NetRevenue, front.Note, front.Orderer, front.CreatedAt.UnixNano(),
		}})
	if err != nil {
		err = domain.Aborted("insert front ticket", err)
		return domain.FrontTicket{}, domain.BarTicket{}, err
	}
	front.ID = domain.TicketID(conn.LastInsertRowID())
	front.Served = false

	err = sqlitex.Execute(conn, `
		INSERT INTO bar_tickets (front_id, table_no, item, bartender, served, note, orderer, ordered_at, served_at)
		VALUES (?, ?, ?, NULL, 0, ?, ?, ?, NULL)`,
		&sqlitex.ExecOptions{Args: []any{
			int64(front.ID), bar.Table, bar.Item, bar.Note, bar.Orderer, bar.OrderedAt.UnixNano(),
		}})
	if err != nil {
		err = domain.Aborted("insert bar ticket", err)
		return domain.FrontTicket{}, domain.BarTicket{}, err
	}
	bar.ID = domain.TicketID(conn.LastInsertRowID())
	bar.FrontID = front.ID
	bar.Bartender = nil
	bar.Served = false
	bar.ServedAt = nil
	return front, bar, nil
}

func (s *Store) ClaimBar(ctx context.Context, frontID domain.TicketID, bartender string) (_ domain.BarTicket, err error) {
	conn, err := s.pool.take(ctx)
	if err != nil {
		return domain.BarTicket{}, domain.Aborted("take connection", err)
	}
	defer s.pool.put(conn)

	endTransaction, err := sqlitex.ImmediateTransaction(conn)
	if err != nil {
		return domain.BarTicket{}, domain.Aborted("begin", err)
	}
	defer endTransaction(&err)

	err = sqlitex.Execute(conn,
		`UPDATE bar_tickets SET bartender = ? WHERE front_id = ? AND bartender IS NULL AND served = 0`,
		&sqlitex.ExecOptions{Args: []any{bartender, int64(frontID)}})
	if err != nil {
		err = domain.Aborted("claim", err)
		return domain.BarTicket{}, err
	}
	if conn.Changes() == 0 {
		_, found, lookupErr := getBar(conn, frontID)
		switch {
		case lookupErr != nil:
			err = domain.Aborted("claim lookup", lookupErr)
		case !found:
			err = domain.ErrTicketNotFound
		default:
			err = domain.ErrAlreadyClaimedOrServed
		}
		return domain.BarTicket{}, err
	}

	bar, _, err := getBar(conn, frontID)
	if err != nil {
		err = domain.Aborted("claim read back", err)
		return domain.BarTicket{}, err
	}
	return bar, nil
}

func (s *Store) CompletePair(ctx context.Context, frontID domain.TicketID, at time.Time) (_ domain.FrontTicket, _ domain.BarTicket, err error) {
	conn, err := s.pool.take(ctx)
	if err != nil {
		return domain.FrontTicket{}, domain.BarTicket{}, domain.Aborted("take connection", err)
	}
	defer s.pool.put(conn)

	endTransaction, err := sqlitex.ImmediateTransaction(conn)
	if err != nil {
		return domain.FrontTicket{}, domain.BarTicket{}, domain.Aborted("begin", err)
	}
	defer endTransaction(&err)

	err = sqlitex.Execute(conn,
		`UPDATE bar_tickets SET served = 1, served_at = ? WHERE front_id = ? AND served = 0`,
		&sqlitex.ExecOptions{Args: []any{at.UnixNano(), int64(frontID)}})
	if err != nil {
		err = domain.Aborted("complete bar ticket", err)
		return domain.FrontTicket{}, domain.BarTicket{}, err
	}
	if conn.Changes() == 0 {
		_, found, lookupErr := getBar(conn, frontID)
		switch {
		case lookupErr != nil:
			err = domain.Aborted("complete lookup", lookupErr)
		case !found:
			err = domain.ErrTicketNotFound
		default:
			err = domain.ErrAlreadyServed
		}
		return domain.FrontTicket{}, domain.BarTicket{}, err
	}

	err = sqlitex.Execute(conn,
		`UPDATE front_tickets SET served = 1 WHERE id = ? AND served = 0`,
		&sqlitex.ExecOptions{Args: []any{int64(frontID)}})
	if err != nil {
		err = domain.Aborted("complete front ticket", err)
		return domain.FrontTicket{}, domain.BarTicket{}, err
	}
	if n := conn.Changes(); n != 1 {
		err = domain.Aborted("complete front ticket", fmt.Errorf("%d rows affected, want 1", n))
		return domain.FrontTicket{}, domain.BarTicket{}, err
	}

	front, bar, err := getPair(conn, frontID)
	if err != nil {
		err = domain.Aborted("complete read back", err)
		return domain.FrontTicket{}, domain.BarTicket{}, err
	}
	return front, bar, nil
}

func (s *Store) GetPair(ctx context.Context, frontID domain.TicketID) (domain.FrontTicket, domain.BarTicket, error) {
	conn, err := s.pool.take(ctx)
	if err != nil {
		return domain.FrontTicket{}, domain.BarTicket{}, domain.Aborted("take connection", err)
	}
	defer s.pool.put(conn)
	return getPair(conn, frontID)
}

func (s *Store) ListFront(ctx context.Context, f core.FrontFilter) ([]domain.FrontTicket, error) {
	conn, err := s.pool.take(ctx)
	if err != nil {
		return nil, domain.Aborted("take connection", err)
	}
	defer s.pool.put(conn)

	query := `SELECT ` + frontColumns + ` FROM front_tickets WHERE 1 = 1`
	var args []any
	if f.Table != "" {
		query += ` AND table_no = ?`
		args = append(args, f.Table)
	}
	switch f.Served {
	case core.ServedPending:
		query += ` AND served = 0`
	case core.ServedDone:
		query += ` AND served = 1`
	}
	query += ` ORDER BY served ASC, created_at DESC, id DESC`

	out := []domain.FrontTicket{}
	err = sqlitex.Execute(conn, query, &sqlitex.ExecOptions{
		Args: args,
		ResultFunc: func(stmt *sqlite.Stmt) error {
			out = append(out, scanFront(stmt))
			return nil
		},
	})
	if err != nil {
		return nil, fmt.Errorf("sqlitestore: list front: %w", err)
	}
	return out, nil
}

func (s *Store) ListBar(ctx context.Context, f core.BarFilter) ([]domain.BarTicket, error) {
	conn, err := s.pool.take(ctx)
	if err != nil {
		return nil, domain.Aborted("take connection", err)
	}
	defer s.pool.put(conn)

	query := `SELECT ` + barColumns + ` FROM bar_tickets`
	if f.PendingOnly {
		query += ` WHERE served = 0`
	}
	query += ` ORDER BY served ASC, ordered_at ASC, id ASC`

	out := []domain.BarTicket{}
	err = sqlitex.Execute(conn, query, &sqlitex.ExecOptions{
		ResultFunc: func(stmt *sqlite.Stmt) error {
			out = append(out, scanBar(stmt))
			return nil
		},
	})
	if err != nil {
		return nil, fmt.Errorf("sqlitestore: list bar: %w", err)
	}
	return out, nil
}

func getPair(conn *sqlite.Conn, frontID domain.TicketID) (domain.FrontTicket, domain.BarTicket, error) {
	var front domain.FrontTicket
	found := false
	err := sqlitex.Execute(conn, `SELECT `+frontColumns+` FROM front_tickets WHERE id = ?`,
		&sqlitex.ExecOptions{
			Args: []any{int64(frontID)},
			ResultFunc: func(stmt *sqlite.Stmt) error {
				found = true
				front = scanFront(stmt)
				return nil
			},
		})
	if err != nil {
		return domain.FrontTicket{}, domain.BarTicket{}, fmt.Errorf("sqlitestore: get front: %w", err)
	}
	if !found {
		return domain.FrontTicket{}, domain.BarTicket{}, domain.ErrTicketNotFound
	}
	bar, found, err := getBar(conn, frontID)
	if err != nil {
		return domain.FrontTicket{}, domain.BarTicket{}, err
	}
	if !found {
		return domain.FrontTicket{}, domain.BarTicket{}, fmt.Errorf("sqlitestore: front ticket %d has no bar ticket: %w", frontID, domain.ErrTicketNotFound)
	}
	return front, bar, nil
}

func getBar(conn *sqlite.Conn, frontID domain.TicketID) (domain.BarTicket, bool, error) {
	var bar domain.BarTicket
	found := false
	err := sqlitex.Execute(conn, `SELECT `+barColumns+` FROM bar_tickets WHERE front_id = ?`,
		&sqlitex.ExecOptions{
			Args: []any{int64(frontID)},
			ResultFunc: func(stmt *sqlite.Stmt) error {
				found = true
				bar = scanBar(stmt)
				return nil
			},
		})
	if err != nil {
		return domain.BarTicket{}, false, fmt.Errorf("sqlitestore: get bar: %w", err)
	}
	return bar, found, nil
}

func scanFront(stmt *sqlite.Stmt) domain.FrontTicket {
	return domain.FrontTicket{
		ID:         domain.TicketID(stmt.ColumnInt64(0)),
		Table:      stmt.ColumnText(1),
		Item:       stmt.ColumnText(2),
		Price:      stmt.ColumnFloat(3),
		Adjustment: stmt.ColumnFloat(4),
		Total:      stmt.ColumnFloat(5),
		LiquorCost: stmt.ColumnFloat(6),
		OtherCost:  stmt.ColumnFloat(7),
		NetRevenue: stmt.ColumnFloat(8),
		Served:     stmt.ColumnInt64(9) != 0,
		Note:       stmt.ColumnText(10),
		Orderer:    stmt.ColumnText(11),
		CreatedAt:  time.Unix(0, stmt.ColumnInt64(12)).UTC(),
	}
}

func scanBar(stmt *sqlite.Stmt) domain.BarTicket {
	bar := domain.BarTicket{
		ID:        domain.TicketID(stmt.ColumnInt64(0)),
		FrontID:   domain.TicketID(stmt.ColumnInt64(1)),
		Table:     stmt.ColumnText(2),
		Item:      stmt.ColumnText(3),
		Served:    stmt.ColumnInt64(5) != 0,
		Note:      stmt.ColumnText(6),
		Orderer:   stmt.ColumnText(7),
		OrderedAt: time.Unix(0, stmt.ColumnInt64(8)).UTC(),
	}
	if stmt.ColumnType(4) != sqlite.TypeNull {
		who := stmt.ColumnText(4)
		bar.Bartender = &who
	}
	if stmt.ColumnType(9) != sqlite.TypeNull {
		at := time.Unix(0, stmt.ColumnInt64(9)).UTC()
		bar.ServedAt = &at
	}
	return bar
}
