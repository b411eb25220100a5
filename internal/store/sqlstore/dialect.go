package sqlstore

import (
	"fmt"
	"strconv"
	"strings"
)

type Dialect string

const (
	Postgres Dialect = "postgres"
	MySQL    Dialect = "mysql"
)

func ParseDialect(s string) (Dialect, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "postgres", "postgresql", "pgx":
		return Postgres, nil
	case "mysql", "mariadb":
		return MySQL, nil
	}
	return "", fmt.Errorf("sqlstore: unsupported dialect %q", s)
}

func (d Dialect) driverName() string {
	if d == Postgres {
		return "pgx"
	}
	return "mysql"
}

// rebind rewrites ? placeholders to $n for postgres. Queries here never
// carry a literal question mark.
func (d Dialect) rebind(query string) string {
	if d != Postgres {
		return query
	}
	var b strings.Builder
	b.Grow(len(query) + 8)
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

func (d Dialect) schema() []string {
	if d == Postgres {
		return []string{
			`CREATE TABLE IF NOT EXISTS items (
				name        TEXT PRIMARY KEY,
				base_liquor TEXT NOT NULL DEFAULT '',
				price       DOUBLE PRECISION NOT NULL,
				liquor_cost DOUBLE PRECISION NOT NULL,
				other_cost  DOUBLE PRECISION NOT NULL,
				materials   TEXT NOT NULL DEFAULT '[]',
				note        TEXT NOT NULL DEFAULT '',
				updated_at  BIGINT NOT NULL
			)`,
			`CREATE TABLE IF NOT EXISTS front_tickets (
				id          BIGSERIAL PRIMARY KEY,
				table_no    TEXT NOT NULL,
				item        TEXT NOT NULL,
				price       DOUBLE PRECISION NOT NULL,
				adjustment  DOUBLE PRECISION NOT NULL DEFAULT 0,
				total       DOUBLE PRECISION NOT NULL,
				liquor_cost DOUBLE PRECISION NOT NULL,
				other_cost  DOUBLE PRECISION NOT NULL,
				net_revenue DOUBLE PRECISION NOT NULL,
				served      BOOLEAN NOT NULL DEFAULT FALSE,
				note        TEXT NOT NULL DEFAULT '',
				orderer     TEXT NOT NULL,
				created_at  BIGINT NOT NULL
			)`,
			`CREATE TABLE IF NOT EXISTS bar_tickets (
				id         BIGSERIAL PRIMARY KEY,
				front_id   BIGINT NOT NULL UNIQUE REFERENCES front_tickets(id),
				table_no   TEXT NOT NULL,
				item       TEXT NOT NULL,
				bartender  TEXT,
				served     BOOLEAN NOT NULL DEFAULT FALSE,
				note       TEXT NOT NULL DEFAULT '',
				orderer    TEXT NOT NULL,
				ordered_at BIGINT NOT NULL,
				served_at  BIGINT
			)`,
			`CREATE INDEX IF NOT EXISTS idx_bar_tickets_pending ON bar_tickets(served, ordered_at)`,
		}
	}
	return []string{
		`CREATE TABLE IF NOT EXISTS items (
			name        VARCHAR(128) PRIMARY KEY,
			base_liquor VARCHAR(128) NOT NULL DEFAULT '',
			price       DOUBLE NOT NULL,
			liquor_cost DOUBLE NOT NULL,
			other_cost  DOUBLE NOT NULL,
			materials   TEXT NOT NULL,
			note        TEXT NOT NULL,
			updated_at  BIGINT NOT NULL
		) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,
		`CREATE TABLE IF NOT EXISTS front_tickets (
			id          BIGINT AUTO_INCREMENT PRIMARY KEY,
			table_no    VARCHAR(64) NOT NULL,
			item        VARCHAR(128) NOT NULL,
			price       DOUBLE NOT NULL,
			adjustment  DOUBLE NOT NULL DEFAULT 0,
			total       DOUBLE NOT NULL,
			liquor_cost DOUBLE NOT NULL,
			other_cost  DOUBLE NOT NULL,
			net_revenue DOUBLE NOT NULL,
			served      BOOLEAN NOT NULL DEFAULT FALSE,
			note        TEXT NOT NULL,
			orderer     VARCHAR(64) NOT NULL,
			created_at  BIGINT NOT NULL
		) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,
		`CREATE TABLE IF NOT EXISTS bar_tickets (
			id         BIGINT AUTO_INCREMENT PRIMARY KEY,
			front_id   BIGINT NOT NULL UNIQUE,
			table_no   VARCHAR(64) NOT NULL,
			item       VARCHAR(128) NOT NULL,
			bartender  VARCHAR(64) NULL,
			served     BOOLEAN NOT NULL DEFAULT FALSE,
			note       TEXT NOT NULL,
			orderer    VARCHAR(64) NOT NULL,
			ordered_at BIGINT NOT NULL,
			served_at  BIGINT NULL,
			INDEX idx_bar_tickets_pending (served, ordered_at),
			FOREIGN KEY (front_id) REFERENCES front_tickets(id)
		) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,
	}
}

func (d Dialect) upsertItem() string {
	if d == Postgres {
		return `INSERT INTO items (name, base_liquor, price, liquor_cost, other_cost, materials, note, updated_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?)
			ON CONFLICT (name) DO UPDATE SET
				base_liquor = EXCLUDED.base_liquor,
				price       = EXCLUDED.price,
				liquor_cost = EXCLUDED.liquor_cost,
				other_cost  = EXCLUDED.other_cost,
				materials   = EXCLUDED.materials,
				note        = EXCLUDED.note,
				updated_at  = EXCLUDED.updated_at`
	}
	return `INSERT INTO items (name, base_liquor, price, liquor_cost, other_cost, materials, note, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON DUPLICATE KEY UPDATE
			base_liquor = VALUES(base_liquor),
			price       = VALUES(price),
			liquor_cost = VALUES(liquor_cost),
			other_cost  = VALUES(other_cost),
			materials   = VALUES(materials),
			note        = VALUES(note),
			updated_at  = VALUES(updated_at)`
}
