// Package audit persists blocked messages so that limit violations can be
// reviewed after the fact.
package audit

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"github.com/Servo7/robot-comm/internal/domain"
	"github.com/Servo7/robot-comm/internal/ports"
)

const DefaultTable = "blocked_messages"

type Config struct {
	ConnString string `yaml:"conn_string"`
	Table      string `yaml:"table"`
}

func (c *Config) ApplyDefaults() {
	if c.Table == "" {
		c.Table = DefaultTable
	}
}

// Enabled reports whether an audit database is configured.
func (c Config) Enabled() bool { return c.ConnString != "" }

// PostgresAudit writes one row per blocked message, stamped with the id of the
// master instance that blocked it.
type PostgresAudit struct {
	db       *sql.DB
	table    string
	masterID uuid.UUID
}

// Open connects with the lib/pq driver and verifies the connection.
func Open(ctx context.Context, connString string) (*sql.DB, error) {
	db, err := sql.Open("postgres", connString)
	if err != nil {
		return nil, err
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("audit ping: %w", err)
	}
	return db, nil
}

func NewPostgresAudit(db *sql.DB, table string, masterID uuid.UUID) (*PostgresAudit, error) {
	if db == nil {
		return nil, errors.New("audit: db is required")
	}
	if table == "" {
		table = DefaultTable
	}
	if masterID == uuid.Nil {
		masterID = uuid.New()
	}
	return &PostgresAudit{db: db, table: table, masterID: masterID}, nil
}

func (a *PostgresAudit) MasterID() uuid.UUID { return a.masterID }

// EnsureSchema creates the audit table when it does not exist.
func (a *PostgresAudit) EnsureSchema(ctx context.Context) error {
	_, err := a.db.ExecContext(ctx, "CREATE TABLE IF NOT EXISTS "+pq.QuoteIdentifier(a.table)+` (
	master_id   UUID             NOT NULL,
	received_at TIMESTAMPTZ      NOT NULL,
	source_ts   DOUBLE PRECISION NOT NULL,
	source      JSONB            NOT NULL,
	transformed JSONB            NOT NULL,
	violations  TEXT[]           NOT NULL
)`)
	return err
}

func (a *PostgresAudit) RecordBlocked(events []ports.BlockedEvent) error {
	if len(events) == 0 {
		return nil
	}

	var b strings.Builder
	b.WriteString("INSERT INTO ")
	b.WriteString(pq.QuoteIdentifier(a.table))
	b.WriteString(" (master_id, received_at, source_ts, source, transformed, violations) VALUES ")

	args := make([]any, 0, len(events)*6)
	for i, ev := range events {
		if i > 0 {
			b.WriteString(",")
		}
		fmt.Fprintf(&b, "($%d,$%d,$%d,$%d,$%d,$%d)",
			len(args)+1, len(args)+2, len(args)+3, len(args)+4, len(args)+5, len(args)+6)

		src, err := json.Marshal(ev.Source.ToRecord())
		if err != nil {
			return fmt.Errorf("marshal source: %w", err)
		}
		out, err := json.Marshal(ev.Transformed.ToRecord())
		if err != nil {
			return fmt.Errorf("marshal transformed: %w", err)
		}

		args = append(args,
			a.masterID.String(),
			receivedAt(ev),
			ev.Source.Timestamp,
			src,
			out,
			pq.Array(ev.Violations),
		)
	}

	_, err := a.db.Exec(b.String(), args...)
	return err
}

func receivedAt(ev ports.BlockedEvent) time.Time {
	if ev.ReceivedAt == 0 {
		return time.Now().UTC()
	}
	return domain.JointState{Timestamp: ev.ReceivedAt}.Time().UTC()
}

var _ ports.AuditLog = (*PostgresAudit)(nil)
