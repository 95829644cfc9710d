package audit

import (
	"context"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"

	"github.com/Servo7/robot-comm/internal/domain"
	"github.com/Servo7/robot-comm/internal/ports"
)

var testMaster = uuid.MustParse("7d444840-9dc0-11d1-b245-5ffdce74fad2")

func TestRecordBlocked(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock: %v", err)
	}
	defer db.Close()

	a, err := NewPostgresAudit(db, "blocked_messages", testMaster)
	if err != nil {
		t.Fatalf("new audit: %v", err)
	}

	ev := ports.BlockedEvent{
		Source:      domain.JointState{Joints: [domain.NumJoints]float64{0, 0.8}, Timestamp: 100},
		Transformed: domain.JointState{Joints: [domain.NumJoints]float64{0, 0.8}, Timestamp: 100},
		Violations:  []string{"joint_1: value 0.800 outside limits [-0.500, 0.500]"},
		ReceivedAt:  101.5,
	}

	expectedQuery := regexp.QuoteMeta(`INSERT INTO "blocked_messages" (master_id, received_at, source_ts, source, transformed, violations) VALUES ($1,$2,$3,$4,$5,$6)`)
	mock.ExpectExec(expectedQuery).
		WithArgs(testMaster.String(), time.Unix(101, 500_000_000).UTC(), 100.0, sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(1, 1))

	if err := a.RecordBlocked([]ports.BlockedEvent{ev}); err != nil {
		t.Fatalf("record blocked: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestRecordBlockedMultiRowPlaceholders(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock: %v", err)
	}
	defer db.Close()

	a, _ := NewPostgresAudit(db, "audit", testMaster)
	mock.ExpectExec(regexp.QuoteMeta(`VALUES ($1,$2,$3,$4,$5,$6),($7,$8,$9,$10,$11,$12)`)).
		WillReturnResult(sqlmock.NewResult(0, 2))

	events := []ports.BlockedEvent{{ReceivedAt: 1}, {ReceivedAt: 2}}
	if err := a.RecordBlocked(events); err != nil {
		t.Fatalf("record blocked: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestRecordBlockedNoEvents(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock: %v", err)
	}
	defer db.Close()

	a, _ := NewPostgresAudit(db, "", testMaster)
	if err := a.RecordBlocked(nil); err != nil {
		t.Fatalf("expected nil error for empty batch, got %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestEnsureSchema(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock: %v", err)
	}
	defer db.Close()

	a, _ := NewPostgresAudit(db, "", testMaster)
	mock.ExpectExec(regexp.QuoteMeta(`CREATE TABLE IF NOT EXISTS "blocked_messages"`)).
		WillReturnResult(sqlmock.NewResult(0, 0))

	if err := a.EnsureSchema(context.Background()); err != nil {
		t.Fatalf("ensure schema: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestNewPostgresAuditDefaults(t *testing.T) {
	if _, err := NewPostgresAudit(nil, "", testMaster); err == nil {
		t.Fatalf("expected error without db")
	}

	db, _, _ := sqlmock.New()
	defer db.Close()

	a, err := NewPostgresAudit(db, "", uuid.Nil)
	if err != nil {
		t.Fatalf("new audit: %v", err)
	}
	if a.MasterID() == uuid.Nil {
		t.Fatalf("expected a generated master id")
	}
	if a.table != DefaultTable {
		t.Fatalf("expected default table, got %s", a.table)
	}

	cfg := Config{}
	cfg.ApplyDefaults()
	if cfg.Table != DefaultTable || cfg.Enabled() {
		t.Fatalf("unexpected defaults: %+v", cfg)
	}
}
