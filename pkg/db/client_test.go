package db

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/0x360x36/miauhome.cl/pkg/config"
	"github.com/0x360x36/miauhome.cl/pkg/logger"
)

type testModel struct {
	ID   int
	Name string
}

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	conn, err := gorm.Open(sqlite.Open("file::memory:"), &gorm.Config{
		SkipDefaultTransaction: true,
	})
	if err != nil {
		t.Fatalf("failed to open sqlite: %v", err)
	}
	sqlDB, err := conn.DB()
	if err != nil {
		t.Fatalf("sql handle: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })
	if err := conn.AutoMigrate(&testModel{}); err != nil {
		t.Fatalf("failed to migrate sqlite: %v", err)
	}
	return conn
}

func openLogged(t *testing.T, buf *bytes.Buffer, slow time.Duration) *gorm.DB {
	t.Helper()
	logg := logger.New(logger.Options{ServiceName: "test", Output: buf, Format: logger.FormatJSON})
	conn := newTestDB(t)
	return conn.Session(&gorm.Session{Logger: newQueryLogger(logg, slow)})
}

func TestQueryLoggerSkipsMissingRows(t *testing.T) {
	buf := &bytes.Buffer{}
	conn := openLogged(t, buf, 0)

	var row testModel
	err := conn.First(&row, "name = ?", "nobody").Error
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		t.Fatalf("expected record not found, got %v", err)
	}
	if buf.Len() != 0 {
		t.Fatalf("missing rows must not be logged, got %s", buf.String())
	}
}

func TestQueryLoggerReportsFailures(t *testing.T) {
	buf := &bytes.Buffer{}
	conn := openLogged(t, buf, 0)

	if err := conn.Exec("SELECT * FROM no_such_table").Error; err == nil {
		t.Fatal("expected sql error")
	}
	if !strings.Contains(buf.String(), "sql statement failed") || !strings.Contains(buf.String(), "no_such_table") {
		t.Fatalf("expected failure entry with statement, got %s", buf.String())
	}
}

func TestQueryLoggerReportsSlowStatements(t *testing.T) {
	buf := &bytes.Buffer{}
	conn := openLogged(t, buf, time.Nanosecond)

	if err := conn.Create(&testModel{Name: "slow"}).Error; err != nil {
		t.Fatalf("insert: %v", err)
	}
	if !strings.Contains(buf.String(), "slow sql statement") {
		t.Fatalf("expected slow statement entry, got %s", buf.String())
	}

	buf.Reset()
	silent := conn.Session(&gorm.Session{Logger: conn.Logger.LogMode(gormlogger.Silent)})
	if err := silent.Create(&testModel{Name: "quiet"}).Error; err != nil {
		t.Fatalf("insert: %v", err)
	}
	if buf.Len() != 0 {
		t.Fatalf("silent mode should not log, got %s", buf.String())
	}
}

func TestPing(t *testing.T) {
	client := NewFromGorm(newTestDB(t), config.DBDriverSQLite)
	if err := client.Ping(context.Background()); err != nil {
		t.Fatalf("unexpected ping error: %v", err)
	}
	if client.Driver() != config.DBDriverSQLite {
		t.Fatalf("unexpected driver %s", client.Driver())
	}
}

func TestNewOpensSQLite(t *testing.T) {
	client, err := New(context.Background(), config.DBConfig{DSN: "file::memory:", Driver: config.DBDriverSQLite}, nil)
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	defer client.Close()
	if err := client.Ping(context.Background()); err != nil {
		t.Fatalf("ping: %v", err)
	}
}

func TestDialectorRejectsUnknownDriver(t *testing.T) {
	if _, err := dialectorFor(config.DBConfig{DSN: "x", Driver: "mysql"}); err == nil {
		t.Fatalf("expected unsupported driver error")
	}
	if _, err := New(context.Background(), config.DBConfig{}, nil); err == nil {
		t.Fatalf("expected missing DSN error")
	}
}
