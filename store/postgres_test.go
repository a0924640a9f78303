package store

import (
	"regexp"
	"strings"
	"testing"
)

func TestPostgresSchemaAmountIsUnbounded(t *testing.T) {
	col := regexp.MustCompile(`(?m)^\s*amount\s+(\S+)`).FindStringSubmatch(schema)
	if col == nil || col[1] != "NUMERIC" {
		t.Fatalf("amount column = %v, want plain NUMERIC", col)
	}
	if strings.Contains(schema, "NUMERIC(") {
		t.Fatal("schema still fixes amount precision")
	}
	if !strings.Contains(schema, "ALTER COLUMN amount TYPE NUMERIC") {
		t.Fatal("existing tables are not widened")
	}
}

func TestPostgresSchemaTriggerIsReplayable(t *testing.T) {
	if strings.Contains(schema, "CREATE OR REPLACE TRIGGER") {
		t.Fatal("CREATE OR REPLACE TRIGGER needs PostgreSQL 14")
	}
	drop := strings.Index(schema, "DROP TRIGGER IF EXISTS transactions_notify ON transactions;")
	create := strings.Index(schema, "CREATE TRIGGER transactions_notify")
	if drop < 0 || create < drop {
		t.Fatalf("trigger must be dropped before it is created (drop=%d create=%d)", drop, create)
	}
}
