package testutil

import (
	"database/sql"
	"os"
	"testing"

	"github.com/logsage/logsage/internal/config"
	"github.com/logsage/logsage/internal/db"
)

func OpenTestDB(t *testing.T) (*sql.DB, func()) {
	t.Helper()
	host := os.Getenv("TEST_DB_HOST")
	if host == "" {
		t.Skip("TEST_DB_HOST not set, skipping postgres test")
	}
	conn, err := db.Open(config.DatabaseConfig{
		Host:     host,
		Port:     5432,
		User:     "logsage",
		Password: "logsage_pass",
		DBName:   "logsage_test",
		SSLMode:  "disable",
	})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	if err := db.ApplyMigrations(conn); err != nil {
		t.Fatalf("migrations: %v", err)
	}
	CleanTables(t, conn)
	return conn, func() {
		_ = conn.Close()
	}
}

func CleanTables(t *testing.T, conn *sql.DB) {
	t.Helper()
	for _, table := range []string{
		"log_files", "log_entries", "chunks", "chunk_embeddings",
		"anomalies", "conversation_turns", "embedding_cache",
	} {
		if _, err := conn.Exec("TRUNCATE TABLE " + table); err != nil {
			t.Fatalf("truncate %s: %v", table, err)
		}
	}
}
