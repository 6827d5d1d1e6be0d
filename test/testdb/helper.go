package testdb

import (
	"os"
	"path/filepath"
	"runtime"
	"testing"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"

	"github.com/selivandex/sentiment-fusion/internal/adapters/database"
)

// tables in truncation order
var tables = []string{"sentiment_results", "raw_corpus", "user_portfolios", "user_settings"}

// Setup connects to TEST_DATABASE_URL, applies migrations and empties every
// table before and after the test. The test is skipped when the variable is unset.
func Setup(t *testing.T) *sqlx.DB {
	t.Helper()

	dsn := os.Getenv("TEST_DATABASE_URL")
	if dsn == "" {
		t.Skip("TEST_DATABASE_URL not set, skipping database test")
	}

	conn, err := sqlx.Connect("postgres", dsn)
	if err != nil {
		t.Fatalf("failed to connect to test database: %v", err)
	}

	if err := database.RunMigrations(conn.DB, MigrationsPath()); err != nil {
		conn.Close()
		t.Fatalf("failed to migrate test database: %v", err)
	}

	Truncate(t, conn)
	t.Cleanup(func() {
		Truncate(t, conn)
		if err := conn.Close(); err != nil {
			t.Logf("warning: failed to close database: %v", err)
		}
	})

	return conn
}

// Truncate removes all rows from application tables
func Truncate(t *testing.T, db *sqlx.DB) {
	t.Helper()

	for _, table := range tables {
		if _, err := db.Exec("TRUNCATE TABLE " + table + " CASCADE"); err != nil {
			t.Fatalf("failed to truncate %s: %v", table, err)
		}
	}
}

// MigrationsPath returns the absolute path of the migrations directory
func MigrationsPath() string {
	_, file, _, _ := runtime.Caller(0)
	return filepath.Join(filepath.Dir(file), "..", "..", "migrations")
}

// InsertDocument inserts a raw corpus row and returns its id
func InsertDocument(t *testing.T, db *sqlx.DB, id, code, title, source, publishTime string, analyzed bool) string {
	t.Helper()

	_, err := db.Exec(`
		INSERT INTO raw_corpus (id, stock_code, title, content, source, publish_time, is_analyzed)
		VALUES ($1, $2, $3, '', $4, $5, $6)
	`, id, code, title, source, publishTime, analyzed)
	if err != nil {
		t.Fatalf("failed to insert document: %v", err)
	}
	return id
}

// InsertResult inserts a sentiment result for a document
func InsertResult(t *testing.T, db *sqlx.DB, corpusID string, newsScore, forumScore *float64, summary string) {
	t.Helper()

	_, err := db.Exec(`
		INSERT INTO sentiment_results (corpus_id, news_score_raw, forum_score_raw, summary)
		VALUES ($1, $2, $3, $4)
	`, corpusID, newsScore, forumScore, summary)
	if err != nil {
		t.Fatalf("failed to insert result: %v", err)
	}
}
