package corpus

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/selivandex/sentiment-fusion/internal/adapters/database"
	"github.com/selivandex/sentiment-fusion/pkg/models"
)

// ErrNotFound is returned when requested documents are missing from the store
var ErrNotFound = errors.New("document not found")

// Summary is a stored analysis summary keyed by its document
type Summary struct {
	DocumentID string `db:"corpus_id"`
	Summary    string `db:"summary"`
}

// Repository stores raw documents and their sentiment results in Postgres
type Repository struct {
	db *sqlx.DB
}

// NewRepository creates new corpus repository
func NewRepository(db *sqlx.DB) *Repository {
	return &Repository{db: db}
}

// scoredRow is the flat shape of a document LEFT JOIN result
type scoredRow struct {
	models.RawDocument
	ResultDocumentID sql.NullString  `db:"result_corpus_id"`
	Summary          sql.NullString  `db:"summary"`
	NewsScore        sql.NullFloat64 `db:"news_score_raw"`
	ForumScore       sql.NullFloat64 `db:"forum_score_raw"`
	ResultCreatedAt  sql.NullTime    `db:"result_created_at"`
}

func (r scoredRow) toModel() models.ScoredDocument {
	doc := models.ScoredDocument{Document: r.RawDocument}
	if !r.ResultDocumentID.Valid {
		return doc
	}

	result := &models.SentimentResult{
		DocumentID: r.ResultDocumentID.String,
		Summary:    r.Summary.String,
		CreatedAt:  r.ResultCreatedAt.Time,
	}
	if r.NewsScore.Valid {
		result.NewsScore = models.Float64Ptr(r.NewsScore.Float64)
	}
	if r.ForumScore.Valid {
		result.ForumScore = models.Float64Ptr(r.ForumScore.Float64)
	}
	doc.Result = result
	return doc
}

const scoredSelect = `
	SELECT c.id, c.stock_code, c.title, c.content, c.url, c.source,
		   c.publish_time, c.is_analyzed, c.created_at,
		   s.corpus_id AS result_corpus_id, s.summary, s.news_score_raw,
		   s.forum_score_raw, s.created_at AS result_created_at
	FROM raw_corpus c
	LEFT JOIN sentiment_results s ON s.corpus_id = c.id
`

// ListOptions narrows ListScored
type ListOptions struct {
	// Since drops documents published before it; zero disables the filter
	Since time.Time
	// Limit caps the row count; non-positive returns every row
	Limit int
	// AnalyzedOnly skips documents still waiting for scoring
	AnalyzedOnly bool
	// OldestFirst orders by publish time ascending instead of newest first
	OldestFirst bool
}

// ListScored returns documents of the instrument together with their results
func (r *Repository) ListScored(ctx context.Context, code string, opts ListOptions) ([]models.ScoredDocument, error) {
	query := scoredSelect + ` WHERE c.stock_code = $1 AND ($2::timestamptz IS NULL OR c.publish_time >= $2)`
	if opts.AnalyzedOnly {
		query += ` AND c.is_analyzed = true`
	}
	if opts.OldestFirst {
		query += ` ORDER BY c.publish_time ASC, c.created_at ASC`
	} else {
		query += ` ORDER BY c.publish_time DESC, c.created_at DESC`
	}

	var sinceArg interface{}
	if !opts.Since.IsZero() {
		sinceArg = opts.Since
	}
	args := []interface{}{code, sinceArg}
	if opts.Limit > 0 {
		query += ` LIMIT $3`
		args = append(args, opts.Limit)
	}

	var rows []scoredRow
	if err := r.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, fmt.Errorf("failed to list scored documents: %w", err)
	}

	docs := make([]models.ScoredDocument, 0, len(rows))
	for _, row := range rows {
		docs = append(docs, row.toModel())
	}
	return docs, nil
}

// PendingIDs returns ids of documents that have not been analyzed yet, newest first
func (r *Repository) PendingIDs(ctx context.Context, code string) ([]string, error) {
	var ids []string
	err := r.db.SelectContext(ctx, &ids, `
		SELECT id FROM raw_corpus
		WHERE stock_code = $1 AND is_analyzed = false
		ORDER BY publish_time DESC, created_at DESC
	`, code)
	if err != nil {
		return nil, fmt.Errorf("failed to list pending documents: %w", err)
	}
	return ids, nil
}

// ExistingTitles returns the set of titles already stored for the instrument
func (r *Repository) ExistingTitles(ctx context.Context, code string) (map[string]bool, error) {
	var titles []string
	if err := r.db.SelectContext(ctx, &titles, `SELECT DISTINCT title FROM raw_corpus WHERE stock_code = $1`, code); err != nil {
		return nil, fmt.Errorf("failed to list titles: %w", err)
	}

	set := make(map[string]bool, len(titles))
	for _, title := range titles {
		set[title] = true
	}
	return set, nil
}

// InsertDocuments stores new documents in one transaction and returns how
// many rows were written. Rows whose id already exists are skipped.
func (r *Repository) InsertDocuments(ctx context.Context, docs []models.RawDocument) (int, error) {
	if len(docs) == 0 {
		return 0, nil
	}

	inserted := 0
	err := database.InTx(ctx, r.db, func(tx *sqlx.Tx) error {
		stmt, err := tx.PrepareNamedContext(ctx, `
			INSERT INTO raw_corpus (id, stock_code, title, content, url, source, publish_time, is_analyzed)
			VALUES (:id, :stock_code, :title, :content, :url, :source, :publish_time, :is_analyzed)
			ON CONFLICT (id) DO NOTHING
		`)
		if err != nil {
			return fmt.Errorf("failed to prepare insert: %w", err)
		}
		defer stmt.Close()

		for _, doc := range docs {
			res, err := stmt.ExecContext(ctx, doc)
			if err != nil {
				return fmt.Errorf("failed to insert document %s: %w", doc.ID, err)
			}
			n, err := res.RowsAffected()
			if err != nil {
				return err
			}
			inserted += int(n)
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return inserted, nil
}

// GetByIDs loads documents by id. It fails with ErrNotFound when any id is missing.
func (r *Repository) GetByIDs(ctx context.Context, ids []string) ([]models.RawDocument, error) {
	if len(ids) == 0 {
		return nil, nil
	}

	var docs []models.RawDocument
	err := r.db.SelectContext(ctx, &docs, `
		SELECT id, stock_code, title, content, url, source, publish_time, is_analyzed, created_at
		FROM raw_corpus
		WHERE id = ANY($1::uuid[])
	`, pq.Array(ids))
	if err != nil {
		return nil, fmt.Errorf("failed to load documents: %w", err)
	}

	if len(docs) != len(ids) {
		return nil, fmt.Errorf("%w: requested %d, found %d", ErrNotFound, len(ids), len(docs))
	}
	return docs, nil
}

// SaveResults writes every result and flags the documents analyzed in a
// single transaction, so either the whole batch lands or none of it does
func (r *Repository) SaveResults(ctx context.Context, results []models.SentimentResult) error {
	if len(results) == 0 {
		return nil
	}

	ids := make([]string, 0, len(results))
	return database.InTx(ctx, r.db, func(tx *sqlx.Tx) error {
		for _, res := range results {
			_, err := tx.ExecContext(ctx, `
				INSERT INTO sentiment_results (corpus_id, news_score_raw, forum_score_raw, summary)
				VALUES ($1, $2, $3, $4)
				ON CONFLICT (corpus_id) DO UPDATE SET
					news_score_raw = EXCLUDED.news_score_raw,
					forum_score_raw = EXCLUDED.forum_score_raw,
					summary = EXCLUDED.summary,
					created_at = NOW()
			`, res.DocumentID, res.NewsScore, res.ForumScore, res.Summary)
			if err != nil {
				return fmt.Errorf("failed to save result for %s: %w", res.DocumentID, err)
			}
			ids = append(ids, res.DocumentID)
		}

		if _, err := tx.ExecContext(ctx, `
			UPDATE raw_corpus SET is_analyzed = true WHERE id = ANY($1::uuid[])
		`, pq.Array(ids)); err != nil {
			return fmt.Errorf("failed to mark documents analyzed: %w", err)
		}
		return nil
	})
}

// DeleteDuplicates removes every document whose title repeats within the
// instrument, keeping the most recently published copy. Results of removed
// rows go with them through the foreign key cascade.
func (r *Repository) DeleteDuplicates(ctx context.Context, code string) (int, error) {
	res, err := r.db.ExecContext(ctx, `
		DELETE FROM raw_corpus WHERE id IN (
			SELECT id FROM (
				SELECT id, ROW_NUMBER() OVER (
					PARTITION BY title ORDER BY publish_time DESC, created_at DESC, id DESC
				) AS rn
				FROM raw_corpus
				WHERE stock_code = $1
			) ranked
			WHERE ranked.rn > 1
		)
	`, code)
	if err != nil {
		return 0, fmt.Errorf("failed to delete duplicates: %w", err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return 0, err
	}
	return int(n), nil
}

// ListSummaries returns the stored summaries for an instrument's documents
func (r *Repository) ListSummaries(ctx context.Context, code string) ([]Summary, error) {
	var summaries []Summary
	err := r.db.SelectContext(ctx, &summaries, `
		SELECT s.corpus_id, COALESCE(s.summary, '') AS summary
		FROM sentiment_results s
		JOIN raw_corpus c ON c.id = s.corpus_id
		WHERE c.stock_code = $1
	`, code)
	if err != nil {
		return nil, fmt.Errorf("failed to list summaries: %w", err)
	}
	return summaries, nil
}

// PurgeResults deletes the results of the given documents and clears their
// analyzed flag so the next update scores them again
func (r *Repository) PurgeResults(ctx context.Context, documentIDs []string) (deleted int, reset int, err error) {
	if len(documentIDs) == 0 {
		return 0, 0, nil
	}

	err = database.InTx(ctx, r.db, func(tx *sqlx.Tx) error {
		res, err := tx.ExecContext(ctx, `DELETE FROM sentiment_results WHERE corpus_id = ANY($1::uuid[])`, pq.Array(documentIDs))
		if err != nil {
			return fmt.Errorf("failed to delete results: %w", err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return err
		}
		deleted = int(n)

		res, err = tx.ExecContext(ctx, `UPDATE raw_corpus SET is_analyzed = false WHERE id = ANY($1::uuid[])`, pq.Array(documentIDs))
		if err != nil {
			return fmt.Errorf("failed to reset analyzed flag: %w", err)
		}
		n, err = res.RowsAffected()
		if err != nil {
			return err
		}
		reset = int(n)
		return nil
	})
	if err != nil {
		return 0, 0, err
	}
	return deleted, reset, nil
}

// Count returns the number of stored documents for the instrument
func (r *Repository) Count(ctx context.Context, code string) (int, error) {
	var n int
	if err := r.db.GetContext(ctx, &n, `SELECT COUNT(*) FROM raw_corpus WHERE stock_code = $1`, code); err != nil {
		return 0, fmt.Errorf("failed to count documents: %w", err)
	}
	return n, nil
}
