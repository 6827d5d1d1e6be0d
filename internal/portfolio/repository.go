package portfolio

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"regexp"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/selivandex/sentiment-fusion/pkg/models"
)

var (
	// ErrDuplicate is returned when the user already tracks the instrument
	ErrDuplicate = errors.New("instrument already tracked")
	// ErrNotFound is returned when removing an instrument the user does not track
	ErrNotFound = errors.New("instrument not tracked")
	// ErrInvalidCode is returned for codes that are not six digits
	ErrInvalidCode = errors.New("instrument code must be six digits")
)

var codePattern = regexp.MustCompile(`^\d{6}$`)

// ValidCode reports whether code looks like an exchange-listed A-share code
func ValidCode(code string) bool {
	return codePattern.MatchString(code)
}

// Repository handles tracked instruments and weight settings per user
type Repository struct {
	db *sqlx.DB
}

// NewRepository creates new portfolio repository
func NewRepository(db *sqlx.DB) *Repository {
	return &Repository{db: db}
}

// ========== Tracked Instruments ==========

// List returns the user's tracked instruments, oldest first
func (r *Repository) List(ctx context.Context, userID string) ([]models.Portfolio, error) {
	query := `
		SELECT id, user_id, stock_code, created_at
		FROM user_portfolios
		WHERE user_id = $1
		ORDER BY created_at ASC
	`

	items := []models.Portfolio{}
	if err := r.db.SelectContext(ctx, &items, query, userID); err != nil {
		return nil, fmt.Errorf("failed to list portfolio: %w", err)
	}

	return items, nil
}

// Add starts tracking an instrument for the user
func (r *Repository) Add(ctx context.Context, userID, code string) (*models.Portfolio, error) {
	if !ValidCode(code) {
		return nil, ErrInvalidCode
	}

	query := `
		INSERT INTO user_portfolios (id, user_id, stock_code)
		VALUES ($1, $2, $3)
		RETURNING id, user_id, stock_code, created_at
	`

	var item models.Portfolio
	err := r.db.GetContext(ctx, &item, query, uuid.NewString(), userID, code)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == "23505" {
			return nil, ErrDuplicate
		}
		return nil, fmt.Errorf("failed to add instrument: %w", err)
	}

	return &item, nil
}

// Remove stops tracking an instrument for the user
func (r *Repository) Remove(ctx context.Context, userID, code string) error {
	res, err := r.db.ExecContext(ctx, `
		DELETE FROM user_portfolios WHERE user_id = $1 AND stock_code = $2
	`, userID, code)
	if err != nil {
		return fmt.Errorf("failed to remove instrument: %w", err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// TrackedCodes returns every instrument tracked by at least one user
func (r *Repository) TrackedCodes(ctx context.Context) ([]string, error) {
	var codes []string
	if err := r.db.SelectContext(ctx, &codes, `
		SELECT DISTINCT stock_code FROM user_portfolios ORDER BY stock_code
	`); err != nil {
		return nil, fmt.Errorf("failed to list tracked instruments: %w", err)
	}
	return codes, nil
}

// ========== Weight Settings ==========

// GetWeights returns the user's saved weights, or defaults when none are stored
func (r *Repository) GetWeights(ctx context.Context, userID string) (models.WeightConfig, error) {
	var w models.WeightConfig
	err := r.db.GetContext(ctx, &w, `
		SELECT news_weight, forum_weight FROM user_settings WHERE user_id = $1
	`, userID)
	if errors.Is(err, sql.ErrNoRows) {
		return models.DefaultWeights(), nil
	}
	if err != nil {
		return models.WeightConfig{}, fmt.Errorf("failed to load settings: %w", err)
	}
	return w, nil
}

// PutWeights validates and stores the user's weights
func (r *Repository) PutWeights(ctx context.Context, userID string, w models.WeightConfig) error {
	if err := w.Validate(); err != nil {
		return err
	}

	_, err := r.db.ExecContext(ctx, `
		INSERT INTO user_settings (user_id, news_weight, forum_weight, updated_at)
		VALUES ($1, $2, $3, NOW())
		ON CONFLICT (user_id) DO UPDATE SET
			news_weight = EXCLUDED.news_weight,
			forum_weight = EXCLUDED.forum_weight,
			updated_at = NOW()
	`, userID, w.NewsWeight, w.ForumWeight)
	if err != nil {
		return fmt.Errorf("failed to save settings: %w", err)
	}
	return nil
}
