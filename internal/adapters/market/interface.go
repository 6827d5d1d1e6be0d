package market

import (
	"context"
	"errors"

	"github.com/selivandex/sentiment-fusion/pkg/models"
)

// ErrNotFound is returned when the provider knows no instrument with the code
var ErrNotFound = errors.New("instrument not found")

// Provider supplies daily price bars and display names for instruments
type Provider interface {
	// GetDailyBars returns up to days most recent daily bars in ascending date order
	GetDailyBars(ctx context.Context, code string, days int) ([]models.PriceBar, error)

	// GetName returns the instrument's display name
	GetName(ctx context.Context, code string) (string, error)
}
