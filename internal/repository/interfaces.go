package repository

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/yourusername/shin/internal/models"
)

// OddsRepository defines read access to stored odds snapshots
type OddsRepository interface {
	GetLatestForRace(ctx context.Context, raceID uuid.UUID) ([]*models.OddsSnapshot, error)
	GetRacesWithRecentOdds(ctx context.Context, since time.Time) ([]uuid.UUID, error)
}

// ProbabilityRepository defines access to de-margined probabilities
type ProbabilityRepository interface {
	InsertBatch(ctx context.Context, probabilities []*models.ImpliedProbability) error
	GetLatestForRace(ctx context.Context, raceID uuid.UUID) ([]*models.ImpliedProbability, error)
}
