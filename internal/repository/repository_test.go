package repository

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yourusername/shin/internal/models"
)

func TestNewRepositoriesRequiresDB(t *testing.T) {
	repos, err := NewRepositories(nil)
	assert.Nil(t, repos)
	assert.Error(t, err)
}

func TestProbabilityRowsMatchColumns(t *testing.T) {
	now := time.Now().UTC()
	ip := &models.ImpliedProbability{
		ID:          uuid.New(),
		RaceID:      uuid.New(),
		RunnerID:    uuid.New(),
		Price:       2.6,
		Probability: 0.373,
		Z:           0.0169,
		Delta:       1e-13,
		Iterations:  426,
		Overround:   0.0338,
		OddsTime:    now.Add(-time.Minute),
		ComputedAt:  now,
	}

	rows := probabilityRows([]*models.ImpliedProbability{ip, ip})

	require.Len(t, rows, 2)
	require.Len(t, rows[0], len(probabilityColumns))
	assert.Equal(t, ip.ID, rows[0][0])
	assert.Equal(t, 426, rows[0][7])
	assert.Equal(t, now, rows[1][10])
}
