package repository

import (
	"fmt"

	"github.com/yourusername/kabu-screener/internal/database"
)

// Repositories holds all repository implementations
type Repositories struct {
	BacktestResult  BacktestResultRepository
	ScreeningResult ScreeningResultRepository
}

// NewRepositories creates and returns all repository implementations
func NewRepositories(db *database.DB) (*Repositories, error) {
	if db == nil {
		return nil, fmt.Errorf("database connection is required")
	}

	return &Repositories{
		BacktestResult:  NewPostgresBacktestResultRepository(db),
		ScreeningResult: NewPostgresScreeningResultRepository(db),
	}, nil
}
