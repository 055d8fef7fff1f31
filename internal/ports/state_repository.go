package ports

import (
	"context"

	"github.com/mob852/framecast/internal/domain"
)

// StateRepository persists sender state across restarts.
type StateRepository interface {
	// Load retrieves the last saved state.
	// Returns an empty state and nil error if no state exists.
	Load(ctx context.Context) (domain.State, error)

	// Save persists the state atomically.
	Save(ctx context.Context, state domain.State) error
}
