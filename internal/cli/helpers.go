package cli

import (
	"fmt"

	"github.com/splitkit/splitkit/internal/docstore"
	"github.com/splitkit/splitkit/internal/experiment"
)

// withStore opens the database, executes the function, and handles cleanup.
func withStore(fn func(*experiment.Store) error) error {
	docs, err := docstore.Open(dbPath)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer docs.Close()

	return fn(experiment.NewStore(docs))
}
