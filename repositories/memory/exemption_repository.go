package memory

import (
	"context"
	"sync"

	"github.com/glazeworks/actiongate/models"
)

// ExemptionRepository holds the exemption list in memory. Writes come from
// policy administration tooling; this core only reads.
type ExemptionRepository struct {
	mu         sync.RWMutex
	exemptions []models.Exemption
}

// NewExemptionRepository creates an exemption repository seeded with the
// given exemptions.
func NewExemptionRepository(exemptions ...models.Exemption) *ExemptionRepository {
	return &ExemptionRepository{exemptions: exemptions}
}

// List returns all exemptions regardless of status.
func (r *ExemptionRepository) List(ctx context.Context) ([]models.Exemption, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]models.Exemption, len(r.exemptions))
	copy(out, r.exemptions)
	return out, nil
}

// Put adds or replaces an exemption by ID.
func (r *ExemptionRepository) Put(exemption models.Exemption) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for i := range r.exemptions {
		if r.exemptions[i].ID == exemption.ID {
			r.exemptions[i] = exemption
			return
		}
	}
	r.exemptions = append(r.exemptions, exemption)
}
