package memory

import (
	"context"
	"sync"
	"time"

	"github.com/glazeworks/actiongate/models"
	"github.com/google/uuid"
)

// ProposalRepository stores proposals in memory. Proposals are never deleted;
// they are the audit anchor for any later execution.
type ProposalRepository struct {
	mu        sync.RWMutex
	proposals map[uuid.UUID]*models.Proposal
}

// NewProposalRepository creates an empty in-memory proposal repository.
func NewProposalRepository() *ProposalRepository {
	return &ProposalRepository{
		proposals: make(map[uuid.UUID]*models.Proposal),
	}
}

// Create stores a new proposal.
func (r *ProposalRepository) Create(ctx context.Context, p *models.Proposal) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.proposals[p.ID]; exists {
		return ErrProposalExists
	}
	stored := *p
	r.proposals[p.ID] = &stored
	return nil
}

// GetByID retrieves a proposal by ID.
func (r *ProposalRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.Proposal, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	p, ok := r.proposals[id]
	if !ok {
		return nil, ErrProposalNotFound
	}
	out := *p
	return &out, nil
}

// Len returns the number of stored proposals.
func (r *ProposalRepository) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.proposals)
}

// UpdateStatus advances the proposal state machine.
func (r *ProposalRepository) UpdateStatus(ctx context.Context, id uuid.UUID, status models.ProposalStatus, approvedBy string, approvedAt *time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	p, ok := r.proposals[id]
	if !ok {
		return ErrProposalNotFound
	}
	p.Status = status
	p.ApprovedBy = approvedBy
	p.ApprovedAt = approvedAt
	return nil
}
