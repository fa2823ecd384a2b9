// Package policy produces the immutable policy snapshot (kill switch plus
// exemption list) the evaluator reads once per decision.
package policy

import (
	"context"
	"sync"
	"time"

	"github.com/glazeworks/actiongate/models"
	"github.com/glazeworks/actiongate/repositories"
	"github.com/glazeworks/actiongate/services"
	"go.uber.org/zap"
)

// Service assembles policy snapshots. The kill switch is process-local state
// flipped by operators; exemptions come from the repository. Snapshots are
// value copies: callers can never observe a torn read mid-decision.
type Service struct {
	exemptions repositories.ExemptionRepository
	logger     *zap.Logger

	mu         sync.RWMutex
	killSwitch models.KillSwitchState
	version    int64

	// snapshot cache, refreshed at most once per TTL
	cacheTTL time.Duration
	cached   *models.PolicyConfig
	cachedAt time.Time
}

// NewService creates a new policy Service instance
func NewService(exemptions repositories.ExemptionRepository, cacheTTL time.Duration, logger *zap.Logger) *Service {
	return &Service{
		exemptions: exemptions,
		cacheTTL:   cacheTTL,
		logger:     logger,
	}
}

// Snapshot returns the current policy configuration. The exemption list is
// served from a short-lived cache; the kill switch is always read live so an
// engaged switch takes effect on the very next evaluation.
func (s *Service) Snapshot(ctx context.Context) (models.PolicyConfig, error) {
	s.mu.RLock()
	cached := s.cached
	cachedAt := s.cachedAt
	ks := s.killSwitch
	version := s.version
	s.mu.RUnlock()

	if cached != nil && time.Since(cachedAt) < s.cacheTTL {
		snap := *cached
		snap.KillSwitch = ks
		snap.Version = version
		return snap, nil
	}

	exemptions, err := s.exemptions.List(ctx)
	if err != nil {
		return models.PolicyConfig{}, services.WrapInternal("failed to load exemptions", err)
	}

	snap := models.PolicyConfig{
		Version:    version,
		KillSwitch: ks,
		Exemptions: exemptions,
	}

	s.mu.Lock()
	s.cached = &snap
	s.cachedAt = time.Now()
	s.mu.Unlock()

	return snap, nil
}

// SetKillSwitch engages or releases the global kill switch.
func (s *Service) SetKillSwitch(enabled bool, setBy, note string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.killSwitch = models.KillSwitchState{
		Enabled: enabled,
		SetBy:   setBy,
		SetAt:   time.Now(),
		Note:    note,
	}
	s.version++

	s.logger.Warn("kill switch state changed",
		zap.Bool("enabled", enabled),
		zap.String("set_by", setBy),
		zap.String("note", note))
}

// KillSwitch returns the current kill switch state.
func (s *Service) KillSwitch() models.KillSwitchState {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.killSwitch
}

// Invalidate drops the cached exemption snapshot. Policy administration
// tooling calls this after editing exemptions.
func (s *Service) Invalidate() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.cached = nil
	s.version++
	s.logger.Debug("policy snapshot cache invalidated")
}
