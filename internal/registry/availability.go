package registry

import (
	"context"
	"fmt"
	"math/rand"
	"slices"
	"sort"
	"sync/atomic"
)

// Load balancing strategies for capability-based routing.
const (
	StrategyRoundRobin = "round_robin"
	StrategyLeastBusy  = "least_busy"
	StrategyRandom     = "random"
)

// AvailabilityService answers the questions the message endpoints ask of
// the registry: is this agent reachable, which agents match a broadcast,
// and which single agent should a capability-routed message go to.
type AvailabilityService struct {
	repo     Repository
	presence PresenceStore

	rr atomic.Uint64
}

// NewAvailabilityService creates an availability service over the given
// repository and presence store.
func NewAvailabilityService(repo Repository, presence PresenceStore) *AvailabilityService {
	return &AvailabilityService{repo: repo, presence: presence}
}

// IsAvailable reports whether the agent exists and is currently online or
// busy. An agent with no presence entry counts as offline.
func (s *AvailabilityService) IsAvailable(ctx context.Context, agentID string) (bool, error) {
	if _, err := s.repo.GetByID(ctx, agentID); err != nil {
		return false, err
	}

	p, err := s.presence.GetPresence(ctx, agentID)
	if err != nil {
		return false, fmt.Errorf("failed to check presence: %w", err)
	}
	if p == nil {
		return false, nil
	}
	return p.Status == StatusOnline || p.Status == StatusBusy, nil
}

// BroadcastTargets resolves the agents a broadcast should reach: every
// online agent of one of the requested types, minus the excluded ids.
func (s *AvailabilityService) BroadcastTargets(ctx context.Context, agentTypes []string, excludeIDs []string) ([]*Agent, error) {
	var targets []*Agent
	for _, t := range agentTypes {
		agents, err := s.repo.List(ctx, Filter{Type: AgentType(t)})
		if err != nil {
			return nil, fmt.Errorf("failed to list agents of type %q: %w", t, err)
		}
		for _, a := range agents {
			if slices.Contains(excludeIDs, a.ID) {
				continue
			}
			online, err := s.IsAvailable(ctx, a.ID)
			if err != nil {
				return nil, err
			}
			if online {
				targets = append(targets, a)
			}
		}
	}
	return targets, nil
}

// Route picks one available agent that declares every required capability,
// using the requested load balancing strategy. Fails with
// ErrNoAgentAvailable when no agent qualifies.
func (s *AvailabilityService) Route(ctx context.Context, capabilities []string, strategy string) (*Agent, error) {
	agents, err := s.repo.List(ctx, Filter{})
	if err != nil {
		return nil, fmt.Errorf("failed to list agents: %w", err)
	}

	var candidates []*Agent
	for _, a := range agents {
		if !a.HasCapabilities(capabilities) {
			continue
		}
		online, err := s.IsAvailable(ctx, a.ID)
		if err != nil {
			return nil, err
		}
		if online {
			candidates = append(candidates, a)
		}
	}
	if len(candidates) == 0 {
		return nil, fmt.Errorf("%w: capabilities %v", ErrNoAgentAvailable, capabilities)
	}

	// Stable order keeps round robin fair regardless of repository
	// iteration order.
	sort.Slice(candidates, func(i, j int) bool { return candidates[i].ID < candidates[j].ID })

	switch strategy {
	case StrategyLeastBusy:
		return s.leastBusy(ctx, candidates)
	case StrategyRandom:
		return candidates[rand.Intn(len(candidates))], nil
	default:
		// round_robin, also the fallback for an unset strategy
		n := s.rr.Add(1)
		return candidates[(n-1)%uint64(len(candidates))], nil
	}
}

// leastBusy prefers the candidate with the fewest active tasks, reading
// the live count from presence when available.
func (s *AvailabilityService) leastBusy(ctx context.Context, candidates []*Agent) (*Agent, error) {
	best := candidates[0]
	bestTasks := s.activeTasks(ctx, best)
	for _, a := range candidates[1:] {
		if tasks := s.activeTasks(ctx, a); tasks < bestTasks {
			best, bestTasks = a, tasks
		}
	}
	return best, nil
}

func (s *AvailabilityService) activeTasks(ctx context.Context, a *Agent) int {
	p, err := s.presence.GetPresence(ctx, a.ID)
	if err != nil || p == nil {
		return a.ActiveTasks
	}
	return p.ActiveTasks
}
