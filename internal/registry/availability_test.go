package registry_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"agenthub/internal/registry"
	"agenthub/internal/registry/memory"
)

func seedAgent(t *testing.T, repo registry.Repository, presence registry.PresenceStore, name string, agentType registry.AgentType, caps []string, status registry.AgentStatus, activeTasks int) *registry.Agent {
	t.Helper()
	ctx := context.Background()

	agent := registry.NewAgent(name, agentType, caps)
	if err := repo.Create(ctx, agent); err != nil {
		t.Fatalf("Create error: %v", err)
	}

	if status != registry.StatusOffline {
		err := presence.SetPresence(ctx, &registry.Presence{
			AgentID:     agent.ID,
			Status:      status,
			ActiveTasks: activeTasks,
			LastSeen:    time.Now(),
		}, time.Minute)
		if err != nil {
			t.Fatalf("SetPresence error: %v", err)
		}
	}
	return agent
}

func TestIsAvailable(t *testing.T) {
	repo := memory.NewRepository()
	presence := memory.NewPresenceStore()
	svc := registry.NewAvailabilityService(repo, presence)
	ctx := context.Background()

	online := seedAgent(t, repo, presence, "a1", registry.TypeDeveloper, nil, registry.StatusOnline, 0)
	busy := seedAgent(t, repo, presence, "a2", registry.TypeDeveloper, nil, registry.StatusBusy, 2)
	offline := seedAgent(t, repo, presence, "a3", registry.TypeDeveloper, nil, registry.StatusOffline, 0)

	tests := []struct {
		name    string
		agentID string
		want    bool
	}{
		{"online", online.ID, true},
		{"busy counts as reachable", busy.ID, true},
		{"no presence entry", offline.ID, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := svc.IsAvailable(ctx, tt.agentID)
			if err != nil {
				t.Fatalf("IsAvailable error: %v", err)
			}
			if got != tt.want {
				t.Errorf("IsAvailable = %v, want %v", got, tt.want)
			}
		})
	}

	if _, err := svc.IsAvailable(ctx, "no-such-agent"); !errors.Is(err, registry.ErrAgentNotFound) {
		t.Errorf("unknown agent: err = %v, want ErrAgentNotFound", err)
	}
}

func TestBroadcastTargets(t *testing.T) {
	repo := memory.NewRepository()
	presence := memory.NewPresenceStore()
	svc := registry.NewAvailabilityService(repo, presence)
	ctx := context.Background()

	dev := seedAgent(t, repo, presence, "dev", registry.TypeDeveloper, nil, registry.StatusOnline, 0)
	seedAgent(t, repo, presence, "dev-offline", registry.TypeDeveloper, nil, registry.StatusOffline, 0)
	tester := seedAgent(t, repo, presence, "tester", registry.TypeTester, nil, registry.StatusOnline, 0)
	seedAgent(t, repo, presence, "monitor", registry.TypeMonitor, nil, registry.StatusOnline, 0)

	targets, err := svc.BroadcastTargets(ctx, []string{"developer", "tester"}, nil)
	if err != nil {
		t.Fatalf("BroadcastTargets error: %v", err)
	}
	if len(targets) != 2 {
		t.Fatalf("got %d targets, want 2 (online developer and tester)", len(targets))
	}

	targets, err = svc.BroadcastTargets(ctx, []string{"developer", "tester"}, []string{dev.ID})
	if err != nil {
		t.Fatalf("BroadcastTargets error: %v", err)
	}
	if len(targets) != 1 || targets[0].ID != tester.ID {
		t.Errorf("exclusion not honored: %v", targets)
	}
}

func TestRoute_Strategies(t *testing.T) {
	repo := memory.NewRepository()
	presence := memory.NewPresenceStore()
	svc := registry.NewAvailabilityService(repo, presence)
	ctx := context.Background()

	busy := seedAgent(t, repo, presence, "busy", registry.TypeDeveloper, []string{"code_generation", "testing"}, registry.StatusOnline, 5)
	idle := seedAgent(t, repo, presence, "idle", registry.TypeDeveloper, []string{"code_generation", "testing"}, registry.StatusOnline, 0)
	seedAgent(t, repo, presence, "no-caps", registry.TypeDeveloper, []string{"monitoring"}, registry.StatusOnline, 0)

	t.Run("least busy", func(t *testing.T) {
		agent, err := svc.Route(ctx, []string{"code_generation"}, registry.StrategyLeastBusy)
		if err != nil {
			t.Fatalf("Route error: %v", err)
		}
		if agent.ID != idle.ID {
			t.Errorf("least_busy picked %v, want the idle agent", agent.Name)
		}
	})

	t.Run("round robin cycles", func(t *testing.T) {
		seen := map[string]int{}
		for i := 0; i < 4; i++ {
			agent, err := svc.Route(ctx, []string{"code_generation"}, registry.StrategyRoundRobin)
			if err != nil {
				t.Fatalf("Route error: %v", err)
			}
			seen[agent.ID]++
		}
		if seen[busy.ID] != 2 || seen[idle.ID] != 2 {
			t.Errorf("round_robin distribution = %v, want 2 each", seen)
		}
	})

	t.Run("random picks a qualified agent", func(t *testing.T) {
		agent, err := svc.Route(ctx, []string{"code_generation"}, registry.StrategyRandom)
		if err != nil {
			t.Fatalf("Route error: %v", err)
		}
		if agent.ID != busy.ID && agent.ID != idle.ID {
			t.Errorf("random picked unqualified agent %v", agent.Name)
		}
	})

	t.Run("no candidate", func(t *testing.T) {
		_, err := svc.Route(ctx, []string{"planning"}, registry.StrategyRoundRobin)
		if !errors.Is(err, registry.ErrNoAgentAvailable) {
			t.Errorf("err = %v, want ErrNoAgentAvailable", err)
		}
	})
}

func TestAgentValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*registry.Agent)
		wantErr bool
	}{
		{"valid", func(a *registry.Agent) {}, false},
		{"missing name", func(a *registry.Agent) { a.Name = "" }, true},
		{"bad type", func(a *registry.Agent) { a.Type = "overlord" }, true},
		{"bad status", func(a *registry.Agent) { a.Status = "sleeping" }, true},
		{"unknown capability", func(a *registry.Agent) { a.Capabilities = []string{"mind_reading"} }, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			agent := registry.NewAgent("a", registry.TypeCustom, []string{"analysis"})
			tt.mutate(agent)
			err := agent.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}
