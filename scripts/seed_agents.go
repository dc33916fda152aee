// Seeds a running AgentHub instance with a set of demo agents and marks
// them online, so the send/broadcast/route endpoints have targets.
//
// Usage: go run scripts/seed_agents.go [base-url]
package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"os"
)

type seedAgent struct {
	Name         string   `json:"name"`
	Type         string   `json:"type"`
	Capabilities []string `json:"capabilities"`
}

func main() {
	baseURL := "http://localhost:8080"
	if len(os.Args) > 1 {
		baseURL = os.Args[1]
	}

	agents := []seedAgent{
		{Name: "analyst-1", Type: "business_analyst", Capabilities: []string{"analysis", "planning"}},
		{Name: "dev-1", Type: "developer", Capabilities: []string{"code_generation"}},
		{Name: "dev-2", Type: "developer", Capabilities: []string{"code_generation", "testing"}},
		{Name: "tester-1", Type: "tester", Capabilities: []string{"testing"}},
		{Name: "deployer-1", Type: "deployer", Capabilities: []string{"deployment"}},
		{Name: "monitor-1", Type: "monitor", Capabilities: []string{"monitoring"}},
	}

	for _, agent := range agents {
		id, err := register(baseURL, agent)
		if err != nil {
			log.Fatalf("failed to register %s: %v", agent.Name, err)
		}
		if err := heartbeat(baseURL, id); err != nil {
			log.Fatalf("failed to heartbeat %s: %v", agent.Name, err)
		}
		fmt.Printf("registered %s (%s) as %s\n", agent.Name, agent.Type, id)
	}

	fmt.Printf("seeded %d agents at %s\n", len(agents), baseURL)
}

func register(baseURL string, agent seedAgent) (string, error) {
	body, err := json.Marshal(agent)
	if err != nil {
		return "", err
	}

	resp, err := http.Post(baseURL+"/v1/agents", "application/json", bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusCreated {
		return "", fmt.Errorf("unexpected status %d", resp.StatusCode)
	}

	var envelope struct {
		Data struct {
			ID string `json:"id"`
		} `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&envelope); err != nil {
		return "", err
	}
	return envelope.Data.ID, nil
}

func heartbeat(baseURL, agentID string) error {
	body := []byte(`{"status":"online"}`)
	resp, err := http.Post(baseURL+"/v1/agents/"+agentID+"/heartbeat", "application/json", bytes.NewReader(body))
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unexpected status %d", resp.StatusCode)
	}
	return nil
}
