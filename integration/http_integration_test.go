package integration

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

// getBaseURL returns the base URL for API calls.
// Uses AGENTHUB_BASE_URL env var if set (for container tests),
// otherwise defaults to localhost:8080.
func getBaseURL() string {
	if url := os.Getenv("AGENTHUB_BASE_URL"); url != "" {
		return url
	}
	return "http://localhost:8080"
}

// httpClient creates an HTTP client with sensible defaults.
func httpClient() *http.Client {
	return &http.Client{
		Timeout: 10 * time.Second,
	}
}

// doRequest performs an HTTP request and returns the response.
func doRequest(method, path string, body interface{}) (*http.Response, error) {
	var bodyReader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return nil, err
		}
		bodyReader = bytes.NewReader(data)
	}

	url := getBaseURL() + path
	req, err := http.NewRequest(method, url, bodyReader)
	if err != nil {
		return nil, err
	}

	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	return httpClient().Do(req)
}

// parseResponse parses JSON response into target.
func parseResponse(resp *http.Response, target interface{}) error {
	defer resp.Body.Close()
	return json.NewDecoder(resp.Body).Decode(target)
}

// cleanupAgents removes test agents by making DELETE requests.
func cleanupAgents(agentIDs []string) {
	for _, id := range agentIDs {
		_, _ = doRequest("DELETE", "/v1/agents/"+id, nil)
	}
}

var _ = Describe("HTTP Integration Tests", Ordered, func() {
	var createdAgentIDs []string

	// registerAgent creates an agent and records its ID for cleanup.
	registerAgent := func(name, agentType string, capabilities []string) string {
		payload := map[string]interface{}{
			"name":         name,
			"type":         agentType,
			"capabilities": capabilities,
		}

		resp, err := doRequest("POST", "/v1/agents", payload)
		Expect(err).NotTo(HaveOccurred())
		Expect(resp.StatusCode).To(Equal(http.StatusCreated))

		var result map[string]interface{}
		Expect(parseResponse(resp, &result)).To(Succeed())
		data := result["data"].(map[string]interface{})
		id := data["id"].(string)
		createdAgentIDs = append(createdAgentIDs, id)
		return id
	}

	heartbeat := func(agentID, status string, activeTasks int) {
		payload := map[string]interface{}{
			"status":       status,
			"active_tasks": activeTasks,
		}
		resp, err := doRequest("POST", "/v1/agents/"+agentID+"/heartbeat", payload)
		Expect(err).NotTo(HaveOccurred())
		resp.Body.Close()
		Expect(resp.StatusCode).To(Equal(http.StatusOK))
	}

	BeforeAll(func() {
		// Check if the server is reachable
		resp, err := doRequest("GET", "/healthz", nil)
		if err != nil {
			Skip(fmt.Sprintf("Server not reachable at %s: %v", getBaseURL(), err))
		}
		resp.Body.Close()
		Expect(resp.StatusCode).To(Equal(http.StatusOK))
	})

	AfterAll(func() {
		cleanupAgents(createdAgentIDs)
	})

	Describe("Health Check", func() {
		It("should return healthy status", func() {
			resp, err := doRequest("GET", "/healthz", nil)
			Expect(err).NotTo(HaveOccurred())
			defer resp.Body.Close()

			Expect(resp.StatusCode).To(Equal(http.StatusOK))
		})
	})

	Describe("Agents API", func() {
		var agentID string

		It("should register an agent", func() {
			agentID = registerAgent("integration-analyst", "business_analyst", []string{"analysis"})
			Expect(agentID).NotTo(BeEmpty())
		})

		It("should report the agent as unavailable before any heartbeat", func() {
			resp, err := doRequest("GET", "/v1/messages/agent/"+agentID+"/availability", nil)
			Expect(err).NotTo(HaveOccurred())
			Expect(resp.StatusCode).To(Equal(http.StatusOK))

			var result map[string]interface{}
			Expect(parseResponse(resp, &result)).To(Succeed())
			data := result["data"].(map[string]interface{})
			Expect(data["available"]).To(BeFalse())
		})

		It("should mark the agent available after a heartbeat", func() {
			heartbeat(agentID, "online", 0)

			resp, err := doRequest("GET", "/v1/messages/agent/"+agentID+"/availability", nil)
			Expect(err).NotTo(HaveOccurred())
			Expect(resp.StatusCode).To(Equal(http.StatusOK))

			var result map[string]interface{}
			Expect(parseResponse(resp, &result)).To(Succeed())
			data := result["data"].(map[string]interface{})
			Expect(data["available"]).To(BeTrue())
		})

		It("should list agents filtered by type", func() {
			resp, err := doRequest("GET", "/v1/agents?type=business_analyst", nil)
			Expect(err).NotTo(HaveOccurred())
			Expect(resp.StatusCode).To(Equal(http.StatusOK))

			var result map[string]interface{}
			Expect(parseResponse(resp, &result)).To(Succeed())
			agents := result["data"].([]interface{})
			Expect(len(agents)).To(BeNumerically(">=", 1))
		})
	})

	Describe("Message Send API", func() {
		var agentID string

		BeforeAll(func() {
			agentID = registerAgent("integration-sender", "developer", []string{"code_generation"})
			heartbeat(agentID, "online", 0)
		})

		It("should enqueue a message for an online agent", func() {
			payload := map[string]interface{}{
				"agent_id": agentID,
				"action":   "analyze_business_requirement",
				"data":     map[string]interface{}{"task": "t1"},
				"priority": "high",
			}

			resp, err := doRequest("POST", "/v1/messages/send", payload)
			Expect(err).NotTo(HaveOccurred())
			Expect(resp.StatusCode).To(Equal(http.StatusCreated))

			var result map[string]interface{}
			Expect(parseResponse(resp, &result)).To(Succeed())
			Expect(result["success"]).To(BeTrue())

			data := result["data"].(map[string]interface{})
			Expect(data["queue_id"]).NotTo(BeEmpty())
			Expect(data["message_id"]).NotTo(BeEmpty())
			Expect(data["status"]).To(Equal("pending"))
		})

		It("should reject a message for an unknown agent with 503", func() {
			payload := map[string]interface{}{
				"agent_id": "no-such-agent",
				"action":   "noop",
			}

			resp, err := doRequest("POST", "/v1/messages/send", payload)
			Expect(err).NotTo(HaveOccurred())

			var result map[string]interface{}
			Expect(parseResponse(resp, &result)).To(Succeed())
			Expect(resp.StatusCode).To(Equal(http.StatusServiceUnavailable))
			Expect(result["error"].(map[string]interface{})["code"]).To(Equal("AGENT_UNAVAILABLE"))
		})

		It("should reject a structurally invalid request with 400", func() {
			payload := map[string]interface{}{
				"action": "noop",
			}

			resp, err := doRequest("POST", "/v1/messages/send", payload)
			Expect(err).NotTo(HaveOccurred())

			var result map[string]interface{}
			Expect(parseResponse(resp, &result)).To(Succeed())
			Expect(resp.StatusCode).To(Equal(http.StatusBadRequest))
			Expect(result["success"]).To(BeFalse())
		})
	})

	Describe("Message Broadcast API", func() {
		BeforeAll(func() {
			for i := 0; i < 2; i++ {
				id := registerAgent(fmt.Sprintf("integration-tester-%d", i), "tester", []string{"testing"})
				heartbeat(id, "online", 0)
			}
		})

		It("should deliver a broadcast to all agents of the target types", func() {
			payload := map[string]interface{}{
				"agent_types": []string{"tester"},
				"action":      "run_suite",
			}

			resp, err := doRequest("POST", "/v1/messages/broadcast", payload)
			Expect(err).NotTo(HaveOccurred())
			Expect(resp.StatusCode).To(Equal(http.StatusCreated))

			var result map[string]interface{}
			Expect(parseResponse(resp, &result)).To(Succeed())
			data := result["data"].(map[string]interface{})
			Expect(data["successful_sends"]).To(BeNumerically(">=", 2))
		})

		It("should reject an unknown agent type", func() {
			payload := map[string]interface{}{
				"agent_types": []string{"not_a_real_type"},
				"action":      "noop",
			}

			resp, err := doRequest("POST", "/v1/messages/broadcast", payload)
			Expect(err).NotTo(HaveOccurred())
			resp.Body.Close()
			Expect(resp.StatusCode).To(Equal(http.StatusBadRequest))
		})
	})

	Describe("Message Route API", func() {
		BeforeAll(func() {
			id := registerAgent("integration-router-target", "monitor", []string{"monitoring"})
			heartbeat(id, "online", 1)
		})

		It("should route to an agent with the requested capabilities", func() {
			payload := map[string]interface{}{
				"capabilities":   []string{"monitoring"},
				"action":         "watch",
				"load_balancing": "least_busy",
			}

			resp, err := doRequest("POST", "/v1/messages/route", payload)
			Expect(err).NotTo(HaveOccurred())
			Expect(resp.StatusCode).To(Equal(http.StatusCreated))

			var result map[string]interface{}
			Expect(parseResponse(resp, &result)).To(Succeed())
			data := result["data"].(map[string]interface{})
			Expect(data["agent_id"]).NotTo(BeEmpty())
			Expect(data["queue_id"]).NotTo(BeEmpty())
		})

		It("should return 503 when no agent offers the capability", func() {
			payload := map[string]interface{}{
				"capabilities": []string{"deployment"},
				"action":       "deploy",
			}

			resp, err := doRequest("POST", "/v1/messages/route", payload)
			Expect(err).NotTo(HaveOccurred())

			var result map[string]interface{}
			Expect(parseResponse(resp, &result)).To(Succeed())
			Expect(resp.StatusCode).To(Equal(http.StatusServiceUnavailable))
		})
	})

	Describe("Queue API", func() {
		It("should expose queue statistics", func() {
			resp, err := doRequest("GET", "/v1/messages/queue/status", nil)
			Expect(err).NotTo(HaveOccurred())
			Expect(resp.StatusCode).To(Equal(http.StatusOK))

			var result map[string]interface{}
			Expect(parseResponse(resp, &result)).To(Succeed())
			data := result["data"].(map[string]interface{})
			Expect(data).To(HaveKey("backend"))
			Expect(data).To(HaveKey("total_messages"))
		})
	})

	Describe("Request Screening", func() {
		It("should reject a non-JSON content type", func() {
			req, err := http.NewRequest("POST", getBaseURL()+"/v1/messages/send",
				bytes.NewReader([]byte("agent_id=a&action=x")))
			Expect(err).NotTo(HaveOccurred())
			req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

			resp, err := httpClient().Do(req)
			Expect(err).NotTo(HaveOccurred())

			var result map[string]interface{}
			Expect(parseResponse(resp, &result)).To(Succeed())
			Expect(resp.StatusCode).To(Equal(http.StatusBadRequest))
			Expect(result["error"].(map[string]interface{})["code"]).To(Equal("INVALID_CONTENT_TYPE"))
		})

		It("should reject malformed JSON", func() {
			req, err := http.NewRequest("POST", getBaseURL()+"/v1/messages/send",
				bytes.NewReader([]byte("{not json")))
			Expect(err).NotTo(HaveOccurred())
			req.Header.Set("Content-Type", "application/json")

			resp, err := httpClient().Do(req)
			Expect(err).NotTo(HaveOccurred())

			var result map[string]interface{}
			Expect(parseResponse(resp, &result)).To(Succeed())
			Expect(resp.StatusCode).To(Equal(http.StatusBadRequest))
			Expect(result["error"].(map[string]interface{})["code"]).To(Equal("INVALID_JSON_FORMAT"))
		})
	})
})
