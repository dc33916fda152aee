// Package validation implements the field-level business rules for message
// requests. It is the second stage of the request validation pipeline; the
// structural pre-screen lives in the api middleware.
package validation

import (
	"encoding/json"
	"fmt"
	"math"
	"slices"

	"agenthub/internal/config"
)

// Vocabularies the validators check list fields against.
var (
	// AgentTypes are the broadcast target categories.
	AgentTypes = []string{
		"business_analyst",
		"developer",
		"tester",
		"deployer",
		"monitor",
		"custom",
	}

	// Capabilities are the routable agent capabilities.
	Capabilities = []string{
		"text_processing",
		"code_generation",
		"testing",
		"deployment",
		"monitoring",
		"analysis",
		"planning",
	}

	// LoadBalancingStrategies are the accepted route dispatch strategies.
	LoadBalancingStrategies = []string{"round_robin", "least_busy", "random"}

	// Priorities are the accepted priority names on send requests.
	Priorities = []string{"low", "normal", "high", "urgent"}
)

const (
	maxAgentIDLen = 100
	maxActionLen  = 200
	maxTTLSeconds = 86400
	maxAgentTypes = 10
	maxCaps       = 5
)

// Result is the outcome of a validation pass. Errors holds every problem
// found, not just the first one.
type Result struct {
	IsValid  bool     `json:"is_valid"`
	Errors   []string `json:"errors"`
	Warnings []string `json:"warnings"`
}

// Validator applies per-kind business rules to parsed request payloads.
// Each Validate method accumulates all applicable errors before returning
// so the caller sees the complete problem set in one round trip.
type Validator struct {
	cfg *config.ValidationConfig
}

// NewValidator creates a validator bound to the given configuration.
func NewValidator(cfg *config.ValidationConfig) *Validator {
	return &Validator{cfg: cfg}
}

// ValidateSend checks a direct send request: agent_id and action are
// required non-empty strings within length caps; priority, ttl and the
// action allowlist are checked when present.
func (v *Validator) ValidateSend(data map[string]any) Result {
	var errs, warnings []string

	requireString(data, "agent_id", maxAgentIDLen, &errs)
	requireString(data, "action", maxActionLen, &errs)

	if raw, ok := data["priority"]; ok && raw != nil {
		p, isString := raw.(string)
		if !isString || !slices.Contains(Priorities, p) {
			errs = append(errs, fmt.Sprintf("Invalid priority: %v", raw))
		}
	}

	if raw, ok := data["ttl"]; ok && raw != nil {
		ttl, isInt := asInt(raw)
		if !isInt {
			errs = append(errs, "ttl must be an integer")
		} else if ttl < 0 || ttl > maxTTLSeconds {
			errs = append(errs, fmt.Sprintf("ttl must be between 0 and %d seconds", maxTTLSeconds))
		}
	}

	if raw, ok := data["data"]; ok {
		if size := payloadSize(raw); size > v.cfg.MaxDataSizeBytes {
			errs = append(errs, fmt.Sprintf("Data payload too large: %d bytes (max %d)", size, v.cfg.MaxDataSizeBytes))
		}
	}

	if len(v.cfg.AllowedActions) > 0 {
		if action, ok := data["action"].(string); ok && !slices.Contains(v.cfg.AllowedActions, action) {
			errs = append(errs, fmt.Sprintf("Action %q not allowed", action))
		}
	}

	return v.result(errs, warnings)
}

// ValidateBroadcast checks a broadcast request: agent_types (1-10 entries
// from the known vocabulary) and action are required; exclude_agent_ids,
// when present, must be a list of strings.
func (v *Validator) ValidateBroadcast(data map[string]any) Result {
	var errs, warnings []string

	requireList(data, "agent_types", maxAgentTypes, AgentTypes, "Invalid agent type", &errs)
	requireString(data, "action", maxActionLen, &errs)

	if raw, ok := data["exclude_agent_ids"]; ok && raw != nil {
		list, isList := raw.([]any)
		if !isList {
			errs = append(errs, "exclude_agent_ids must be a list")
		} else {
			for _, entry := range list {
				if _, isString := entry.(string); !isString {
					errs = append(errs, "All exclude_agent_ids must be strings")
				}
			}
		}
	}

	return v.result(errs, warnings)
}

// ValidateRoute checks a capability-routed request: capabilities (1-5
// entries from the known vocabulary) and action are required;
// load_balancing, when present, must name a known strategy.
func (v *Validator) ValidateRoute(data map[string]any) Result {
	var errs, warnings []string

	requireList(data, "capabilities", maxCaps, Capabilities, "Invalid capability", &errs)
	requireString(data, "action", maxActionLen, &errs)

	if raw, ok := data["load_balancing"]; ok && raw != nil {
		s, isString := raw.(string)
		if !isString || !slices.Contains(LoadBalancingStrategies, s) {
			errs = append(errs, fmt.Sprintf("Invalid load balancing strategy: %v", raw))
		}
	}

	return v.result(errs, warnings)
}

func (v *Validator) result(errs, warnings []string) Result {
	if errs == nil {
		errs = []string{}
	}
	if warnings == nil || !v.cfg.EnableWarnings {
		warnings = []string{}
	}
	return Result{
		IsValid:  len(errs) == 0,
		Errors:   errs,
		Warnings: warnings,
	}
}

// requireString checks presence, type, non-emptiness and the length cap
// for a required string field.
func requireString(data map[string]any, field string, maxLen int, errs *[]string) {
	raw, ok := data[field]
	if !ok {
		*errs = append(*errs, "Missing required field: "+field)
		return
	}

	s, isString := raw.(string)
	if !isString {
		*errs = append(*errs, field+" must be a string")
		return
	}
	if len(s) == 0 {
		*errs = append(*errs, field+" cannot be empty")
	} else if len(s) > maxLen {
		*errs = append(*errs, fmt.Sprintf("%s too long (max %d characters)", field, maxLen))
	}
}

// requireList checks a required list field against a size cap and a fixed
// vocabulary, reporting each unknown entry individually.
func requireList(data map[string]any, field string, maxLen int, vocabulary []string, badEntry string, errs *[]string) {
	raw, ok := data[field]
	if !ok {
		*errs = append(*errs, "Missing required field: "+field)
		return
	}

	list, isList := raw.([]any)
	if !isList {
		*errs = append(*errs, field+" must be a list")
		return
	}
	if len(list) == 0 {
		*errs = append(*errs, field+" cannot be empty")
		return
	}
	if len(list) > maxLen {
		*errs = append(*errs, fmt.Sprintf("Too many %s (max %d)", field, maxLen))
		return
	}

	for _, entry := range list {
		s, isString := entry.(string)
		if !isString || !slices.Contains(vocabulary, s) {
			*errs = append(*errs, fmt.Sprintf("%s: %v", badEntry, entry))
		}
	}
}

// asInt accepts the integer encodings a decoded JSON payload can carry.
func asInt(raw any) (int, bool) {
	switch n := raw.(type) {
	case int:
		return n, true
	case int64:
		return int(n), true
	case float64:
		if n != math.Trunc(n) {
			return 0, false
		}
		return int(n), true
	case json.Number:
		i, err := n.Int64()
		if err != nil {
			return 0, false
		}
		return int(i), true
	default:
		return 0, false
	}
}

// payloadSize measures the serialized size of a data payload the same way
// the transport will serialize it.
func payloadSize(raw any) int {
	encoded, err := json.Marshal(raw)
	if err != nil {
		return 0
	}
	return len(encoded)
}
