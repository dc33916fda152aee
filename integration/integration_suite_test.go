// Package integration contains end-to-end integration tests for AgentHub.
// These tests verify the complete flow from HTTP request to message delivery.
package integration

import (
	"testing"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

func TestIntegration(t *testing.T) {
	RegisterFailHandler(Fail)
	RunSpecs(t, "AgentHub Integration Suite")
}
