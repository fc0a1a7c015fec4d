// Package agent turns a prompt plus conversation context into a reply. A
// Service runs the configured LLM provider in a tool loop against the tool
// server and keeps thread memory in the thread store.
package agent

import (
	"errors"
	"fmt"

	"velora/config"
)

var ErrUnknownAgent = errors.New("unknown agent")

// Agent is a named instruction set the gateway exposes as <id>_send.
type Agent struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Instruction string `json:"instruction,omitempty"`
}

// FromConfig converts configured agents, rejecting empty or duplicate ids.
func FromConfig(cfgs []config.AgentConfig) ([]Agent, error) {
	seen := make(map[string]bool, len(cfgs))
	agents := make([]Agent, 0, len(cfgs))

	for _, c := range cfgs {
		if c.ID == "" {
			return nil, fmt.Errorf("agent id cannot be empty")
		}
		if seen[c.ID] {
			return nil, fmt.Errorf("duplicate agent id %q", c.ID)
		}
		seen[c.ID] = true

		name := c.Name
		if name == "" {
			name = c.ID
		}
		agents = append(agents, Agent{ID: c.ID, Name: name, Instruction: c.Instruction})
	}
	return agents, nil
}
