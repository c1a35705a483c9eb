package planner

import (
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"strings"
)

// Plan is the structured reply the model must produce for a task.
type Plan struct {
	Explanation string   `json:"explanation"`
	Commands    []string `json:"commands"`
}

// Assessment is the model's verdict on whether the task is finished.
type Assessment struct {
	Done    bool   `json:"done"`
	Summary string `json:"summary"`
}

var (
	openingFencePattern = regexp.MustCompile("^```[a-zA-Z]*\n")
	closingFencePattern = regexp.MustCompile("\n```$")
	jsonBlockPattern    = regexp.MustCompile(`(?s)\{.*\}`)
)

// ExtractJSON strips code fences if present and returns the first {...}
// block. Models occasionally wrap their JSON despite instructions not to.
func ExtractJSON(content string) (string, error) {
	trimmed := strings.TrimSpace(content)
	trimmed = openingFencePattern.ReplaceAllString(trimmed, "")
	trimmed = closingFencePattern.ReplaceAllString(trimmed, "")

	if json.Valid([]byte(trimmed)) {
		return trimmed, nil
	}

	block := jsonBlockPattern.FindString(trimmed)
	if block == "" {
		return "", errors.New("model did not return JSON")
	}
	return block, nil
}

// ParsePlan extracts and decodes a command plan from a raw model reply. A
// reply without a commands array is rejected.
func ParsePlan(content string) (Plan, error) {
	block, err := ExtractJSON(content)
	if err != nil {
		return Plan{}, err
	}

	var raw struct {
		Explanation string          `json:"explanation"`
		Commands    json.RawMessage `json:"commands"`
	}
	if err := json.Unmarshal([]byte(block), &raw); err != nil {
		return Plan{}, fmt.Errorf("decode plan: %w", err)
	}
	if len(raw.Commands) == 0 {
		return Plan{}, errors.New("no commands array from model")
	}

	var commands []string
	if err := json.Unmarshal(raw.Commands, &commands); err != nil {
		return Plan{}, fmt.Errorf("decode plan commands: %w", err)
	}

	return Plan{Explanation: raw.Explanation, Commands: commands}, nil
}

// ParseAssessment extracts and decodes a completion verdict from a raw model
// reply.
func ParseAssessment(content string) (Assessment, error) {
	block, err := ExtractJSON(content)
	if err != nil {
		return Assessment{}, err
	}

	var assessment Assessment
	if err := json.Unmarshal([]byte(block), &assessment); err != nil {
		return Assessment{}, fmt.Errorf("decode assessment: %w", err)
	}
	return assessment, nil
}

// Conversation is the ordered message history for one agent run.
type Conversation struct {
	messages []Message
}

// NewConversation starts a conversation seeded with the system prompt.
func NewConversation(systemPrompt string) *Conversation {
	return &Conversation{
		messages: []Message{{Role: "system", Content: systemPrompt}},
	}
}

// AddUser appends a user turn.
func (c *Conversation) AddUser(content string) {
	if c == nil {
		return
	}
	c.messages = append(c.messages, Message{Role: "user", Content: content})
}

// AddAssistant appends an assistant turn.
func (c *Conversation) AddAssistant(content string) {
	if c == nil {
		return
	}
	c.messages = append(c.messages, Message{Role: "assistant", Content: content})
}

// Messages returns a copy of the conversation history.
func (c *Conversation) Messages() []Message {
	if c == nil {
		return nil
	}
	messages := make([]Message, len(c.messages))
	copy(messages, c.messages)
	return messages
}
