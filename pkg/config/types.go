// Package config loads the runtime's YAML configuration tree (approval
// policy, agent registry, queue sizing, lock registry, retention) and merges it
// with environment-variable overrides, mirroring the teacher's
// config-loader/defaults/merge/validator split.
package config

import "time"

// AgentDefinition is one entry in the agent registry: the system
// prompt file it reads, and the tool/file-pattern allow-lists it is
// restricted to.
type AgentDefinition struct {
	Name             string   `yaml:"name" validate:"required"`
	PromptFile       string   `yaml:"prompt_file" validate:"required"`
	AllowedTools     []string `yaml:"allowed_tools"`
	FilePatterns     []string `yaml:"file_patterns"`
	MaxIterations    int      `yaml:"max_iterations" validate:"omitempty,min=1"`
}

// ApprovalRuleCondition is one `_gt`/`_lt`/`_eq`-suffixed numeric or
// equality condition evaluated against a request's details map.
type ApprovalRuleCondition map[string]any

// ApprovalRule matches a request type and subject pattern, optionally
// gated by conditions on the request's details.
type ApprovalRule struct {
	RequestType    string                `yaml:"request_type" validate:"required"`
	SubjectPattern string                `yaml:"subject_pattern" validate:"required"`
	Conditions     ApprovalRuleCondition `yaml:"conditions,omitempty"`
	RequiresApproval bool                `yaml:"requires_approval"`
	Reason         string                `yaml:"reason,omitempty"`
}

// ApprovalPolicyConfig is the full rule-based approval policy.
type ApprovalPolicyConfig struct {
	Enabled                bool           `yaml:"enabled"`
	DefaultRequiresApproval bool          `yaml:"default_requires_approval"`
	Rules                  []ApprovalRule `yaml:"rules"`
	SweepInterval          time.Duration  `yaml:"sweep_interval"`
	Timeout                time.Duration  `yaml:"timeout"`
}

// QueueConfig sizes the bounded work queues used by the facade and
// plan execution service.
type QueueConfig struct {
	Capacity       int           `yaml:"capacity" validate:"min=1"`
	WorkerCount    int           `yaml:"worker_count" validate:"min=1"`
	AcquireTimeout time.Duration `yaml:"acquire_timeout"`
}

// LockRegistryConfig sizes the per-conversation lock registry (§5).
type LockRegistryConfig struct {
	MaxLocks int `yaml:"max_locks" validate:"min=1"`
}

// RetentionConfig controls the conversation/event retention job: how
// long inactive conversations and orphaned event rows survive before
// the periodic cleanup job deletes them.
type RetentionConfig struct {
	// ConversationInactiveHours is how many hours a conversation may sit
	// idle before it becomes eligible for deletion.
	ConversationInactiveHours int `yaml:"conversation_inactive_hours" validate:"omitempty,min=1"`

	// EventTTL is the maximum age of event rows before deletion.
	EventTTL time.Duration `yaml:"event_ttl"`

	// CleanupInterval is how often the retention job runs.
	CleanupInterval time.Duration `yaml:"cleanup_interval"`
}

// Defaults mirrors the teacher's Defaults block: process-wide knobs
// that individual agents/chains can override.
type Defaults struct {
	LLMProvider       string        `yaml:"llm_provider" validate:"required"`
	MaxIterations     int           `yaml:"max_iterations" validate:"omitempty,min=1"`
	IterationTimeout  time.Duration `yaml:"iteration_timeout"`
	MaxAgentSwitches  int           `yaml:"max_agent_switches" validate:"omitempty,min=1"`
	ConcurrentLevels  bool          `yaml:"concurrent_levels"`
}

// Config is the fully resolved runtime configuration.
type Config struct {
	configDir string

	Defaults       Defaults             `yaml:"defaults"`
	ApprovalPolicy ApprovalPolicyConfig `yaml:"approval_policy"`
	Agents         []AgentDefinition    `yaml:"agents"`
	Queue          QueueConfig          `yaml:"queue"`
	LockRegistry   LockRegistryConfig   `yaml:"lock_registry"`
	Retention      RetentionConfig      `yaml:"retention"`

	// Env-sourced, never in the YAML file.
	LLMProxyURL     string `yaml:"-"`
	InternalAPIKey  string `yaml:"-"`
	LogLevel        string `yaml:"-"`
	MultiAgentMode  bool   `yaml:"-"`
}

// ConfigDir returns the directory this configuration was loaded from.
func (c *Config) ConfigDir() string {
	return c.configDir
}

// GetAgent returns the named agent definition, or false if it is not
// registered.
func (c *Config) GetAgent(name string) (AgentDefinition, bool) {
	for _, a := range c.Agents {
		if a.Name == name {
			return a, true
		}
	}
	return AgentDefinition{}, false
}

// Stats summarizes what this configuration loaded, for startup logging.
type Stats struct {
	Agents int
	Rules  int
}

// Stats returns counts of registered config entries.
func (c *Config) Stats() Stats {
	return Stats{Agents: len(c.Agents), Rules: len(c.ApprovalPolicy.Rules)}
}
