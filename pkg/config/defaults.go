package config

import "time"

// defaultConfig seeds every field that YAML is allowed to leave unset.
// Mirrors the teacher's defaults.go seed, merged onto the loaded file
// via mergo so a partial config.yaml only needs to name overrides.
func defaultConfig() Config {
	return Config{
		Defaults: Defaults{
			LLMProvider:      "openai-default",
			MaxIterations:    10,
			IterationTimeout: 60 * time.Second,
			MaxAgentSwitches: 25,
			ConcurrentLevels: false,
		},
		ApprovalPolicy: ApprovalPolicyConfig{
			Enabled:                 true,
			DefaultRequiresApproval: false,
			SweepInterval:           30 * time.Second,
			Timeout:                 15 * time.Minute,
		},
		Queue: QueueConfig{
			Capacity:       100,
			WorkerCount:    4,
			AcquireTimeout: 5 * time.Second,
		},
		LockRegistry: LockRegistryConfig{
			MaxLocks: 10_000,
		},
		Retention: RetentionConfig{
			ConversationInactiveHours: 24 * 30,
			EventTTL:                  1 * time.Hour,
			CleanupInterval:           12 * time.Hour,
		},
	}
}
