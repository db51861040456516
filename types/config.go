package types

import "time"

// ContextConfig tunes the Shared Context Engine (C2).
type ContextConfig struct {
	NotificationQueueSize int           `env:"COORDCORE_CONTEXT_NOTIFY_QUEUE_SIZE" envDefault:"256"`
	ArchivalEveryNVersions int          `env:"COORDCORE_CONTEXT_ARCHIVE_EVERY_N" envDefault:"50"`
	MaxContentBytes       int           `env:"COORDCORE_CONTEXT_MAX_CONTENT_BYTES" envDefault:"1048576"`
	DefaultGrantTTL       time.Duration `env:"COORDCORE_CONTEXT_DEFAULT_GRANT_TTL" envDefault:"0"`
}

// TeamFormationConfig tunes the Team Formation Engine (C3).
type TeamFormationConfig struct {
	CollaborationEMAAlpha  float64 `env:"COORDCORE_TEAM_EMA_ALPHA" envDefault:"0.3"`
	DefaultStrategy        string  `env:"COORDCORE_TEAM_DEFAULT_STRATEGY" envDefault:"BALANCED"`
	RecommendationCount    int     `env:"COORDCORE_TEAM_RECOMMENDATION_COUNT" envDefault:"5"`
	AvailabilityGuardOn    bool    `env:"COORDCORE_TEAM_AVAILABILITY_GUARD" envDefault:"false"`
	GuardFailureThreshold  int     `env:"COORDCORE_TEAM_GUARD_FAILURE_THRESHOLD" envDefault:"5"`
	GuardResetTimeout      time.Duration `env:"COORDCORE_TEAM_GUARD_RESET_TIMEOUT" envDefault:"30s"`
}

// NegotiationConfig tunes the Negotiation Engine (C4).
type NegotiationConfig struct {
	DefaultMaxRounds      int                `env:"COORDCORE_NEG_DEFAULT_MAX_ROUNDS" envDefault:"10"`
	DefaultRoundTimeout   time.Duration      `env:"COORDCORE_NEG_ROUND_TIMEOUT" envDefault:"60s"`
	DefaultStrategy       ResolutionStrategy `env:"COORDCORE_NEG_DEFAULT_STRATEGY" envDefault:"COMPROMISE"`
	ResourceOptimizationEnabled bool         `env:"COORDCORE_NEG_RESOURCE_OPTIMIZATION_ENABLED" envDefault:"false"`
	ResourceMaxQuantities map[string]float64 `env:"-"` // populated programmatically, not via env
	DefaultResourceMax    float64            `env:"COORDCORE_NEG_DEFAULT_RESOURCE_MAX" envDefault:"100"`
}

// Config is the root configuration tree for a coordcore deployment.
type Config struct {
	Context       ContextConfig
	TeamFormation TeamFormationConfig
	Negotiation   NegotiationConfig
	NATSURL       string `env:"COORDCORE_NATS_URL" envDefault:"nats://127.0.0.1:4222"`
	LogLevel      string `env:"COORDCORE_LOG_LEVEL" envDefault:"info"`
}

// DefaultConfig returns a Config populated with the documented defaults,
// equivalent to what env.Parse would produce against an empty environment.
func DefaultConfig() Config {
	return Config{
		Context: ContextConfig{
			NotificationQueueSize:  256,
			ArchivalEveryNVersions: 50,
			MaxContentBytes:        1048576,
		},
		TeamFormation: TeamFormationConfig{
			CollaborationEMAAlpha: 0.3,
			DefaultStrategy:       "BALANCED",
			RecommendationCount:   5,
			GuardFailureThreshold: 5,
			GuardResetTimeout:     30 * time.Second,
		},
		Negotiation: NegotiationConfig{
			DefaultMaxRounds:    10,
			DefaultRoundTimeout: 60 * time.Second,
			DefaultStrategy:     ResolutionCompromise,
			ResourceMaxQuantities: map[string]float64{},
			DefaultResourceMax:  100,
		},
		NATSURL:  "nats://127.0.0.1:4222",
		LogLevel: "info",
	}
}

// ResourceMax returns the configured ceiling for a resource key, falling
// back to DefaultResourceMax when the key has no specific override.
func (c NegotiationConfig) ResourceMax(key string) float64 {
	if v, ok := c.ResourceMaxQuantities[key]; ok {
		return v
	}
	return c.DefaultResourceMax
}
