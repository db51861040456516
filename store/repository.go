// Package store implements the Entity Store (C1): the system of record for
// Agents, Capabilities, Roles, Tasks, Teams, and SharedContexts, behind a
// Repository interface so callers never depend on the backing storage.
package store

import (
	"context"

	"github.com/coordmesh/core/types"
)

// Repository is the Entity Store's public surface. All methods are safe for
// concurrent use. Optimistic concurrency on Team and SharedContext rows is
// enforced by requiring the caller's expected version on update; a mismatch
// returns a types.Error of Kind types.StaleVersion.
type Repository interface {
	// Agents
	CreateAgent(ctx context.Context, agent *types.Agent) error
	GetAgent(ctx context.Context, id string) (*types.Agent, error)
	UpdateAgent(ctx context.Context, agent *types.Agent) error
	DeleteAgent(ctx context.Context, id string) error
	ListAgents(ctx context.Context) ([]*types.Agent, error)
	FindAgentsByCapability(ctx context.Context, capabilityIDs []string) ([]*types.Agent, error)

	// Capabilities
	CreateCapability(ctx context.Context, cap *types.Capability) error
	GetCapability(ctx context.Context, id string) (*types.Capability, error)
	ListCapabilities(ctx context.Context) ([]*types.Capability, error)

	// Tasks
	CreateTask(ctx context.Context, task *types.Task) error
	GetTask(ctx context.Context, id string) (*types.Task, error)
	UpdateTask(ctx context.Context, task *types.Task) error
	ListTasks(ctx context.Context) ([]*types.Task, error)

	// Teams (optimistic concurrency via Team.Version)
	CreateTeam(ctx context.Context, team *types.Team) error
	GetTeam(ctx context.Context, id string) (*types.Team, error)
	UpdateTeam(ctx context.Context, team *types.Team, expectedVersion int) error
	ListTeams(ctx context.Context) ([]*types.Team, error)
	FindTeamsByTask(ctx context.Context, taskID string) ([]*types.Team, error)

	// SharedContexts (optimistic concurrency via SharedContext.Version)
	CreateContext(ctx context.Context, sc *types.SharedContext) error
	GetContext(ctx context.Context, id string) (*types.SharedContext, error)
	UpdateContext(ctx context.Context, sc *types.SharedContext, expectedVersion int) error
	DeleteContext(ctx context.Context, id string) error
	ListContexts(ctx context.Context) ([]*types.SharedContext, error)
	SearchContexts(ctx context.Context, predicate func(*types.SharedContext) bool) ([]*types.SharedContext, error)

	// Context version history, append-only.
	AppendContextVersion(ctx context.Context, v *types.ContextVersion) error
	GetContextVersion(ctx context.Context, contextID, versionID string) (*types.ContextVersion, error)
	ListContextVersions(ctx context.Context, contextID string) ([]*types.ContextVersion, error)

	// Negotiations
	CreateNegotiation(ctx context.Context, n *types.Negotiation) error
	GetNegotiation(ctx context.Context, id string) (*types.Negotiation, error)
	UpdateNegotiation(ctx context.Context, n *types.Negotiation) error
	ListNegotiations(ctx context.Context) ([]*types.Negotiation, error)
}
