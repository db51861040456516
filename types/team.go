package types

import "time"

// TeamStatus tracks a Team's lifecycle.
type TeamStatus string

const (
	TeamForming   TeamStatus = "FORMING"
	TeamActive    TeamStatus = "ACTIVE"
	TeamPartial   TeamStatus = "PARTIAL"
	TeamComplete  TeamStatus = "COMPLETE"
	TeamDisbanded TeamStatus = "DISBANDED"
)

// Team is the outcome of Team Formation: a set of agents occupying roles
// against a task, with capabilities maintained as the union of members'
// capabilities (spec.md §3 invariant) and a version counter for the
// Entity Store's optimistic concurrency.
type Team struct {
	ID                 string
	Name               string
	Task               string // TaskID
	Agents             map[string]struct{} // set of AgentID
	Leader             string              // AgentID, empty if none
	Roles              []*Role
	Capabilities       map[string]struct{} // union over member agents' capabilities
	Status             TeamStatus
	FormationStrategy  string
	PerformanceMetrics map[string]float64
	Version            int
	CreatedAt          time.Time
	UpdatedAt          time.Time
}

// NewTeam constructs an empty, FORMING team for the given task and strategy.
func NewTeam(id, name, task, strategy string) *Team {
	now := time.Now()
	return &Team{
		ID:                 id,
		Name:               name,
		Task:               task,
		Agents:             map[string]struct{}{},
		Roles:              nil,
		Capabilities:       map[string]struct{}{},
		Status:             TeamForming,
		FormationStrategy:  strategy,
		PerformanceMetrics: map[string]float64{},
		CreatedAt:          now,
		UpdatedAt:          now,
	}
}

// AddMember adds agentID to the team and unions in its capabilities.
func (tm *Team) AddMember(agentID string, agentCaps map[string]struct{}) {
	tm.Agents[agentID] = struct{}{}
	for c := range agentCaps {
		tm.Capabilities[c] = struct{}{}
	}
}

// RecomputeCapabilities rebuilds the Team's capability set from scratch
// given a lookup of agent capability sets — used after role reassignment
// to re-establish the spec.md §3 invariant exactly.
func (tm *Team) RecomputeCapabilities(agentCaps func(agentID string) map[string]struct{}) {
	union := map[string]struct{}{}
	for agentID := range tm.Agents {
		for c := range agentCaps(agentID) {
			union[c] = struct{}{}
		}
	}
	tm.Capabilities = union
}

// FilledRoleAgents returns the set of AgentIDs assigned to filled roles.
func (tm *Team) FilledRoleAgents() map[string]struct{} {
	out := map[string]struct{}{}
	for _, r := range tm.Roles {
		if r.Filled && r.AssignedAgent != "" {
			out[r.AssignedAgent] = struct{}{}
		}
	}
	return out
}

// AllRolesFilled reports whether every role on the team is filled.
func (tm *Team) AllRolesFilled() bool {
	for _, r := range tm.Roles {
		if !r.Filled {
			return false
		}
	}
	return true
}

// Clone returns a deep copy of the Team.
func (tm *Team) Clone() *Team {
	agents := make(map[string]struct{}, len(tm.Agents))
	for k, v := range tm.Agents {
		agents[k] = v
	}
	caps := make(map[string]struct{}, len(tm.Capabilities))
	for k, v := range tm.Capabilities {
		caps[k] = v
	}
	roles := make([]*Role, len(tm.Roles))
	for i, r := range tm.Roles {
		roles[i] = r.Clone()
	}
	metrics := make(map[string]float64, len(tm.PerformanceMetrics))
	for k, v := range tm.PerformanceMetrics {
		metrics[k] = v
	}
	clone := *tm
	clone.Agents = agents
	clone.Capabilities = caps
	clone.Roles = roles
	clone.PerformanceMetrics = metrics
	return &clone
}
