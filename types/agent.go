package types

import "time"

// Agent is a registered participant: identity, specialization, the
// capabilities it owns, and the scoring inputs Team Formation consults.
// Mutated only by the Entity Store (store.Repository); created at
// registration, destroyed rarely.
type Agent struct {
	ID                  string
	Name                string
	Specialization      string
	Capabilities        map[string]struct{} // set of Capability IDs
	PerformanceRating   float64             // 0-10
	CollaborationScore  float64             // 0-1
	CostPerToken        float64             // >= 0
	Available           bool
	CreatedAt           time.Time
	UpdatedAt           time.Time
}

// NewAgent constructs an Agent with a deduplicated capability set.
func NewAgent(id, name, specialization string, capabilities []string) *Agent {
	caps := make(map[string]struct{}, len(capabilities))
	for _, c := range capabilities {
		caps[c] = struct{}{}
	}
	now := time.Now()
	return &Agent{
		ID:             id,
		Name:           name,
		Specialization: specialization,
		Capabilities:   caps,
		Available:      true,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
}

// HasCapability reports whether the agent owns capability id.
func (a *Agent) HasCapability(id string) bool {
	_, ok := a.Capabilities[id]
	return ok
}

// CapabilitySet returns the agent's capability IDs as a slice, unordered.
func (a *Agent) CapabilitySet() []string {
	out := make([]string, 0, len(a.Capabilities))
	for c := range a.Capabilities {
		out = append(out, c)
	}
	return out
}

// Clone returns a deep copy, safe to mutate independently of the stored row.
func (a *Agent) Clone() *Agent {
	caps := make(map[string]struct{}, len(a.Capabilities))
	for k, v := range a.Capabilities {
		caps[k] = v
	}
	clone := *a
	clone.Capabilities = caps
	return &clone
}

// Capability is an immutable (after creation) skill descriptor.
type Capability struct {
	ID              string
	Name            string
	Category        string
	ComplexityLevel int
	IsCore          bool
}

// Role is a seat on a Team: the capabilities it requires, its priority in
// the assignment order, and (once filled) the agent occupying it. A Role
// belongs to exactly one Team once assigned.
type Role struct {
	ID                   string
	Name                 string
	RequiredCapabilities map[string]struct{}
	Priority             int
	Categories           map[string]struct{}
	Filled               bool
	AssignedAgent        string // AgentID, empty if unfilled
	Team                 string // TeamID
}

// NewRole constructs an unfilled Role.
func NewRole(id, name string, requiredCaps []string, priority int, categories []string) *Role {
	caps := make(map[string]struct{}, len(requiredCaps))
	for _, c := range requiredCaps {
		caps[c] = struct{}{}
	}
	cats := make(map[string]struct{}, len(categories))
	for _, c := range categories {
		cats[c] = struct{}{}
	}
	return &Role{
		ID:                   id,
		Name:                 name,
		RequiredCapabilities: caps,
		Priority:             priority,
		Categories:           cats,
	}
}

// RequiredCapSet returns the role's required capability IDs as a slice.
func (r *Role) RequiredCapSet() []string {
	out := make([]string, 0, len(r.RequiredCapabilities))
	for c := range r.RequiredCapabilities {
		out = append(out, c)
	}
	return out
}

// Clone returns a deep copy of the Role.
func (r *Role) Clone() *Role {
	caps := make(map[string]struct{}, len(r.RequiredCapabilities))
	for k, v := range r.RequiredCapabilities {
		caps[k] = v
	}
	cats := make(map[string]struct{}, len(r.Categories))
	for k, v := range r.Categories {
		cats[k] = v
	}
	clone := *r
	clone.RequiredCapabilities = caps
	clone.Categories = cats
	return &clone
}
