package types

import "time"

// AccessLevel is the granted permission tier on a SharedContext.
type AccessLevel string

const (
	AccessReadOnly  AccessLevel = "READ_ONLY"
	AccessReadWrite AccessLevel = "READ_WRITE"
	AccessAdmin     AccessLevel = "ADMIN"
)

// ContextAccess is one agent's grant on a SharedContext. Expired access
// (ExpiresAt non-nil and in the past) is treated as absent everywhere.
type ContextAccess struct {
	AgentID   string
	Level     AccessLevel
	GrantedAt time.Time
	GrantedBy string
	ExpiresAt *time.Time
}

// Expired reports whether this grant has passed its expiry as of now.
func (a ContextAccess) Expired(now time.Time) bool {
	return a.ExpiresAt != nil && now.After(*a.ExpiresAt)
}

// ChangeOp is the kind of mutation a ContextChange records.
type ChangeOp string

const (
	ChangeCreate ChangeOp = "CREATE"
	ChangeUpdate ChangeOp = "UPDATE"
	ChangeDelete ChangeOp = "DELETE"
	ChangeMerge  ChangeOp = "MERGE"
)

// ContextChange is one path-scoped mutation within a ContextVersion.
type ContextChange struct {
	Operation ChangeOp
	Path      string
	OldValue  Value
	NewValue  Value
	AgentID   string
	Timestamp time.Time
	Metadata  map[string]string
}

// ContextVersion is an immutable, ordered batch of changes applied atomically.
type ContextVersion struct {
	VersionID      string
	ContextID      string
	Timestamp      time.Time
	AgentID        string
	ParentVersionID string // empty = initial
	Changes        []ContextChange
	Metadata       map[string]string
	ContentHash    string
}

// SharedContext is the versioned, access-controlled content tree agents
// read and write concurrently.
type SharedContext struct {
	ID               string
	Name             string
	ContextType      string
	OwnerID          string
	CreatedAt        time.Time
	UpdatedAt        time.Time
	CurrentVersionID string
	Content          Value
	AccessControl    []ContextAccess
	Subscribers      map[string]struct{} // set of AgentID
	Metadata         map[string]any
	Version          int // optimistic concurrency counter
	IsCompressed     bool
}

// NewSharedContext constructs a Context with an empty ACL and no subscribers.
func NewSharedContext(id, name, contextType, ownerID string, initial Value) *SharedContext {
	now := time.Now()
	return &SharedContext{
		ID:            id,
		Name:          name,
		ContextType:   contextType,
		OwnerID:       ownerID,
		CreatedAt:     now,
		UpdatedAt:     now,
		Content:       initial,
		AccessControl: nil,
		Subscribers:   map[string]struct{}{},
		Metadata:      map[string]any{},
	}
}

// Clone returns a deep copy of the SharedContext.
func (c *SharedContext) Clone() *SharedContext {
	acl := make([]ContextAccess, len(c.AccessControl))
	copy(acl, c.AccessControl)
	subs := make(map[string]struct{}, len(c.Subscribers))
	for k, v := range c.Subscribers {
		subs[k] = v
	}
	meta := make(map[string]any, len(c.Metadata))
	for k, v := range c.Metadata {
		meta[k] = v
	}
	clone := *c
	clone.Content = DeepCopy(c.Content)
	clone.AccessControl = acl
	clone.Subscribers = subs
	clone.Metadata = meta
	return &clone
}
