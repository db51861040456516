package store

import (
	"context"
	"fmt"
	"sync"
	"time"

	cache "github.com/patrickmn/go-cache"

	"github.com/coordmesh/core/types"
)

// ═══════════════════════════════════════════════════════════════════════════
// IN-MEMORY ENTITY STORE
// A single sync.RWMutex-guarded map set per entity kind, with an optional
// go-cache read-through layer in front of Agent/Task lookups — the hot path
// for Team Formation's repeated capability scans.
// ═══════════════════════════════════════════════════════════════════════════

// MemoryRepository is an in-process Repository implementation. Safe for
// concurrent use; intended for tests, demos, and single-process deployments.
type MemoryRepository struct {
	mu sync.RWMutex

	agents       map[string]*types.Agent
	capabilities map[string]*types.Capability
	tasks        map[string]*types.Task
	teams        map[string]*types.Team
	contexts     map[string]*types.SharedContext
	versions     map[string][]*types.ContextVersion // contextID -> versions, append order
	negotiations map[string]*types.Negotiation

	readCache *cache.Cache // optional; nil disables caching entirely
}

// NewMemoryRepository constructs an empty repository. When cacheTTL is > 0,
// Agent and Task reads are served through a go-cache read-through cache of
// that TTL, invalidated on every write to the corresponding entity.
func NewMemoryRepository(cacheTTL time.Duration) *MemoryRepository {
	r := &MemoryRepository{
		agents:       map[string]*types.Agent{},
		capabilities: map[string]*types.Capability{},
		tasks:        map[string]*types.Task{},
		teams:        map[string]*types.Team{},
		contexts:     map[string]*types.SharedContext{},
		versions:     map[string][]*types.ContextVersion{},
		negotiations: map[string]*types.Negotiation{},
	}
	if cacheTTL > 0 {
		r.readCache = cache.New(cacheTTL, cacheTTL*2)
	}
	return r
}

func notFound(kind, id string) error {
	return types.NewError(types.NotFound, fmt.Sprintf("%s %s not found", kind, id), nil)
}

func invalidArg(msg string) error {
	return types.NewError(types.InvalidArgument, msg, nil)
}

// ───────────────────────────── Agents ─────────────────────────────

func (r *MemoryRepository) cacheKey(kind, id string) string { return kind + ":" + id }

func (r *MemoryRepository) CreateAgent(ctx context.Context, agent *types.Agent) error {
	if agent.ID == "" {
		return invalidArg("agent id required")
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.agents[agent.ID]; exists {
		return types.NewError(types.InvalidState, fmt.Sprintf("agent %s already exists", agent.ID), nil)
	}
	r.agents[agent.ID] = agent.Clone()
	r.invalidate("agent", agent.ID)
	return nil
}

func (r *MemoryRepository) GetAgent(ctx context.Context, id string) (*types.Agent, error) {
	if r.readCache != nil {
		if v, ok := r.readCache.Get(r.cacheKey("agent", id)); ok {
			return v.(*types.Agent).Clone(), nil
		}
	}
	r.mu.RLock()
	a, ok := r.agents[id]
	r.mu.RUnlock()
	if !ok {
		return nil, notFound("agent", id)
	}
	clone := a.Clone()
	if r.readCache != nil {
		r.readCache.SetDefault(r.cacheKey("agent", id), clone)
	}
	return clone, nil
}

func (r *MemoryRepository) UpdateAgent(ctx context.Context, agent *types.Agent) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.agents[agent.ID]; !ok {
		return notFound("agent", agent.ID)
	}
	agent.UpdatedAt = time.Now()
	r.agents[agent.ID] = agent.Clone()
	r.invalidate("agent", agent.ID)
	return nil
}

func (r *MemoryRepository) DeleteAgent(ctx context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.agents[id]; !ok {
		return notFound("agent", id)
	}
	delete(r.agents, id)
	r.invalidate("agent", id)
	return nil
}

func (r *MemoryRepository) ListAgents(ctx context.Context) ([]*types.Agent, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*types.Agent, 0, len(r.agents))
	for _, a := range r.agents {
		out = append(out, a.Clone())
	}
	return out, nil
}

func (r *MemoryRepository) FindAgentsByCapability(ctx context.Context, capabilityIDs []string) ([]*types.Agent, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []*types.Agent
	for _, a := range r.agents {
		match := true
		for _, c := range capabilityIDs {
			if !a.HasCapability(c) {
				match = false
				break
			}
		}
		if match {
			out = append(out, a.Clone())
		}
	}
	return out, nil
}

func (r *MemoryRepository) invalidate(kind, id string) {
	if r.readCache != nil {
		r.readCache.Delete(r.cacheKey(kind, id))
	}
}

// ───────────────────────────── Capabilities ─────────────────────────────

func (r *MemoryRepository) CreateCapability(ctx context.Context, cap *types.Capability) error {
	if cap.ID == "" {
		return invalidArg("capability id required")
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	c := *cap
	r.capabilities[cap.ID] = &c
	return nil
}

func (r *MemoryRepository) GetCapability(ctx context.Context, id string) (*types.Capability, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	c, ok := r.capabilities[id]
	if !ok {
		return nil, notFound("capability", id)
	}
	clone := *c
	return &clone, nil
}

func (r *MemoryRepository) ListCapabilities(ctx context.Context) ([]*types.Capability, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*types.Capability, 0, len(r.capabilities))
	for _, c := range r.capabilities {
		clone := *c
		out = append(out, &clone)
	}
	return out, nil
}

// ───────────────────────────── Tasks ─────────────────────────────

func (r *MemoryRepository) CreateTask(ctx context.Context, task *types.Task) error {
	if task.ID == "" {
		return invalidArg("task id required")
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.tasks[task.ID]; exists {
		return types.NewError(types.InvalidState, fmt.Sprintf("task %s already exists", task.ID), nil)
	}
	r.tasks[task.ID] = cloneTask(task)
	r.invalidate("task", task.ID)
	return nil
}

func (r *MemoryRepository) GetTask(ctx context.Context, id string) (*types.Task, error) {
	if r.readCache != nil {
		if v, ok := r.readCache.Get(r.cacheKey("task", id)); ok {
			return cloneTask(v.(*types.Task)), nil
		}
	}
	r.mu.RLock()
	t, ok := r.tasks[id]
	r.mu.RUnlock()
	if !ok {
		return nil, notFound("task", id)
	}
	clone := cloneTask(t)
	if r.readCache != nil {
		r.readCache.SetDefault(r.cacheKey("task", id), clone)
	}
	return clone, nil
}

func (r *MemoryRepository) UpdateTask(ctx context.Context, task *types.Task) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.tasks[task.ID]; !ok {
		return notFound("task", task.ID)
	}
	task.UpdatedAt = time.Now()
	r.tasks[task.ID] = cloneTask(task)
	r.invalidate("task", task.ID)
	return nil
}

func (r *MemoryRepository) ListTasks(ctx context.Context) ([]*types.Task, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*types.Task, 0, len(r.tasks))
	for _, t := range r.tasks {
		out = append(out, cloneTask(t))
	}
	return out, nil
}

func cloneTask(t *types.Task) *types.Task {
	caps := make(map[string]struct{}, len(t.RequiredCapabilities))
	for k, v := range t.RequiredCapabilities {
		caps[k] = v
	}
	roles := make([]*types.Role, len(t.RequiredRoles))
	for i, role := range t.RequiredRoles {
		roles[i] = role.Clone()
	}
	clone := *t
	clone.RequiredCapabilities = caps
	clone.RequiredRoles = roles
	return &clone
}

// ───────────────────────────── Teams ─────────────────────────────

func (r *MemoryRepository) CreateTeam(ctx context.Context, team *types.Team) error {
	if team.ID == "" {
		return invalidArg("team id required")
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.teams[team.ID]; exists {
		return types.NewError(types.InvalidState, fmt.Sprintf("team %s already exists", team.ID), nil)
	}
	team.Version = 1
	r.teams[team.ID] = team.Clone()
	return nil
}

func (r *MemoryRepository) GetTeam(ctx context.Context, id string) (*types.Team, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	t, ok := r.teams[id]
	if !ok {
		return nil, notFound("team", id)
	}
	return t.Clone(), nil
}

// UpdateTeam applies optimistic concurrency: expectedVersion must match the
// stored row's current Version, or a retryable StaleVersion error is returned.
func (r *MemoryRepository) UpdateTeam(ctx context.Context, team *types.Team, expectedVersion int) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cur, ok := r.teams[team.ID]
	if !ok {
		return notFound("team", team.ID)
	}
	if cur.Version != expectedVersion {
		return types.NewError(types.StaleVersion,
			fmt.Sprintf("team %s: expected version %d, current version %d", team.ID, expectedVersion, cur.Version), nil)
	}
	team.Version = cur.Version + 1
	team.UpdatedAt = time.Now()
	r.teams[team.ID] = team.Clone()
	return nil
}

func (r *MemoryRepository) ListTeams(ctx context.Context) ([]*types.Team, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*types.Team, 0, len(r.teams))
	for _, t := range r.teams {
		out = append(out, t.Clone())
	}
	return out, nil
}

func (r *MemoryRepository) FindTeamsByTask(ctx context.Context, taskID string) ([]*types.Team, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []*types.Team
	for _, t := range r.teams {
		if t.Task == taskID {
			out = append(out, t.Clone())
		}
	}
	return out, nil
}

// ───────────────────────────── SharedContexts ─────────────────────────────

func (r *MemoryRepository) CreateContext(ctx context.Context, sc *types.SharedContext) error {
	if sc.ID == "" {
		return invalidArg("context id required")
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.contexts[sc.ID]; exists {
		return types.NewError(types.InvalidState, fmt.Sprintf("context %s already exists", sc.ID), nil)
	}
	sc.Version = 1
	r.contexts[sc.ID] = sc.Clone()
	return nil
}

func (r *MemoryRepository) GetContext(ctx context.Context, id string) (*types.SharedContext, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	sc, ok := r.contexts[id]
	if !ok {
		return nil, notFound("context", id)
	}
	return sc.Clone(), nil
}

// UpdateContext applies optimistic concurrency identically to UpdateTeam.
func (r *MemoryRepository) UpdateContext(ctx context.Context, sc *types.SharedContext, expectedVersion int) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cur, ok := r.contexts[sc.ID]
	if !ok {
		return notFound("context", sc.ID)
	}
	if cur.Version != expectedVersion {
		return types.NewError(types.StaleVersion,
			fmt.Sprintf("context %s: expected version %d, current version %d", sc.ID, expectedVersion, cur.Version), nil)
	}
	sc.Version = cur.Version + 1
	sc.UpdatedAt = time.Now()
	r.contexts[sc.ID] = sc.Clone()
	return nil
}

func (r *MemoryRepository) DeleteContext(ctx context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.contexts[id]; !ok {
		return notFound("context", id)
	}
	delete(r.contexts, id)
	delete(r.versions, id)
	return nil
}

func (r *MemoryRepository) ListContexts(ctx context.Context) ([]*types.SharedContext, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*types.SharedContext, 0, len(r.contexts))
	for _, sc := range r.contexts {
		out = append(out, sc.Clone())
	}
	return out, nil
}

func (r *MemoryRepository) SearchContexts(ctx context.Context, predicate func(*types.SharedContext) bool) ([]*types.SharedContext, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []*types.SharedContext
	for _, sc := range r.contexts {
		if predicate(sc) {
			out = append(out, sc.Clone())
		}
	}
	return out, nil
}

// ───────────────────────────── Context versions ─────────────────────────────

func (r *MemoryRepository) AppendContextVersion(ctx context.Context, v *types.ContextVersion) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	clone := *v
	clone.Changes = append([]types.ContextChange(nil), v.Changes...)
	r.versions[v.ContextID] = append(r.versions[v.ContextID], &clone)
	return nil
}

func (r *MemoryRepository) GetContextVersion(ctx context.Context, contextID, versionID string) (*types.ContextVersion, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, v := range r.versions[contextID] {
		if v.VersionID == versionID {
			clone := *v
			return &clone, nil
		}
	}
	return nil, notFound("context version", versionID)
}

func (r *MemoryRepository) ListContextVersions(ctx context.Context, contextID string) ([]*types.ContextVersion, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	src := r.versions[contextID]
	out := make([]*types.ContextVersion, len(src))
	for i, v := range src {
		clone := *v
		out[i] = &clone
	}
	return out, nil
}

// ───────────────────────────── Negotiations ─────────────────────────────

func (r *MemoryRepository) CreateNegotiation(ctx context.Context, n *types.Negotiation) error {
	if n.ID == "" {
		return invalidArg("negotiation id required")
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.negotiations[n.ID]; exists {
		return types.NewError(types.InvalidState, fmt.Sprintf("negotiation %s already exists", n.ID), nil)
	}
	r.negotiations[n.ID] = cloneNegotiation(n)
	return nil
}

func (r *MemoryRepository) GetNegotiation(ctx context.Context, id string) (*types.Negotiation, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	n, ok := r.negotiations[id]
	if !ok {
		return nil, notFound("negotiation", id)
	}
	return cloneNegotiation(n), nil
}

func (r *MemoryRepository) UpdateNegotiation(ctx context.Context, n *types.Negotiation) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.negotiations[n.ID]; !ok {
		return notFound("negotiation", n.ID)
	}
	r.negotiations[n.ID] = cloneNegotiation(n)
	return nil
}

func (r *MemoryRepository) ListNegotiations(ctx context.Context) ([]*types.Negotiation, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*types.Negotiation, 0, len(r.negotiations))
	for _, n := range r.negotiations {
		out = append(out, cloneNegotiation(n))
	}
	return out, nil
}

func cloneNegotiation(n *types.Negotiation) *types.Negotiation {
	participants := append([]string(nil), n.ParticipantIDs...)
	proposals := make([]*types.Proposal, len(n.Proposals))
	for i, p := range n.Proposals {
		pc := *p
		proposals[i] = &pc
	}
	messages := append([]types.NegotiationMessage(nil), n.Messages...)
	acceptances := make(map[string]int, len(n.Acceptances))
	for k, v := range n.Acceptances {
		acceptances[k] = v
	}
	clone := *n
	clone.ParticipantIDs = participants
	clone.Proposals = proposals
	clone.Messages = messages
	clone.Acceptances = acceptances
	return &clone
}
