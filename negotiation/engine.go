package negotiation

import (
	"context"
	"math"
	"sort"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/coordmesh/core/clock"
	"github.com/coordmesh/core/store"
	"github.com/coordmesh/core/types"
)

// systemSender is the SenderID used for messages the engine itself emits
// (conflict-resolution outcomes), never a participant agent.
const systemSender = "SYSTEM"

// Engine is the Negotiation Engine (C4).
type Engine struct {
	repo store.Repository
	cfg  types.NegotiationConfig
	clk  clock.Clock
	log  *zap.Logger
}

// New constructs an Engine.
func New(repo store.Repository, cfg types.NegotiationConfig, clk clock.Clock, log *zap.Logger) *Engine {
	if clk == nil {
		clk = clock.Real{}
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Engine{repo: repo, cfg: cfg, clk: clk, log: log}
}

// Initiate starts a new negotiation led by initiatorID among participantIDs
// over topic. initiatorID is folded into the participant set if not already
// present. Zero maxRounds/timeout fall back to the engine's configured
// defaults.
func (e *Engine) Initiate(ctx context.Context, initiatorID, topic string, participantIDs []string, strategy types.ResolutionStrategy, maxRounds int, timeout time.Duration) (*types.Negotiation, error) {
	if len(participantIDs) < 2 {
		return nil, types.NewError(types.InvalidArgument, "negotiation requires at least two participants", nil)
	}
	if maxRounds <= 0 {
		maxRounds = e.cfg.DefaultMaxRounds
	}
	if timeout <= 0 {
		timeout = e.cfg.DefaultRoundTimeout
	}
	if strategy == "" {
		strategy = e.cfg.DefaultStrategy
	}
	all := participantIDs
	if !containsID(participantIDs, initiatorID) {
		all = append(append([]string{}, participantIDs...), initiatorID)
	}
	now := e.clk.Now()
	n := types.NewNegotiation(uuid.NewString(), initiatorID, topic, all, strategy, maxRounds, now.Add(timeout))
	n.CreatedAt, n.UpdatedAt = now, now
	if err := e.repo.CreateNegotiation(ctx, n); err != nil {
		return nil, err
	}
	return n, nil
}

func isParticipant(n *types.Negotiation, agentID string) bool {
	return containsID(n.ParticipantIDs, agentID)
}

func containsID(ids []string, id string) bool {
	for _, x := range ids {
		if x == id {
			return true
		}
	}
	return false
}

func (e *Engine) checkDeadlines(ctx context.Context, n *types.Negotiation) {
	if n.State != types.NegotiationInitiated && n.State != types.NegotiationInProgress {
		return
	}
	now := e.clk.Now()
	if now.After(n.Deadline) {
		e.finalize(ctx, n, types.NegotiationTimeout)
		return
	}
	if n.CurrentRound >= n.MaxRounds {
		e.finalize(ctx, n, types.NegotiationFailed)
	}
}

// computePriorities returns, per agent that has proposed in n, the
// PRIORITY_BASED priority: round(performanceRating*10), +5 if the agent is
// the initiator. Agents the repository can't resolve score 0.
func (e *Engine) computePriorities(ctx context.Context, n *types.Negotiation) map[string]int {
	priorities := make(map[string]int, len(n.ParticipantIDs))
	seen := map[string]struct{}{}
	for _, p := range n.Proposals {
		if _, ok := seen[p.ProposerID]; ok {
			continue
		}
		seen[p.ProposerID] = struct{}{}
		score := 0
		if agent, err := e.repo.GetAgent(ctx, p.ProposerID); err == nil && agent != nil {
			score = int(math.Round(agent.PerformanceRating * 10))
		}
		if p.ProposerID == n.InitiatorID {
			score += 5
		}
		priorities[p.ProposerID] = score
	}
	return priorities
}

// finalize runs conflict resolution (if the negotiation didn't converge on
// its own) and sets the terminal state, emitting a RESOLUTION message from
// SYSTEM when a strategy actually produced an agreement.
func (e *Engine) finalize(ctx context.Context, n *types.Negotiation, fallbackState types.NegotiationState) {
	priorities := e.computePriorities(ctx, n)
	resolved := resolveConflict(n, e.cfg, priorities)
	now := e.clk.Now()
	if resolved != nil {
		n.Proposals = append(n.Proposals, resolved)
		n.FinalProposalID = resolved.ID
		n.State = types.NegotiationSuccessful
		n.Messages = append(n.Messages, types.NegotiationMessage{
			ID: uuid.NewString(), NegotiationID: n.ID, Round: n.CurrentRound,
			SenderID: systemSender, Type: types.MessageResolution,
			Proposal: resolved, TargetProposalID: resolved.ID, Timestamp: now,
		})
	} else {
		n.State = fallbackState
	}
	n.UpdatedAt = now
}

// Propose submits a new Proposal from agentID, opening it as the current
// proposal participants must accept, reject, or counter.
func (e *Engine) Propose(ctx context.Context, negotiationID, agentID string, terms types.Value, resources map[string]float64, priority int) (*types.Negotiation, error) {
	n, err := e.repo.GetNegotiation(ctx, negotiationID)
	if err != nil {
		return nil, err
	}
	if !isParticipant(n, agentID) {
		return nil, types.NewError(types.PermissionDenied, agentID+" is not a participant in negotiation "+negotiationID, nil)
	}
	if n.State != types.NegotiationInitiated && n.State != types.NegotiationInProgress {
		return nil, types.NewError(types.InvalidState, "negotiation "+negotiationID+" is not accepting proposals", nil)
	}

	now := e.clk.Now()
	p := &types.Proposal{
		ID:         uuid.NewString(),
		ProposerID: agentID,
		Terms:      terms,
		Resources:  resources,
		Priority:   priority,
		Version:    1,
		CreatedAt:  now,
	}
	n.Proposals = append(n.Proposals, p)
	n.CurrentProposalID = p.ID
	n.Acceptances = map[string]int{agentID: p.Version}
	n.State = types.NegotiationInProgress
	n.Messages = append(n.Messages, types.NegotiationMessage{
		ID: uuid.NewString(), NegotiationID: negotiationID, Round: n.CurrentRound,
		SenderID: agentID, Type: types.MessagePropose, Proposal: p,
		TargetProposalID: p.ID, TargetProposalVersion: p.Version, Timestamp: now,
	})
	n.UpdatedAt = now

	e.checkDeadlines(ctx, n)
	if err := e.repo.UpdateNegotiation(ctx, n); err != nil {
		return nil, err
	}
	return n, nil
}

// Respond applies agentID's move (ACCEPT, REJECT, COUNTER, or ABSTAIN)
// against the negotiation's current proposal. ACCEPT/REJECT must target the
// exact proposal ID and version currently open — validating against a
// superseded version returns InvalidState, resolving the "which proposal is
// current" ambiguity explicitly rather than silently accepting stale state.
// COUNTER carries its own terms/resources/priority and becomes the new
// current proposal, advancing the round and resetting acceptances.
func (e *Engine) Respond(ctx context.Context, negotiationID, agentID string, msgType types.MessageType, targetProposalID string, targetProposalVersion int, comment string, counterTerms types.Value, counterResources map[string]float64, counterPriority int) (*types.Negotiation, error) {
	n, err := e.repo.GetNegotiation(ctx, negotiationID)
	if err != nil {
		return nil, err
	}
	if !isParticipant(n, agentID) {
		return nil, types.NewError(types.PermissionDenied, agentID+" is not a participant in negotiation "+negotiationID, nil)
	}
	if n.State != types.NegotiationInProgress {
		return nil, types.NewError(types.InvalidState, "negotiation "+negotiationID+" has no open proposal", nil)
	}
	cur := n.CurrentProposal()
	if cur == nil || cur.ID != targetProposalID {
		return nil, types.NewError(types.InvalidState, "target proposal is not the current proposal", nil)
	}

	now := e.clk.Now()
	msg := types.NegotiationMessage{
		ID: uuid.NewString(), NegotiationID: negotiationID, Round: n.CurrentRound,
		SenderID: agentID, Type: msgType, TargetProposalID: targetProposalID,
		TargetProposalVersion: targetProposalVersion, Comment: comment, Timestamp: now,
	}

	switch msgType {
	case types.MessageAccept:
		if targetProposalVersion != cur.Version {
			return nil, types.NewError(types.InvalidState,
				"accept targets a superseded proposal version; re-fetch and retry", nil)
		}
		n.Acceptances[agentID] = cur.Version
		n.Messages = append(n.Messages, msg)
		if n.AllAccepted() {
			n.State = types.NegotiationSuccessful
			n.FinalProposalID = cur.ID
		}

	case types.MessageReject, types.MessageAbstain:
		if msgType == types.MessageReject && targetProposalVersion != cur.Version {
			return nil, types.NewError(types.InvalidState,
				"reject targets a superseded proposal version; re-fetch and retry", nil)
		}
		n.Messages = append(n.Messages, msg)

	case types.MessageCounter:
		next := &types.Proposal{
			ID:         uuid.NewString(),
			ProposerID: agentID,
			Terms:      counterTerms,
			Resources:  counterResources,
			Priority:   counterPriority,
			Version:    cur.Version + 1,
			CreatedAt:  now,
		}
		n.Proposals = append(n.Proposals, next)
		n.CurrentProposalID = next.ID
		n.Acceptances = map[string]int{agentID: next.Version}
		n.CurrentRound++
		msg.Proposal = next
		n.Messages = append(n.Messages, msg)

	default:
		return nil, types.NewError(types.InvalidArgument, "unsupported message type "+string(msgType), nil)
	}

	n.UpdatedAt = now
	e.checkDeadlines(ctx, n)
	if err := e.repo.UpdateNegotiation(ctx, n); err != nil {
		return nil, err
	}
	return n, nil
}

// NegotiationReport is Analyze's summary of a terminal negotiation: timing,
// participation, a message-type/sender activity breakdown, and — for a
// SUCCESSFUL outcome — the keys that changed between the first and final
// proposal's content.
type NegotiationReport struct {
	NegotiationID        string
	State                types.NegotiationState
	DurationMS           int64
	RoundsReached        int
	ParticipantCount     int
	MessageTypeHistogram map[types.MessageType]int
	SenderHistogram      map[string]int
	FinalProposalID      string
	Added                []string
	Removed              []string
	Modified             []string
}

// Analyze reports on a negotiation that has reached a terminal state,
// finalizing it first if its deadline or round budget has newly elapsed.
// Returns InvalidState if the negotiation is still genuinely open.
func (e *Engine) Analyze(ctx context.Context, negotiationID string) (*NegotiationReport, error) {
	n, err := e.repo.GetNegotiation(ctx, negotiationID)
	if err != nil {
		return nil, err
	}
	e.checkDeadlines(ctx, n)
	if err := e.repo.UpdateNegotiation(ctx, n); err != nil {
		return nil, err
	}
	if n.State == types.NegotiationInitiated || n.State == types.NegotiationInProgress {
		return nil, types.NewError(types.InvalidState, "negotiation "+negotiationID+" is still active", nil)
	}

	report := &NegotiationReport{
		NegotiationID:        n.ID,
		State:                n.State,
		DurationMS:           n.UpdatedAt.Sub(n.CreatedAt).Milliseconds(),
		RoundsReached:        n.CurrentRound,
		ParticipantCount:     len(n.ParticipantIDs),
		MessageTypeHistogram: map[types.MessageType]int{},
		SenderHistogram:      map[string]int{},
		FinalProposalID:      n.FinalProposalID,
	}
	for _, m := range n.Messages {
		report.MessageTypeHistogram[m.Type]++
		report.SenderHistogram[m.SenderID]++
	}

	if n.State == types.NegotiationSuccessful && len(n.Proposals) > 0 {
		initial := proposalContentValue(n.Proposals[0])
		final := initial
		for _, p := range n.Proposals {
			if p.ID == n.FinalProposalID {
				final = proposalContentValue(p)
				break
			}
		}
		added := map[string]types.Value{}
		removed := map[string]types.Value{}
		modified := map[string][2]types.Value{}
		types.Diff("/", initial, final, added, removed, modified)
		for k := range added {
			report.Added = append(report.Added, k)
		}
		for k := range removed {
			report.Removed = append(report.Removed, k)
		}
		for k := range modified {
			report.Modified = append(report.Modified, k)
		}
		sort.Strings(report.Added)
		sort.Strings(report.Removed)
		sort.Strings(report.Modified)
	}

	return report, nil
}
