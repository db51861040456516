package types

import "time"

// NegotiationState tracks the round-based negotiation state machine.
type NegotiationState string

const (
	NegotiationInitiated  NegotiationState = "INITIATED"
	NegotiationInProgress NegotiationState = "IN_PROGRESS"
	NegotiationSuccessful NegotiationState = "SUCCESSFUL"
	NegotiationFailed     NegotiationState = "FAILED"
	NegotiationTimeout    NegotiationState = "TIMEOUT"
)

// ResolutionStrategy is the conflict-resolution algorithm a Negotiation uses
// when participants fail to converge on their own.
type ResolutionStrategy string

const (
	ResolutionPriorityBased ResolutionStrategy = "PRIORITY_BASED"
	ResolutionCompromise    ResolutionStrategy = "COMPROMISE"
	ResolutionVoting        ResolutionStrategy = "VOTING"
	ResolutionOptimization  ResolutionStrategy = "OPTIMIZATION"
)

// MessageType is the kind of move a participant makes in a round.
type MessageType string

const (
	MessagePropose    MessageType = "PROPOSE"
	MessageAccept     MessageType = "ACCEPT"
	MessageReject     MessageType = "REJECT"
	MessageCounter    MessageType = "COUNTER"
	MessageAbstain    MessageType = "ABSTAIN"
	MessageResolution MessageType = "RESOLUTION" // emitted by "SYSTEM" when a ResolutionStrategy runs
)

// Proposal is one participant's offer: a Value tree of resource/term
// allocations plus the resource quantities it claims, scored against
// ResourceMaxQuantities by the resolution strategies.
type Proposal struct {
	ID         string
	ProposerID string
	Terms      Value
	Resources  map[string]float64
	Priority   int
	Version    int
	CreatedAt  time.Time
}

// NegotiationMessage is one participant action within a round.
type NegotiationMessage struct {
	ID                    string
	NegotiationID         string
	Round                 int
	SenderID              string
	Type                  MessageType
	Proposal              *Proposal
	TargetProposalID      string // which Proposal this message responds to
	TargetProposalVersion int    // the Proposal.Version being accepted/rejected
	Comment               string
	Timestamp             time.Time
}

// Negotiation is a multi-party, round-based session converging on a single
// accepted Proposal, falling back to a ResolutionStrategy if participants
// do not converge before MaxRounds or Deadline.
type Negotiation struct {
	ID                string
	Topic             string
	InitiatorID       string
	ParticipantIDs    []string // includes InitiatorID
	State             NegotiationState
	Strategy          ResolutionStrategy
	CurrentRound      int
	MaxRounds         int
	Deadline          time.Time
	Proposals         []*Proposal // history, append-only
	CurrentProposalID string      // the proposal ACCEPT/REJECT/COUNTER currently target
	Messages          []NegotiationMessage
	Acceptances       map[string]int // AgentID -> accepted Proposal.Version
	FinalProposalID   string
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

// NewNegotiation constructs an INITIATED negotiation. participants must
// include initiatorID.
func NewNegotiation(id, initiatorID, topic string, participants []string, strategy ResolutionStrategy, maxRounds int, deadline time.Time) *Negotiation {
	now := time.Now()
	return &Negotiation{
		ID:             id,
		Topic:          topic,
		InitiatorID:    initiatorID,
		ParticipantIDs: participants,
		State:          NegotiationInitiated,
		Strategy:       strategy,
		MaxRounds:      maxRounds,
		Deadline:       deadline,
		Acceptances:    map[string]int{},
		CreatedAt:      now,
		UpdatedAt:      now,
	}
}

// CurrentProposal returns the proposal currently open for accept/reject,
// or nil if none has been made yet.
func (n *Negotiation) CurrentProposal() *Proposal {
	for _, p := range n.Proposals {
		if p.ID == n.CurrentProposalID {
			return p
		}
	}
	return nil
}

// AllAccepted reports whether every participant has accepted the current
// proposal's current version.
func (n *Negotiation) AllAccepted() bool {
	cur := n.CurrentProposal()
	if cur == nil {
		return false
	}
	for _, p := range n.ParticipantIDs {
		if v, ok := n.Acceptances[p]; !ok || v != cur.Version {
			return false
		}
	}
	return true
}
