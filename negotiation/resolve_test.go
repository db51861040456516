package negotiation

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/coordmesh/core/types"
)

func TestResolveCompromise_NumericMean(t *testing.T) {
	n := &types.Negotiation{
		Proposals: []*types.Proposal{
			{ID: "p1", ProposerID: "a1", Resources: map[string]float64{"cpu": 4}, Terms: types.NewTree(nil), CreatedAt: time.Unix(1, 0)},
			{ID: "p2", ProposerID: "a2", Resources: map[string]float64{"cpu": 6}, Terms: types.NewTree(nil), CreatedAt: time.Unix(2, 0)},
			{ID: "p3", ProposerID: "a3", Resources: map[string]float64{"cpu": 8}, Terms: types.NewTree(nil), CreatedAt: time.Unix(3, 0)},
		},
	}
	resolved := resolveCompromise(n, types.NegotiationConfig{DefaultResourceMax: 100, ResourceMaxQuantities: map[string]float64{}})
	require.NotNil(t, resolved)
	assert.InDelta(t, 6.0, resolved.Resources["cpu"], 1e-9)
}

func TestResolveCompromise_BooleanStrictMajorityTiesFalse(t *testing.T) {
	mk := func(proposer string, b bool) *types.Proposal {
		return &types.Proposal{
			ID: proposer, ProposerID: proposer,
			Terms:     types.NewTree(map[string]types.Value{"approved": types.NewScalar(b)}),
			CreatedAt: time.Now(),
		}
	}
	// 1 true, 1 false — tied, must resolve to false.
	tie := &types.Negotiation{Proposals: []*types.Proposal{mk("a1", true), mk("a2", false)}}
	resolved := resolveCompromise(tie, types.NegotiationConfig{})
	require.NotNil(t, resolved)
	approved, _ := types.GetAtPath(resolved.Terms, "/approved")
	assert.Equal(t, false, approved.Scalar)

	// 2 true, 1 false — strict majority wins.
	majority := &types.Negotiation{Proposals: []*types.Proposal{mk("a1", true), mk("a2", true), mk("a3", false)}}
	resolved = resolveCompromise(majority, types.NegotiationConfig{})
	require.NotNil(t, resolved)
	approved, _ = types.GetAtPath(resolved.Terms, "/approved")
	assert.Equal(t, true, approved.Scalar)
}

func TestResolveCompromise_ModeFallbackFirstSeenOnTies(t *testing.T) {
	mk := func(proposer, owner string, ts int64) *types.Proposal {
		return &types.Proposal{
			ID: proposer, ProposerID: proposer,
			Terms:     types.NewTree(map[string]types.Value{"owner": types.NewScalar(owner)}),
			CreatedAt: time.Unix(ts, 0),
		}
	}
	n := &types.Negotiation{Proposals: []*types.Proposal{
		mk("a1", "x", 1),
		mk("a2", "y", 2),
		mk("a3", "x", 3),
		mk("a4", "y", 4),
	}}
	resolved := resolveCompromise(n, types.NegotiationConfig{})
	require.NotNil(t, resolved)
	owner, _ := types.GetAtPath(resolved.Terms, "/owner")
	assert.Equal(t, "x", owner.Scalar)
}

func TestResolveOptimization_PerKeyFrequencyArgmax(t *testing.T) {
	mk := func(proposer string, cpu float64, owner string) *types.Proposal {
		return &types.Proposal{
			ID: proposer, ProposerID: proposer,
			Resources: map[string]float64{"cpu": cpu},
			Terms:     types.NewTree(map[string]types.Value{"owner": types.NewScalar(owner)}),
			CreatedAt: time.Now(),
		}
	}
	n := &types.Negotiation{Proposals: []*types.Proposal{
		mk("a1", 4, "x"),
		mk("a2", 4, "y"),
		mk("a3", 8, "x"),
	}}
	resolved := resolveOptimization(n)
	require.NotNil(t, resolved)
	assert.InDelta(t, 4.0, resolved.Resources["cpu"], 1e-9)
	owner, _ := types.GetAtPath(resolved.Terms, "/owner")
	assert.Equal(t, "x", owner.Scalar)
}
