// Example: Full coordcore Lifecycle
//
// Demonstrates the end-to-end flow across all four components:
//   1. Register agents and capabilities in the Entity Store (C1)
//   2. Form a team for a task under the BALANCED strategy (C3)
//   3. Compare strategy recommendations for the same task (C3)
//   4. Create a shared context, update it, grant access, fork it (C2)
//   5. Merge two contexts and inspect the version diff (C2)
//   6. Run a round-based negotiation to resolution (C4)
package main

import (
	"context"
	"fmt"
	"log"
	"time"

	"go.uber.org/zap"

	"github.com/coordmesh/core/clock"
	"github.com/coordmesh/core/contextengine"
	"github.com/coordmesh/core/negotiation"
	"github.com/coordmesh/core/sinks"
	"github.com/coordmesh/core/store"
	"github.com/coordmesh/core/teamformation"
	"github.com/coordmesh/core/types"
)

func main() {
	logger, err := zap.NewDevelopment()
	if err != nil {
		log.Fatalf("init logger: %v", err)
	}
	defer logger.Sync()

	cfg := types.DefaultConfig()
	repo := store.NewMemoryRepository(30 * time.Second)
	ctx := context.Background()

	// ═══════════════════════════════════════════════════════════════
	// STEP 1: Register Agents and Capabilities (Entity Store, C1)
	// ═══════════════════════════════════════════════════════════════

	capabilities := []*types.Capability{
		{ID: "analysis", Name: "Structured Analysis", Category: "Reasoning", ComplexityLevel: 6, IsCore: true},
		{ID: "planning", Name: "Plan Synthesis", Category: "Reasoning", ComplexityLevel: 7},
		{ID: "retrieval", Name: "Context Retrieval", Category: "Memory", ComplexityLevel: 3},
		{ID: "translation", Name: "Cross-Agent Translation", Category: "Communication", ComplexityLevel: 4},
	}
	for _, c := range capabilities {
		if err := repo.CreateCapability(ctx, c); err != nil {
			logger.Warn("register capability failed", zap.String("id", c.ID), zap.Error(err))
		}
	}

	agents := []*types.Agent{
		types.NewAgent("agent-planner", "Planner", "Reasoning", []string{"analysis", "planning"}),
		types.NewAgent("agent-archivist", "Archivist", "Memory", []string{"retrieval"}),
		types.NewAgent("agent-liaison", "Liaison", "Communication", []string{"translation"}),
	}
	agents[0].PerformanceRating, agents[0].CostPerToken = 8.5, 0.04
	agents[1].PerformanceRating, agents[1].CostPerToken = 6.0, 0.01
	agents[2].PerformanceRating, agents[2].CostPerToken = 7.2, 0.02
	for _, a := range agents {
		if err := repo.CreateAgent(ctx, a); err != nil {
			logger.Warn("register agent failed", zap.String("id", a.ID), zap.Error(err))
		}
	}
	fmt.Println("=== Agents Registered ===")

	// ═══════════════════════════════════════════════════════════════
	// STEP 2: Form a Team (Team Formation Engine, C3)
	// ═══════════════════════════════════════════════════════════════

	task := types.NewTask("task-brief", "Draft Incident Brief", "Summarize and route an incident",
		[]string{"analysis", "retrieval"},
		[]*types.Role{
			types.NewRole("role-lead", "Lead Analyst", []string{"analysis"}, 10, []string{"Reasoning"}),
			types.NewRole("role-support", "Context Support", []string{"retrieval"}, 5, []string{"Memory"}),
		},
		7, 5, 2, 3)

	teamEngine := teamformation.New(repo, cfg.TeamFormation, 0.05, nil, logger)
	team, err := teamEngine.FormTeam(ctx, task, teamformation.StrategyBalanced)
	if err != nil {
		log.Fatalf("form team: %v", err)
	}
	fmt.Printf("=== Team Formed: %s (status=%s, members=%d) ===\n", team.ID, team.Status, len(team.Agents))

	// ═══════════════════════════════════════════════════════════════
	// STEP 3: Compare Strategy Recommendations (C3)
	// ═══════════════════════════════════════════════════════════════

	recs, err := teamEngine.Recommend(ctx, task)
	if err != nil {
		log.Fatalf("recommend: %v", err)
	}
	fmt.Println("\n=== Strategy Recommendations ===")
	for i, r := range recs {
		fmt.Printf("  #%d: %-14s composite=%.3f coverage=%.2f\n", i+1, r.Strategy, r.Metrics.CompositeScore, r.Metrics.CapabilityCoverage)
	}

	// ═══════════════════════════════════════════════════════════════
	// STEP 4: Shared Context lifecycle (Shared Context Engine, C2)
	// ═══════════════════════════════════════════════════════════════

	notify := sinks.NewMemoryNotificationSink(cfg.Context.NotificationQueueSize)
	archive := sinks.NewMemoryArchivalSink()
	ctxEngine := contextengine.New(repo, notify, archive, nil, cfg.Context, logger, clock.Real{})

	brief, err := ctxEngine.CreateContext(ctx, "incident-brief", "incident", "agent-planner", types.NewTree(map[string]types.Value{
		"summary": types.NewScalar("investigating elevated error rate"),
	}))
	if err != nil {
		log.Fatalf("create context: %v", err)
	}
	fmt.Printf("\n=== Context Created: %s (v=%d) ===\n", brief.ID, brief.Version)

	if err := ctxEngine.GrantAccess(ctx, brief.ID, "agent-planner", "agent-archivist", types.AccessReadWrite, time.Hour); err != nil {
		log.Fatalf("grant access: %v", err)
	}
	// GrantAccess saved the context, so re-read it for its current version.
	brief, err = ctxEngine.GetContext(ctx, brief.ID, "agent-planner")
	if err != nil {
		log.Fatalf("get context: %v", err)
	}

	brief, err = ctxEngine.UpdateContext(ctx, brief.ID, "agent-archivist", []contextengine.ChangeRequest{
		{Operation: types.ChangeUpdate, Path: "/root_cause", Value: types.NewScalar("upstream timeout increase")},
	}, brief.Version)
	if err != nil {
		log.Fatalf("update context: %v", err)
	}
	fmt.Printf("=== Context Updated by agent-archivist (now v=%d) ===\n", brief.Version)

	if err := ctxEngine.GrantAccess(ctx, brief.ID, "agent-planner", "agent-liaison", types.AccessReadOnly, time.Hour); err != nil {
		log.Fatalf("grant access: %v", err)
	}
	forked, err := ctxEngine.ForkContext(ctx, brief.ID, "agent-liaison", "incident-brief-translated")
	if err != nil {
		log.Fatalf("fork context: %v", err)
	}
	fmt.Printf("=== Context Forked: %s ===\n", forked.ID)

	// ═══════════════════════════════════════════════════════════════
	// STEP 5: Merge and diff two contexts (C2)
	// ═══════════════════════════════════════════════════════════════

	scratch, err := ctxEngine.CreateContext(ctx, "scratch", "generic", "agent-liaison", types.NewTree(map[string]types.Value{
		"translated_summary": types.NewScalar("enquêtant sur un taux d'erreur élevé"),
	}))
	if err != nil {
		log.Fatalf("create scratch context: %v", err)
	}
	merged, err := ctxEngine.MergeContexts(ctx, forked.ID, scratch.ID, "agent-liaison", contextengine.ResolveSource)
	if err != nil {
		log.Fatalf("merge contexts: %v", err)
	}
	diff, err := ctxEngine.CompareVersions(ctx, merged.ID, forked.CurrentVersionID, merged.CurrentVersionID)
	if err != nil {
		log.Fatalf("compare versions: %v", err)
	}
	fmt.Printf("=== Contexts Merged: %d paths added, %d modified ===\n", len(diff.Added), len(diff.Modified))

	// ═══════════════════════════════════════════════════════════════
	// STEP 6: Negotiation (Negotiation Engine, C4)
	// ═══════════════════════════════════════════════════════════════

	negEngine := negotiation.New(repo, cfg.Negotiation, clock.Real{}, logger)
	session, err := negEngine.Initiate(ctx, "agent-planner", "response ownership", []string{"agent-planner", "agent-archivist"}, types.ResolutionCompromise, 0, 0)
	if err != nil {
		log.Fatalf("initiate negotiation: %v", err)
	}

	session, err = negEngine.Propose(ctx, session.ID, "agent-planner",
		types.NewTree(map[string]types.Value{"owner": types.NewScalar("agent-planner")}),
		map[string]float64{"review_hours": 4}, 8)
	if err != nil {
		log.Fatalf("propose: %v", err)
	}
	cur := session.CurrentProposal()

	session, err = negEngine.Respond(ctx, session.ID, "agent-archivist", types.MessageAccept, cur.ID, cur.Version, "agreed", types.Absent, nil, 0)
	if err != nil {
		log.Fatalf("respond: %v", err)
	}
	fmt.Printf("\n=== Negotiation %s: %s (final proposal %s) ===\n", session.ID, session.State, session.FinalProposalID)

	report, err := negEngine.Analyze(ctx, session.ID)
	if err != nil {
		log.Fatalf("analyze negotiation: %v", err)
	}
	fmt.Printf("=== Negotiation Report: %d rounds, %d participants, duration=%dms ===\n",
		report.RoundsReached, report.ParticipantCount, report.DurationMS)

	fmt.Println("\n=== coordcore Lifecycle Complete ===")
}
