package contextengine

import (
	"time"

	"github.com/coordmesh/core/types"
)

// accessRank orders levels so "at least READ_WRITE" comparisons are a single
// integer compare.
var accessRank = map[types.AccessLevel]int{
	types.AccessReadOnly:  1,
	types.AccessReadWrite: 2,
	types.AccessAdmin:     3,
}

// pruneExpired drops grants whose expiry has passed as of now — lazy
// expiry, evaluated on every access check rather than by a background
// sweep, so a context with no traffic never pays for pruning it will never
// need.
func pruneExpired(sc *types.SharedContext, now time.Time) {
	if len(sc.AccessControl) == 0 {
		return
	}
	live := sc.AccessControl[:0]
	for _, a := range sc.AccessControl {
		if !a.Expired(now) {
			live = append(live, a)
		}
	}
	sc.AccessControl = live
}

// effectiveLevel returns the agent's current access level, owners always
// resolving to ADMIN regardless of any explicit grant.
func effectiveLevel(sc *types.SharedContext, agentID string, now time.Time) (types.AccessLevel, bool) {
	if agentID == sc.OwnerID {
		return types.AccessAdmin, true
	}
	for _, a := range sc.AccessControl {
		if a.AgentID == agentID && !a.Expired(now) {
			return a.Level, true
		}
	}
	return "", false
}

// requireAccess checks agentID holds at least `required` on sc as of now,
// pruning expired grants first so a just-expired grant is never honored.
func requireAccess(sc *types.SharedContext, agentID string, required types.AccessLevel, now time.Time) error {
	pruneExpired(sc, now)
	level, ok := effectiveLevel(sc, agentID, now)
	if !ok {
		return types.NewError(types.PermissionDenied,
			"agent "+agentID+" has no access grant on context "+sc.ID, nil)
	}
	if accessRank[level] < accessRank[required] {
		return types.NewError(types.PermissionDenied,
			"agent "+agentID+" holds "+string(level)+" but "+string(required)+" is required on context "+sc.ID, nil)
	}
	return nil
}

// grantAccess installs or replaces agentID's grant on sc.
func grantAccess(sc *types.SharedContext, agentID string, level types.AccessLevel, grantedBy string, expiresAt *time.Time, now time.Time) {
	pruneExpired(sc, now)
	for i, a := range sc.AccessControl {
		if a.AgentID == agentID {
			sc.AccessControl[i] = types.ContextAccess{
				AgentID: agentID, Level: level, GrantedAt: now, GrantedBy: grantedBy, ExpiresAt: expiresAt,
			}
			return
		}
	}
	sc.AccessControl = append(sc.AccessControl, types.ContextAccess{
		AgentID: agentID, Level: level, GrantedAt: now, GrantedBy: grantedBy, ExpiresAt: expiresAt,
	})
}

// revokeAccess removes agentID's grant, if any.
func revokeAccess(sc *types.SharedContext, agentID string) {
	out := sc.AccessControl[:0]
	for _, a := range sc.AccessControl {
		if a.AgentID != agentID {
			out = append(out, a)
		}
	}
	sc.AccessControl = out
}
