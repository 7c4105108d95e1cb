package gateway

import "WChat/logger"

// Predicate selects broadcast recipients by identity.
type Predicate func(userID string) bool

// All matches every connected identity.
func All(string) bool { return true }

// Only matches a single identity.
func Only(userID string) Predicate {
	return func(id string) bool { return id == userID }
}

// AnyOf matches the given identity set.
func AnyOf(userIDs []string) Predicate {
	set := make(map[string]struct{}, len(userIDs))
	for _, id := range userIDs {
		set[id] = struct{}{}
	}
	return func(id string) bool {
		_, ok := set[id]
		return ok
	}
}

// Broadcast enqueues env on every live session whose identity satisfies
// pred. Delivery is strictly best-effort: a failed enqueue means the
// session is already tearing down and the event is dropped for it, without
// retry and without surfacing the failure to the mutation that triggered
// the broadcast. Per-session order follows the order of Broadcast calls.
func (g *Gateway) Broadcast(env *Envelope, pred Predicate) {
	payload, err := env.Encode()
	if err != nil {
		logger.Errorf("[WS] broadcast encode %s: %v", env.Op, err)
		return
	}
	if pred == nil {
		pred = All
	}

	for _, e := range g.reg.Snapshot() {
		if !pred(e.UserID) {
			continue
		}
		if err := e.Session.EnqueueText(payload); err != nil {
			logger.Debugf("[WS] drop %s for user=%s session=%s: %v",
				env.Op, e.UserID, e.Session.ID, err)
		}
	}
}
