package subscription

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/dmitrymomot/tradedesk/pkg/statemachine"
)

// Lifecycle events name every observed role change.
const (
	EventActivated = statemachine.StringEvent("activated") // free -> pro
	EventLapsed    = statemachine.StringEvent("lapsed")    // pro -> expired
	EventRenewed   = statemachine.StringEvent("renewed")   // expired -> pro
	EventRevoked   = statemachine.StringEvent("revoked")   // pro -> free
	EventCleared   = statemachine.StringEvent("cleared")   // expired -> free
	EventBackdated = statemachine.StringEvent("backdated") // free -> expired
)

type roleEdge struct {
	from, to Role
	event    statemachine.StringEvent
}

var roleEdges = []roleEdge{
	{RoleFree, RolePro, EventActivated},
	{RolePro, RoleExpired, EventLapsed},
	{RoleExpired, RolePro, EventRenewed},
	{RolePro, RoleFree, EventRevoked},
	{RoleExpired, RoleFree, EventCleared},
	{RoleFree, RoleExpired, EventBackdated},
}

// TransitionEvent names the lifecycle event for a role change.
func TransitionEvent(from, to Role) (statemachine.StringEvent, bool) {
	for _, e := range roleEdges {
		if e.from == from && e.to == to {
			return e.event, true
		}
	}
	return "", false
}

// StatusChange is published whenever a refresh moves a user to another role.
type StatusChange struct {
	UserID uuid.UUID    `json:"user_id"`
	From   Role         `json:"from"`
	To     Role         `json:"to"`
	Event  string       `json:"event"`
	Status AccessStatus `json:"status"`
	At     time.Time    `json:"at"`
}

// ChangeHandler observes role changes. It runs inside the lifecycle
// transition and must not block for long.
type ChangeHandler func(ctx context.Context, change StatusChange)

// newLifecycle builds the role machine. Every edge runs notify with the
// StatusChange passed to Fire.
func newLifecycle(initial Role, notify ChangeHandler) statemachine.StateMachine {
	action := func(ctx context.Context, _, _ statemachine.State, _ statemachine.Event, data any) error {
		if change, ok := data.(StatusChange); ok && notify != nil {
			notify(ctx, change)
		}
		return nil
	}

	actions := []statemachine.Action{action}
	edges := make([]statemachine.Transition, 0, len(roleEdges))
	for _, e := range roleEdges {
		edges = append(edges, statemachine.Transition{From: e.from, To: e.to, Event: e.event, Actions: actions})
	}
	return statemachine.MustNew(initial, statemachine.WithTransitions(edges...))
}
