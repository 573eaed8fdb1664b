package auth

import (
	"context"
	"time"
)

// EventType names a security-relevant occurrence.
type EventType string

// Security event types.
const (
	EventLoginSucceeded     EventType = "login_succeeded"
	EventLoginFailed        EventType = "login_failed"
	EventLoginLocked        EventType = "login_locked"
	EventTokenRefreshed     EventType = "token_refreshed"
	EventRefreshRejected    EventType = "refresh_rejected"
	EventTokenRevoked       EventType = "token_revoked"
	EventTokensRevoked      EventType = "tokens_revoked"
	EventLogout             EventType = "logout"
	EventAccountRegistered  EventType = "account_registered"
	EventAccountUpdated     EventType = "account_updated"
	EventAccountFrozen      EventType = "account_frozen"
	EventAccountUnfrozen    EventType = "account_unfrozen"
	EventAccountDeleted     EventType = "account_deleted"
	EventPasswordChanged    EventType = "password_changed"
	EventPasswordReset      EventType = "password_reset"
	EventPermissionsUpdated EventType = "role_permissions_updated"
	EventRoleCreated        EventType = "role_created"
	EventRoleUpdated        EventType = "role_updated"
	EventRoleDeleted        EventType = "role_deleted"
)

// Event outcomes.
const (
	OutcomeSuccess = "success"
	OutcomeFailure = "failure"
)

// Event describes one security event. Count carries the number of
// sessions revoked where that applies.
type Event struct {
	Type      EventType `json:"type"`
	Outcome   string    `json:"outcome"`
	AccountID string    `json:"account_id,omitempty"`
	ActorID   string    `json:"actor_id,omitempty"`
	RoleCode  RoleCode  `json:"role,omitempty"`
	EntityID  string    `json:"entity_id,omitempty"`
	Count     int64     `json:"count,omitempty"`
	Reason    string    `json:"reason,omitempty"`
	At        time.Time `json:"at"`
}

// Observer receives security events. Implementations must not block;
// they run on the request goroutine.
type Observer interface {
	OnSecurityEvent(ctx context.Context, ev Event)
}

// ObserverFunc adapts a function to Observer.
type ObserverFunc func(ctx context.Context, ev Event)

// OnSecurityEvent calls f.
func (f ObserverFunc) OnSecurityEvent(ctx context.Context, ev Event) { f(ctx, ev) }

// Observers fans an event out to every member in order.
type Observers []Observer

// OnSecurityEvent implements Observer.
func (os Observers) OnSecurityEvent(ctx context.Context, ev Event) {
	for _, o := range os {
		if o != nil {
			o.OnSecurityEvent(ctx, ev)
		}
	}
}

type nopObserver struct{}

func (nopObserver) OnSecurityEvent(context.Context, Event) {}
