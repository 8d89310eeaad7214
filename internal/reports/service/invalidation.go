package service

import (
	"context"

	"recovery_backend/internal/events"
	"recovery_backend/platform/redisx"

	"github.com/google/uuid"
)

// Invalidator drops cached dashboards when an organization's cases,
// follow-ups or payments change. The worker process runs one too, so
// uploads applied there reach the shared cache.
type Invalidator struct {
	cache *redisx.JSONCache
}

// NewInvalidator creates an Invalidator. cache may be nil.
func NewInvalidator(cache *redisx.JSONCache) *Invalidator {
	return &Invalidator{cache: cache}
}

// Invalidate drops every cached dashboard of the organization.
func (i *Invalidator) Invalidate(ctx context.Context, organizationID uuid.UUID) error {
	return i.cache.Invalidate(ctx, dashboardKey(organizationID))
}

// Subscribe registers the invalidation handler for every write event.
func (i *Invalidator) Subscribe(bus events.Bus) {
	handler := events.HandlerFunc(func(ctx context.Context, event events.Event) error {
		organizationID, ok := organizationOf(event)
		if !ok {
			return nil
		}
		return i.Invalidate(ctx, organizationID)
	})

	for _, name := range []string{
		events.CasesReplaced{}.EventName(),
		events.CoApplicantsMerged{}.EventName(),
		events.CaseUpdated{}.EventName(),
		events.FollowUpCreated{}.EventName(),
		events.PaymentRecorded{}.EventName(),
	} {
		bus.Subscribe(name, handler)
	}
}

func organizationOf(event events.Event) (uuid.UUID, bool) {
	switch e := event.(type) {
	case events.CasesReplaced:
		return e.OrganizationID, true
	case events.CoApplicantsMerged:
		return e.OrganizationID, true
	case events.CaseUpdated:
		return e.OrganizationID, true
	case events.FollowUpCreated:
		return e.OrganizationID, true
	case events.PaymentRecorded:
		return e.OrganizationID, true
	default:
		return uuid.Nil, false
	}
}
