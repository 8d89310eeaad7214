// Package events provides domain event definitions for decoupled,
// event-driven communication between modules.
// Infrastructure (Bus, Handler) is in platform/events.
package events

import (
	"recovery_backend/platform/events"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Re-export platform types for convenience
type (
	Event       = events.Event
	Bus         = events.Bus
	Handler     = events.Handler
	HandlerFunc = events.HandlerFunc
	BaseEvent   = events.BaseEvent
)

// Re-export platform functions
var NewBaseEvent = events.NewBaseEvent

// CasesReplaced is published after a bulk upload replaced an organization's cases.
type CasesReplaced struct {
	BaseEvent
	OrganizationID uuid.UUID `json:"organizationId"`
	RevisionID     string    `json:"revisionId"`
	ActorID        uuid.UUID `json:"actorId"`
	Upserted       int64     `json:"upserted"`
	Expired        int64     `json:"expired"`
}

func (e CasesReplaced) EventName() string { return "cases.replaced" }

// CoApplicantsMerged is published after a co-applicant upload.
type CoApplicantsMerged struct {
	BaseEvent
	OrganizationID uuid.UUID `json:"organizationId"`
	ActorID        uuid.UUID `json:"actorId"`
	Matched        int64     `json:"matched"`
}

func (e CoApplicantsMerged) EventName() string { return "cases.co_applicants_merged" }

// CaseUpdated is published when an agent edits a case (assignment, area).
type CaseUpdated struct {
	BaseEvent
	OrganizationID uuid.UUID `json:"organizationId"`
	CaseNo         string    `json:"caseNo"`
	ActorID        uuid.UUID `json:"actorId"`
	Field          string    `json:"field"`
}

func (e CaseUpdated) EventName() string { return "cases.updated" }

// FollowUpCreated is published when a field agent records a follow-up.
type FollowUpCreated struct {
	BaseEvent
	OrganizationID uuid.UUID `json:"organizationId"`
	FollowUpID     uuid.UUID `json:"followUpId"`
	CaseNo         string    `json:"caseNo"`
	CreatedBy      uuid.UUID `json:"createdBy"`
	HasCommit      bool      `json:"hasCommit"`
}

func (e FollowUpCreated) EventName() string { return "follow_ups.created" }

// PaymentRecorded is published after a payment was applied to a case.
type PaymentRecorded struct {
	BaseEvent
	OrganizationID uuid.UUID       `json:"organizationId"`
	PaymentID      uuid.UUID       `json:"paymentId"`
	CaseNo         string          `json:"caseNo"`
	CreatedBy      uuid.UUID       `json:"createdBy"`
	Amount         decimal.Decimal `json:"amount"`
	PaymentMode    string          `json:"paymentMode"`
	DueEmiAmount   decimal.Decimal `json:"dueEmiAmount"`
	LedgerCredited bool            `json:"ledgerCredited"`
}

func (e PaymentRecorded) EventName() string { return "payments.recorded" }
