// Package visibility turns an actor's permissions into the scope that limits
// which cases, follow-ups and payments the actor may read or change.
//
// A Scope renders to a SQL predicate for a Target (the column set of one
// query) and evaluates in memory through Allows. Both forms share the rules
// below, in order:
//
//   - super-admin or view_others: everything in the organization
//   - otherwise the OR of assigned (view_assigned), branch (view_area) and
//     self-created (view_self)
//   - no relevant permission: nothing
package visibility

import (
	"fmt"
	"slices"
	"sort"
	"strings"

	"github.com/google/uuid"
)

// Permission is a resolved permission flag of an employee.
type Permission string

const (
	PermViewSelf     Permission = "view_self"
	PermViewAssigned Permission = "view_assigned"
	PermViewArea     Permission = "view_area"
	PermViewOthers   Permission = "view_others"
)

// NoBranchSentinel replaces an empty branch list so the IN test can never
// match rows with an empty or missing area.
const NoBranchSentinel = "__NO_BRANCH__"

// Actor is the caller as resolved for one request.
type Actor struct {
	OrganizationID uuid.UUID
	EmployeeID     uuid.UUID
	Name           string
	Branches       []string
	Permissions    []Permission
	SuperAdmin     bool
}

// Has reports whether the actor holds p.
func (a Actor) Has(p Permission) bool {
	return slices.Contains(a.Permissions, p)
}

// Scope is the composed restriction. Unrestricted still implies the
// organization filter.
type Scope struct {
	OrganizationID uuid.UUID
	Unrestricted   bool
	AssignedTo     *uuid.UUID
	Areas          []string
	SelfCreated    *uuid.UUID
}

// Compose builds the scope for actor.
func Compose(actor Actor) Scope {
	scope := Scope{OrganizationID: actor.OrganizationID}
	if actor.SuperAdmin || actor.Has(PermViewOthers) {
		scope.Unrestricted = true
		return scope
	}

	if actor.Has(PermViewAssigned) {
		id := actor.EmployeeID
		scope.AssignedTo = &id
	}
	if actor.Has(PermViewArea) {
		scope.Areas = normalizeBranches(actor.Branches)
	}
	if actor.Has(PermViewSelf) {
		id := actor.EmployeeID
		scope.SelfCreated = &id
	}
	return scope
}

func normalizeBranches(branches []string) []string {
	out := make([]string, 0, len(branches))
	for _, b := range branches {
		b = strings.ToUpper(strings.TrimSpace(b))
		if b != "" && !slices.Contains(out, b) {
			out = append(out, b)
		}
	}
	if len(out) == 0 {
		return []string{NoBranchSentinel}
	}
	sort.Strings(out)
	return out
}

// DenyAll reports whether the scope matches nothing.
func (s Scope) DenyAll() bool {
	return !s.Unrestricted && s.AssignedTo == nil && s.Areas == nil && s.SelfCreated == nil
}

// Fingerprint identifies scopes that see the same rows. Used as a cache key.
func (s Scope) Fingerprint() string {
	switch {
	case s.Unrestricted:
		return "all"
	case s.DenyAll():
		return "none"
	}
	parts := make([]string, 0, 3)
	if s.AssignedTo != nil {
		parts = append(parts, "assigned="+s.AssignedTo.String())
	}
	if s.Areas != nil {
		parts = append(parts, "areas="+strings.Join(s.Areas, ","))
	}
	if s.SelfCreated != nil {
		parts = append(parts, "self="+s.SelfCreated.String())
	}
	return strings.Join(parts, "|")
}

// Record is the part of a row the scope looks at.
type Record struct {
	OrganizationID uuid.UUID
	AssignedTo     *uuid.UUID
	Area           string
	// Creators are the employees who created the row (follow-ups, payments)
	// or any follow-up or payment on it (cases).
	Creators []uuid.UUID
	// Retired is set for expired cases, which self-created access ignores.
	Retired bool
}

// Allows evaluates the scope against one record.
func (s Scope) Allows(r Record) bool {
	if r.OrganizationID != s.OrganizationID {
		return false
	}
	if s.Unrestricted {
		return true
	}
	if s.AssignedTo != nil && r.AssignedTo != nil && *r.AssignedTo == *s.AssignedTo {
		return true
	}
	if s.Areas != nil && slices.Contains(s.Areas, r.Area) {
		return true
	}
	if s.SelfCreated != nil && !r.Retired && slices.Contains(r.Creators, *s.SelfCreated) {
		return true
	}
	return false
}

// Predicate renders the scope for target. Placeholders start at $argStart and
// the returned args line up with them.
func (s Scope) Predicate(target Target, argStart int) (string, []any) {
	args := []any{s.OrganizationID}
	orgClause := fmt.Sprintf("%s = $%d", target.Organization, argStart)

	if s.Unrestricted {
		return orgClause, args
	}
	if s.DenyAll() {
		return orgClause + " AND FALSE", args
	}

	next := argStart + 1
	var ors []string
	if s.AssignedTo != nil {
		ors = append(ors, fmt.Sprintf("%s = $%d", target.AssignedTo, next))
		args = append(args, *s.AssignedTo)
		next++
	}
	if s.Areas != nil {
		ors = append(ors, fmt.Sprintf("%s = ANY($%d)", target.Area, next))
		args = append(args, s.Areas)
		next++
	}
	if s.SelfCreated != nil {
		ors = append(ors, target.SelfCreated(fmt.Sprintf("$%d", next)))
		args = append(args, *s.SelfCreated)
	}

	return orgClause + " AND (" + strings.Join(ors, " OR ") + ")", args
}
