package repository

import (
	"strings"
	"testing"
)

// Every statement of the replace must stay inside one organization.
func TestReplaceQueriesAreOrganizationScoped(t *testing.T) {
	queries := map[string]string{
		"archive cases":      archiveCasesQuery,
		"archive follow-ups": archiveFollowUpsQuery,
		"archive payments":   archivePaymentsQuery,
		"expire missing":     expireMissingQuery,
	}
	for name, query := range queries {
		if !strings.Contains(query, "WHERE organization_id = $1") {
			t.Errorf("%s is not scoped to the organization", name)
		}
	}
}

func TestArchiveCopiesKeepSourceIdentity(t *testing.T) {
	for name, query := range map[string]string{
		"cases":      archiveCasesQuery,
		"follow-ups": archiveFollowUpsQuery,
		"payments":   archivePaymentsQuery,
	} {
		if !strings.Contains(query, "source_id") || !strings.Contains(query, "SELECT $2, organization_id, id,") {
			t.Errorf("%s archive must record the live id as source_id", name)
		}
	}
}

func TestUpsertLeavesAgentOwnedColumns(t *testing.T) {
	update := upsertCaseQuery[strings.Index(upsertCaseQuery, "DO UPDATE SET"):]
	for _, column := range []string{"assigned_to", "remarks", "co_applicants", "location"} {
		if strings.Contains(update, column+" =") {
			t.Errorf("upsert overwrites agent-owned column %s", column)
		}
	}
	if !strings.Contains(update, "expired = false") {
		t.Error("upsert must revive expired cases")
	}
}

func TestExpireClearsDueState(t *testing.T) {
	for _, fragment := range []string{"due_emi_amount = NULL", "due_emi = NULL", "expired = true", "NOT (case_no = ANY($2))"} {
		if !strings.Contains(expireMissingQuery, fragment) {
			t.Errorf("expire query missing %q", fragment)
		}
	}
}
