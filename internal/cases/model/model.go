// Package model holds the JSON documents embedded in a case row and the pure
// merge rules shared by uploads and agent edits.
package model

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// Location is a geotag recorded by a field agent.
type Location struct {
	Latitude   float64   `json:"latitude"`
	Longitude  float64   `json:"longitude"`
	RecordedBy uuid.UUID `json:"recordedBy"`
	RecordedAt time.Time `json:"recordedAt"`
}

// CoApplicant is a co-borrower or guarantor on a case.
type CoApplicant struct {
	Name               string    `json:"name"`
	OwnershipIndicator string    `json:"ownershipIndicator"`
	ContactNo          []string  `json:"contactNo"`
	Location           *Location `json:"location,omitempty"`
}

// Remark is one free-text note on a case.
type Remark struct {
	ID        uuid.UUID `json:"id"`
	Text      string    `json:"text"`
	CreatedBy uuid.UUID `json:"createdBy"`
	CreatedAt time.Time `json:"createdAt"`
}

// MergeContacts appends numbers missing from existing, keeping order.
func MergeContacts(existing, numbers []string) []string {
	out := append(make([]string, 0, len(existing)+len(numbers)), existing...)
	for _, n := range numbers {
		n = strings.TrimSpace(n)
		if n == "" || contains(out, n) {
			continue
		}
		out = append(out, n)
	}
	return out
}

func contains(list []string, value string) bool {
	for _, v := range list {
		if v == value {
			return true
		}
	}
	return false
}

// FindCoApplicant returns the index of the co-applicant called name,
// compared case-insensitively, or -1.
func FindCoApplicant(list []CoApplicant, name string) int {
	for i, c := range list {
		if strings.EqualFold(strings.TrimSpace(c.Name), strings.TrimSpace(name)) {
			return i
		}
	}
	return -1
}

// UpsertCoApplicant updates the co-applicant with the same name or appends
// a new one. Contacts are merged and the location is kept.
func UpsertCoApplicant(list []CoApplicant, incoming CoApplicant) []CoApplicant {
	if i := FindCoApplicant(list, incoming.Name); i >= 0 {
		list[i].OwnershipIndicator = incoming.OwnershipIndicator
		list[i].ContactNo = MergeContacts(list[i].ContactNo, incoming.ContactNo)
		return list
	}
	if incoming.ContactNo == nil {
		incoming.ContactNo = []string{}
	}
	return append(list, incoming)
}

// RemoveRemark drops the remark with id. Reports whether it existed.
func RemoveRemark(list []Remark, id uuid.UUID) ([]Remark, bool) {
	for i, r := range list {
		if r.ID == id {
			return append(list[:i:i], list[i+1:]...), true
		}
	}
	return list, false
}
