package visibility

import "fmt"

// Target names the columns one query exposes to the scope.
type Target struct {
	Organization string
	AssignedTo   string
	Area         string
	// SelfCreated renders the self-created test given the actor placeholder.
	SelfCreated func(actorArg string) string
}

// CaseTarget filters cases aliased as alias. A case counts as self-created
// when it is live and the actor recorded a follow-up or payment on it.
func CaseTarget(alias string) Target {
	return Target{
		Organization: alias + ".organization_id",
		AssignedTo:   alias + ".assigned_to",
		Area:         alias + ".area",
		SelfCreated: func(actorArg string) string {
			return fmt.Sprintf(
				"(NOT %[1]s.expired AND (EXISTS (SELECT 1 FROM follow_ups sf WHERE sf.organization_id = %[1]s.organization_id AND sf.case_no = %[1]s.case_no AND sf.created_by = %[2]s)"+
					" OR EXISTS (SELECT 1 FROM payments sp WHERE sp.organization_id = %[1]s.organization_id AND sp.case_no = %[1]s.case_no AND sp.created_by = %[2]s)))",
				alias, actorArg)
		},
	}
}

// FollowUpTarget filters follow-ups aliased as alias joined to their case.
func FollowUpTarget(alias, caseAlias string) Target {
	return createdRowTarget(alias, caseAlias)
}

// PaymentTarget filters payments aliased as alias joined to their case.
func PaymentTarget(alias, caseAlias string) Target {
	return createdRowTarget(alias, caseAlias)
}

func createdRowTarget(alias, caseAlias string) Target {
	return Target{
		Organization: alias + ".organization_id",
		AssignedTo:   caseAlias + ".assigned_to",
		Area:         caseAlias + ".area",
		SelfCreated: func(actorArg string) string {
			return fmt.Sprintf("%s.created_by = %s", alias, actorArg)
		},
	}
}

// CaseRevisionTarget filters archived cases aliased as alias. Self-created
// looks at the follow-ups and payments archived in the same batch.
func CaseRevisionTarget(alias string) Target {
	return Target{
		Organization: alias + ".organization_id",
		AssignedTo:   alias + ".assigned_to",
		Area:         alias + ".area",
		SelfCreated: func(actorArg string) string {
			return fmt.Sprintf(
				"(NOT %[1]s.expired AND (EXISTS (SELECT 1 FROM follow_up_revisions sf WHERE sf.organization_id = %[1]s.organization_id AND sf.revision_id = %[1]s.revision_id AND sf.case_no = %[1]s.case_no AND sf.created_by = %[2]s)"+
					" OR EXISTS (SELECT 1 FROM payment_revisions sp WHERE sp.organization_id = %[1]s.organization_id AND sp.revision_id = %[1]s.revision_id AND sp.case_no = %[1]s.case_no AND sp.created_by = %[2]s)))",
				alias, actorArg)
		},
	}
}
