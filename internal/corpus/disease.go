// Package corpus owns the disease reference data: the record type, the CSV
// seed loader, and the PostgreSQL repository the admin dashboard writes to.
// Index lifecycle management lives in the manager subpackage.
package corpus

// Disease is one row of the reference corpus. Symptoms is the free-text
// symptom description used for matching; the remaining payload fields are
// returned verbatim with a match and never influence scoring.
type Disease struct {
	Name        string `json:"name"`
	Symptoms    string `json:"symptoms"`
	Description string `json:"description,omitempty"`
	Treatments  string `json:"treatments,omitempty"`
	Precautions string `json:"precautions,omitempty"`
}
