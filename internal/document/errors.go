package document

import "fmt"

// MalformedRevisionError reports inconsistent page or section data in
// a revision. It is fatal for the pair being processed.
type MalformedRevisionError struct {
	RevisionID string
	Section    string
	Reason     string
}

func (e *MalformedRevisionError) Error() string {
	if e.Section != "" {
		return fmt.Sprintf("revision %s: section %q: %s", e.RevisionID, e.Section, e.Reason)
	}
	return fmt.Sprintf("revision %s: %s", e.RevisionID, e.Reason)
}
