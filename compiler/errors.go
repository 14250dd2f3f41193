package compiler

import "fmt"

// CompileErrorKind enumerates the validation failures spec.md §4.2
// "Validation" lists as "reported as error status on the offending object,
// not fatal to compilation".
type CompileErrorKind string

const (
	ErrOverlapWithoutEnclosure CompileErrorKind = "overlap-without-enclosure"
	ErrDeadlockCycle           CompileErrorKind = "group-reentry-deadlock"
	ErrForEachTopology         CompileErrorKind = "foreach-invalid-topology"
	ErrChooseNoOutgoingChoice  CompileErrorKind = "choose-no-outgoing-choice"
	ErrRepeatOutgoingOrList    CompileErrorKind = "repeat-invalid-edges"
	ErrListEdgeOnNonGroup      CompileErrorKind = "list-edge-on-non-group"
	ErrNamedOutputInForEach    CompileErrorKind = "named-output-in-foreach"
	ErrReservedName            CompileErrorKind = "reserved-name"
	ErrUnresolvedSubtype       CompileErrorKind = "unresolved-subtype"
)

// CompileError is one non-fatal validation failure, attached to the
// offending object id.
type CompileError struct {
	Kind     CompileErrorKind
	ObjectID string
	Message  string
}

func (e CompileError) Error() string {
	return fmt.Sprintf("%s: %s: %s", e.Kind, e.ObjectID, e.Message)
}

func (g *VerifiedGraph) addError(kind CompileErrorKind, objectID, message string) {
	g.Errors = append(g.Errors, CompileError{Kind: kind, ObjectID: objectID, Message: message})
}
