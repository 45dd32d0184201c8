// Package status defines the XACML status codes and the Status value
// attached to Indeterminate decisions and bag-evaluation failures
// (spec.md §7).
package status

// Code is a XACML status code URN.
type Code string

const (
	// OK indicates successful evaluation.
	OK Code = "urn:oasis:names:tc:xacml:1.0:status:ok"
	// SyntaxError indicates a malformed policy or request artifact.
	SyntaxError Code = "urn:oasis:names:tc:xacml:1.0:status:syntax-error"
	// ProcessingError indicates an internal evaluation failure.
	ProcessingError Code = "urn:oasis:names:tc:xacml:1.0:status:processing-error"
	// MissingAttribute indicates a required attribute could not be resolved.
	MissingAttribute Code = "urn:oasis:names:tc:xacml:1.0:status:missing-attribute"
)

// Status carries a status code, a human-readable message, and optional
// detail (e.g. the offending AttributeDesignator, attached per spec.md §7
// for MissingAttribute statuses).
type Status struct {
	Code    Code
	Message string
	Detail  any
}

// New builds a Status with the given code and message.
func New(code Code, message string) Status {
	return Status{Code: code, Message: message}
}

// WithDetail returns a copy of s with Detail set.
func (s Status) WithDetail(detail any) Status {
	s.Detail = detail
	return s
}

// Extended is the Extended Indeterminate annotation on an Indeterminate
// decision: the set of decisions {D, P, DP} the evaluation could have
// produced had it not failed (spec.md §3, Glossary).
type Extended string

const (
	// ExtendedNone is used when Decision != Indeterminate.
	ExtendedNone Extended = ""
	// ExtendedD means the failed evaluation could only have been Deny.
	ExtendedD Extended = "D"
	// ExtendedP means the failed evaluation could only have been Permit.
	ExtendedP Extended = "P"
	// ExtendedDP means the failed evaluation could have been either.
	ExtendedDP Extended = "DP"
)
