// Package kyc provides the business logic for resolving account KYC
// verification status from Airtable records.
package kyc

import (
	"fmt"
)

// Status is the closed set of verification statuses returned to callers.
// The wire form is SCREAMING_SNAKE_CASE.
type Status string

const (
	// StatusNotSubmitted means no verification record exists for the account
	StatusNotSubmitted Status = "NOT_SUBMITTED"
	// StatusPending means a verification record exists but has not been decided
	StatusPending Status = "PENDING"
	// StatusRejected means verification was declined
	StatusRejected Status = "REJECTED"
	// StatusApproved means the account passed verification
	StatusApproved Status = "APPROVED"
	// StatusExpired means a previously positive verification is no longer valid
	StatusExpired Status = "EXPIRED"
)

// Airtable vocabulary for the "Owner Verification Status" field.
const (
	fieldValueVerified     = "Verified"
	fieldValueRejected     = "Rejected"
	fieldValuePending      = "Pending"
	fieldValueExpired      = "Expired"
	fieldValueNotSubmitted = "Not Submitted"
)

// normalizeStatus maps the Airtable status vocabulary onto the internal
// enumeration. Every upstream value maps to exactly one Status; anything
// outside the known vocabulary is a schema mismatch, not a silent default.
//
//	Verified      -> APPROVED
//	Rejected      -> REJECTED
//	Pending       -> PENDING
//	Expired       -> EXPIRED
//	Not Submitted -> NOT_SUBMITTED
func normalizeStatus(value string) (Status, error) {
	switch value {
	case fieldValueVerified:
		return StatusApproved, nil
	case fieldValueRejected:
		return StatusRejected, nil
	case fieldValuePending:
		return StatusPending, nil
	case fieldValueExpired:
		return StatusExpired, nil
	case fieldValueNotSubmitted:
		return StatusNotSubmitted, nil
	default:
		return "", fmt.Errorf("%w: unknown verification status %q", ErrUpstreamSchemaMismatch, value)
	}
}

// isPositive reports whether a status can be invalidated by an expired
// standing. Rejected and NotSubmitted are terminal either way.
func isPositive(s Status) bool {
	return s == StatusApproved || s == StatusPending
}
