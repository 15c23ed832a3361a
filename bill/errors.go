package bill

import "errors"

var (
	ErrInvalidSum          = errors.New("bill: sum must be greater than zero")
	ErrInvalidDate         = errors.New("bill: date must be in YYYY-MM-DD form")
	ErrMaturityBeforeIssue = errors.New("bill: maturity date precedes issue date")
	ErrMissingParticipant  = errors.New("bill: required participant is missing")
	ErrInvalidNodeID       = errors.New("bill: node id does not parse to a valid public key")
)
