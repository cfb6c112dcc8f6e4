package service

import "errors"

// Validation and state errors surfaced by the election engine. Every error
// aborts the whole enclosing transaction; callers resubmit or abandon.
var (
	ErrInvalidCommissionerCount = errors.New("invalid number of commissioners")
	ErrInvalidElectionPeriod    = errors.New("election period is invalid")
	ErrNameTooLong              = errors.New("name is too long")
	ErrElectionAlreadyActive    = errors.New("election is already active")
	ErrElectionNotActive        = errors.New("election is not active")
	ErrElectionNotStarted       = errors.New("election has not started yet")
	ErrElectionStillActive      = errors.New("election is still active")
	ErrInvalidNIK               = errors.New("invalid NIK format (must be 16 digits)")
	ErrInvalidIPFSHash          = errors.New("invalid IPFS hash")
	ErrInvalidConfidenceScore   = errors.New("invalid confidence score (must be 0-100)")
	ErrRegistrationClosed       = errors.New("voter registration is closed")
	ErrAlreadyVoted             = errors.New("voter has already voted")
	ErrVoterNotVerified         = errors.New("voter is not verified")
	ErrVotingPeriodInvalid      = errors.New("voting period is invalid")
	ErrOverflow                 = errors.New("arithmetic overflow")

	ErrNotCommissioner = errors.New("caller is not an election commissioner")
	ErrNotAuthority    = errors.New("caller is not the election authority")
)
