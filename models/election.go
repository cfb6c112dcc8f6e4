package models

import (
	"github.com/ethereum/go-ethereum/common"
)

const (
	// MaxNameLen bounds election and candidate names.
	MaxNameLen = 100
	// MaxCommissioners bounds the commissioner set of an election.
	MaxCommissioners = 10
	// MaxPhotoRefLen bounds the off-chain photo reference handle.
	MaxPhotoRefLen = 100
	// NIKLength is the exact digit count of a national identity number.
	NIKLength = 16
	// MaxConfidenceScore is the upper bound of the verification confidence score.
	MaxConfidenceScore = 100
	// EncryptedVoteSize is the fixed size of the opaque encrypted vote payload.
	EncryptedVoteSize = 32
)

// Election is the aggregate root: configuration, lifecycle flag and the
// running counters every voter-facing operation contends on.
type Election struct {
	Authority             common.Address   `json:"authority"`
	Name                  string           `json:"name"`
	StartTime             int64            `json:"start_time"`
	EndTime               int64            `json:"end_time"`
	IsActive              bool             `json:"is_active"`
	TotalRegisteredVoters uint64           `json:"total_registered_voters"`
	TotalVotesCast        uint64           `json:"total_votes_cast"`
	Commissioners         []common.Address `json:"commissioners"`
	RequiredSignatures    uint8            `json:"required_signatures"`
	Salt                  uint8            `json:"salt"`
}

// IsCommissioner reports whether addr is part of the election's
// commissioner set.
func (e *Election) IsCommissioner(addr common.Address) bool {
	for _, c := range e.Commissioners {
		if c == addr {
			return true
		}
	}
	return false
}

// Candidate holds the per-candidate tally, keyed under its election.
type Candidate struct {
	Election    Address `json:"election"`
	CandidateID uint32  `json:"candidate_id"`
	Name        string  `json:"name"`
	VoteCount   uint64  `json:"vote_count"`
	Salt        uint8   `json:"salt"`
}

// VoterCredential proves a voter passed identity verification. Only hashes
// of the national identity number and the biometric composite are stored;
// the raw values never reach this record.
type VoterCredential struct {
	Election              Address        `json:"election"`
	Voter                 common.Address `json:"voter"`
	NIKHash               [32]byte       `json:"nik_hash"`
	BiometricHash         [32]byte       `json:"biometric_hash"`
	PhotoRef              string         `json:"photo_ref"`
	IsVerified            bool           `json:"is_verified"`
	HasVoted              bool           `json:"has_voted"`
	VerificationTimestamp int64          `json:"verification_timestamp"`
	VoteTimestamp         *int64         `json:"vote_timestamp,omitempty"`
	ConfidenceScore       uint8          `json:"confidence_score"`
	VerificationCode      string         `json:"verification_code"`
	Salt                  uint8          `json:"salt"`
}

// Ballot is an anonymous vote record. It carries the ballot's position in
// the election's gapless sequence and never the voter's identity.
type Ballot struct {
	Election            Address                 `json:"election"`
	Candidate           Address                 `json:"candidate"`
	EncryptedVote       [EncryptedVoteSize]byte `json:"encrypted_vote"`
	Timestamp           int64                   `json:"timestamp"`
	Sequence            uint64                  `json:"sequence"`
	VerificationReceipt string                  `json:"verification_receipt"`
	Salt                uint8                   `json:"salt"`
}
