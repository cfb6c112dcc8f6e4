package models

// AuditData is the commissioner-facing projection of a voter credential.
// It is computed per request and never persisted.
type AuditData struct {
	NIKHash               [32]byte `json:"nik_hash"`
	BiometricHash         [32]byte `json:"biometric_hash"`
	ConfidenceScore       uint8    `json:"confidence_score"`
	VerificationTimestamp int64    `json:"verification_timestamp"`
	HasVoted              bool     `json:"has_voted"`
	IsVerified            bool     `json:"is_verified"`
}

// ReceiptVerification is the voter-facing proof that a ballot was recorded.
// IsValid is true only when the receipt stored on the ballot matches the one
// re-derived from the voter's credential. Never persisted.
type ReceiptVerification struct {
	IsValid          bool   `json:"is_valid"`
	BallotSequence   uint64 `json:"ballot_sequence"`
	Timestamp        int64  `json:"timestamp"`
	VerificationCode string `json:"verification_code"`
}
