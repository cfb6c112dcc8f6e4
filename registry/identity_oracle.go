// Package registry stands in for the external identity-verification
// pipeline. The real pipeline matches biometrics off-chain and produces an
// attestation; this core only ever consumes the attestation's hashes and
// score, so a seeded mock is enough for the demo server and tests.
package registry

import (
	"crypto/sha256"
	"errors"
	"fmt"
	"sync"
	"time"
)

var ErrUnknownSubject = errors.New("subject not found in identity registry")

// Attestation is what the verification pipeline hands to the ledger:
// the raw NIK, a hash of the biometric composite, a content-addressed
// reference to the encrypted evidence, and a confidence score.
type Attestation struct {
	NIK             string   `json:"nik"`
	BiometricHash   [32]byte `json:"biometric_hash"`
	PhotoRef        string   `json:"photo_ref"`
	Timestamp       int64    `json:"timestamp"`
	ConfidenceScore uint8    `json:"confidence_score"`
}

// IdentityOracle produces attestations for known subjects.
type IdentityOracle interface {
	Attest(nik string) (*Attestation, error)
}

type subjectRecord struct {
	confidence uint8
	photoRef   string
}

// MockOracle implements IdentityOracle over a seeded subject table.
type MockOracle struct {
	mu       sync.RWMutex
	subjects map[string]subjectRecord
	now      func() time.Time
}

func NewMockOracle() *MockOracle {
	return &MockOracle{
		subjects: make(map[string]subjectRecord),
		now:      time.Now,
	}
}

// Seed registers a subject the oracle will attest for.
func (m *MockOracle) Seed(nik string, confidence uint8, photoRef string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.subjects[nik] = subjectRecord{confidence: confidence, photoRef: photoRef}
}

// SeedTestData loads a handful of subjects for demos.
func (m *MockOracle) SeedTestData() {
	for i := 0; i < 5; i++ {
		nik := fmt.Sprintf("317402%010d", i+1)
		m.Seed(nik, uint8(90+i), fmt.Sprintf("ipfs://QmMockEvidence%04d", i+1))
	}
}

func (m *MockOracle) Attest(nik string) (*Attestation, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	rec, ok := m.subjects[nik]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownSubject, nik)
	}
	// Deterministic stand-in for the real biometric composite hash.
	biometric := sha256.Sum256([]byte(nik + "|retina|face|fingerprint"))
	return &Attestation{
		NIK:             nik,
		BiometricHash:   biometric,
		PhotoRef:        rec.photoRef,
		Timestamp:       m.now().Unix(),
		ConfidenceScore: rec.confidence,
	}, nil
}
