package service

import (
	"github.com/ethereum/go-ethereum/common"

	"evoting-ledger/journal"
	"evoting-ledger/models"
	"evoting-ledger/storage"
	"evoting-ledger/token"
)

func validNIK(nik string) bool {
	if len(nik) != models.NIKLength {
		return false
	}
	for _, c := range nik {
		if c < '0' || c > '9' {
			return false
		}
	}
	return true
}

// VerifyVoter records an identity attestation as a voter credential and
// grants the voter exactly one voting-rights unit. Registration only runs
// before the election's start time; the registration and voting windows are
// deliberately disjoint. Only the hash of the NIK is persisted, the raw
// value goes into the derived verification code and is then discarded.
//
// A second credential for the same (election, voter) collides on its
// derived address and is rejected by the store.
func (s *ElectionService) VerifyVoter(
	voter common.Address,
	electionAddr models.Address,
	nik string,
	biometricHash [32]byte,
	photoRef string,
	verificationTimestamp int64,
	confidenceScore uint8,
) (credential *models.VoterCredential, err error) {
	defer func() { s.metrics.observe("verify_voter", err) }()

	if !validNIK(nik) {
		return nil, ErrInvalidNIK
	}
	if len(photoRef) > models.MaxPhotoRefLen {
		return nil, ErrInvalidIPFSHash
	}
	if confidenceScore > models.MaxConfidenceScore {
		return nil, ErrInvalidConfidenceScore
	}

	addr, salt := models.CredentialAddress(electionAddr, voter)
	err = s.store.Update(func(txn *storage.Txn) error {
		election, err := storage.GetElection(txn, electionAddr)
		if err != nil {
			return err
		}
		if s.now().Unix() >= election.StartTime {
			return ErrRegistrationClosed
		}

		credential = &models.VoterCredential{
			Election:              electionAddr,
			Voter:                 voter,
			NIKHash:               s.crypto.HashNIK(nik),
			BiometricHash:         biometricHash,
			PhotoRef:              photoRef,
			IsVerified:            true,
			HasVoted:              false,
			VerificationTimestamp: verificationTimestamp,
			ConfidenceScore:       confidenceScore,
			VerificationCode:      s.crypto.VerificationCode(voter, nik, verificationTimestamp),
			Salt:                  salt,
		}
		if err := storage.CreateCredential(txn, addr, credential); err != nil {
			return err
		}

		// One unit minted per credential, authorized by the election itself.
		if err := token.MintOne(txn, electionAddr, electionAddr, voter); err != nil {
			return err
		}

		election.TotalRegisteredVoters, err = checkedInc(election.TotalRegisteredVoters)
		if err != nil {
			return err
		}
		if err := storage.PutElection(txn, electionAddr, election); err != nil {
			return err
		}
		data, err := credential.MarshalBinary()
		if err != nil {
			return err
		}
		return journal.Append(txn, electionAddr, "verify_voter", s.now().Unix(), data)
	})
	if err != nil {
		return nil, err
	}
	s.metrics.voterRegistered()
	return credential, nil
}
