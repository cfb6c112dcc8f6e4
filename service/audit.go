package service

import (
	"github.com/ethereum/go-ethereum/common"

	"evoting-ledger/models"
	"evoting-ledger/storage"
)

// AuditVerification returns the commissioner-facing projection of a voter's
// credential: the identifier hashes, score and flags the verification
// pipeline produced. Read-only; it reveals verification metadata, never a
// vote.
func (s *ElectionService) AuditVerification(
	commissioner common.Address,
	electionAddr models.Address,
	voter common.Address,
) (audit *models.AuditData, err error) {
	defer func() { s.metrics.observe("audit_verification", err) }()

	err = s.store.View(func(txn *storage.Txn) error {
		election, err := storage.GetElection(txn, electionAddr)
		if err != nil {
			return err
		}
		if !election.IsCommissioner(commissioner) {
			return ErrNotCommissioner
		}
		credAddr, _ := models.CredentialAddress(electionAddr, voter)
		credential, err := storage.GetCredential(txn, credAddr)
		if err != nil {
			return err
		}
		audit = &models.AuditData{
			NIKHash:               credential.NIKHash,
			BiometricHash:         credential.BiometricHash,
			ConfidenceScore:       credential.ConfidenceScore,
			VerificationTimestamp: credential.VerificationTimestamp,
			HasVoted:              credential.HasVoted,
			IsVerified:            credential.IsVerified,
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return audit, nil
}

// VerifyBallotReceipt re-derives the receipt for (voter, ballot) from the
// voter's credential and compares it to the receipt stored on the ballot.
// A mismatched credential/ballot pair yields IsValid false, never an
// unconditional true.
func (s *ElectionService) VerifyBallotReceipt(
	voter common.Address,
	electionAddr models.Address,
	sequence uint64,
) (receipt *models.ReceiptVerification, err error) {
	defer func() { s.metrics.observe("verify_ballot_receipt", err) }()

	err = s.store.View(func(txn *storage.Txn) error {
		credAddr, _ := models.CredentialAddress(electionAddr, voter)
		credential, err := storage.GetCredential(txn, credAddr)
		if err != nil {
			return err
		}
		ballotAddr, _ := models.BallotAddress(electionAddr, sequence)
		ballot, err := storage.GetBallot(txn, ballotAddr)
		if err != nil {
			return err
		}
		derived := s.crypto.BallotReceipt(voter, credential.VerificationCode, ballot.Timestamp)
		receipt = &models.ReceiptVerification{
			IsValid:          derived == ballot.VerificationReceipt,
			BallotSequence:   ballot.Sequence,
			Timestamp:        ballot.Timestamp,
			VerificationCode: credential.VerificationCode,
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return receipt, nil
}
