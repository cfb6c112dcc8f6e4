package service

import (
	"errors"

	"github.com/ethereum/go-ethereum/common"

	"evoting-ledger/journal"
	"evoting-ledger/models"
	"evoting-ledger/storage"
	"evoting-ledger/token"
)

// CastVote records one anonymous ballot. In a single transaction it burns
// the voter's voting-rights unit, flips the credential's has-voted flag,
// appends the ballot at the next sequence position, and bumps the candidate
// and election counters. Any failed step discards all of it.
//
// The has-voted flag and the token burn are independent double-vote
// barriers: a replay must get past both, and the burn is enforced by the
// token subsystem regardless of the flag's state.
//
// The ballot stores the voter's choice and sequence position but never the
// voter's identity; the only link back to the voter is the receipt, which
// only the voter's own credential can reproduce.
func (s *ElectionService) CastVote(
	voter common.Address,
	electionAddr models.Address,
	candidateID uint32,
	encryptedVote [models.EncryptedVoteSize]byte,
) (ballot *models.Ballot, err error) {
	defer func() { s.metrics.observe("cast_vote", err) }()

	err = s.store.Update(func(txn *storage.Txn) error {
		election, err := storage.GetElection(txn, electionAddr)
		if err != nil {
			return err
		}
		now := s.now().Unix()
		if !election.IsActive {
			return ErrElectionNotActive
		}
		if now < election.StartTime || now > election.EndTime {
			return ErrVotingPeriodInvalid
		}

		credAddr, _ := models.CredentialAddress(electionAddr, voter)
		credential, err := storage.GetCredential(txn, credAddr)
		if err != nil {
			if errors.Is(err, storage.ErrNotFound) {
				return ErrVoterNotVerified
			}
			return err
		}
		if credential.HasVoted {
			return ErrAlreadyVoted
		}
		if !credential.IsVerified {
			return ErrVoterNotVerified
		}

		// Primary double-vote barrier: consume the voting-rights unit.
		if err := token.BurnOne(txn, electionAddr, voter, voter); err != nil {
			return err
		}

		credential.HasVoted = true
		credential.VoteTimestamp = &now
		if err := storage.PutCredential(txn, credAddr, credential); err != nil {
			return err
		}

		candidateAddr, _ := models.CandidateAddress(electionAddr, candidateID)
		candidate, err := storage.GetCandidate(txn, candidateAddr)
		if err != nil {
			return err
		}

		ballotAddr, salt := models.BallotAddress(electionAddr, election.TotalVotesCast)
		ballot = &models.Ballot{
			Election:            electionAddr,
			Candidate:           candidateAddr,
			EncryptedVote:       encryptedVote,
			Timestamp:           now,
			Sequence:            election.TotalVotesCast,
			VerificationReceipt: s.crypto.BallotReceipt(voter, credential.VerificationCode, now),
			Salt:                salt,
		}
		if err := storage.CreateBallot(txn, ballotAddr, ballot); err != nil {
			return err
		}

		candidate.VoteCount, err = checkedInc(candidate.VoteCount)
		if err != nil {
			return err
		}
		if err := storage.PutCandidate(txn, candidateAddr, candidate); err != nil {
			return err
		}

		election.TotalVotesCast, err = checkedInc(election.TotalVotesCast)
		if err != nil {
			return err
		}
		if err := storage.PutElection(txn, electionAddr, election); err != nil {
			return err
		}

		data, err := ballot.MarshalBinary()
		if err != nil {
			return err
		}
		return journal.Append(txn, electionAddr, "cast_vote", now, data)
	})
	if err != nil {
		return nil, err
	}
	s.metrics.voteCast()
	return ballot, nil
}

// GetBallot reads a ballot record by its election and sequence.
func (s *ElectionService) GetBallot(electionAddr models.Address, sequence uint64) (*models.Ballot, error) {
	addr, _ := models.BallotAddress(electionAddr, sequence)
	var ballot *models.Ballot
	err := s.store.View(func(txn *storage.Txn) error {
		var err error
		ballot, err = storage.GetBallot(txn, addr)
		return err
	})
	return ballot, err
}
