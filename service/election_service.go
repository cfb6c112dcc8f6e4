package service

import (
	"errors"
	"math"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"evoting-ledger/encryption"
	"evoting-ledger/journal"
	"evoting-ledger/models"
	"evoting-ledger/storage"
	"evoting-ledger/token"
)

// ElectionService executes the election operations against the account
// store. Every public method is one serializable transaction: either all of
// its effects commit or none do.
type ElectionService struct {
	store   *storage.Store
	crypto  *encryption.CryptoService
	metrics *Metrics
	now     func() time.Time
}

func NewElectionService(store *storage.Store, metrics *Metrics) *ElectionService {
	return &ElectionService{
		store:   store,
		crypto:  encryption.NewCryptoService(),
		metrics: metrics,
		now:     time.Now,
	}
}

// SetClock overrides the service's time source, for tests and
// deterministic replays.
func (s *ElectionService) SetClock(now func() time.Time) {
	s.now = now
}

// checkedInc increments v, failing loud instead of wrapping.
func checkedInc(v uint64) (uint64, error) {
	if v == math.MaxUint64 {
		return 0, ErrOverflow
	}
	return v + 1, nil
}

// CreateElection persists a new election record and its voting-token mint.
// The election starts inactive with both counters at zero.
func (s *ElectionService) CreateElection(
	authority common.Address,
	name string,
	startTime, endTime int64,
	commissioners []common.Address,
	requiredSignatures uint8,
) (addr models.Address, err error) {
	defer func() { s.metrics.observe("create_election", err) }()

	if len(commissioners) < int(requiredSignatures) || len(commissioners) > models.MaxCommissioners {
		return models.Address{}, ErrInvalidCommissionerCount
	}
	if startTime >= endTime {
		return models.Address{}, ErrInvalidElectionPeriod
	}
	if len(name) > models.MaxNameLen {
		return models.Address{}, ErrNameTooLong
	}

	addr, salt := models.ElectionAddress(name)
	election := &models.Election{
		Authority:          authority,
		Name:               name,
		StartTime:          startTime,
		EndTime:            endTime,
		Commissioners:      append([]common.Address(nil), commissioners...),
		RequiredSignatures: requiredSignatures,
		Salt:               salt,
	}

	err = s.store.Update(func(txn *storage.Txn) error {
		if err := storage.CreateElection(txn, addr, election); err != nil {
			return err
		}
		if _, err := token.CreateMint(txn, addr); err != nil {
			return err
		}
		data, err := election.MarshalBinary()
		if err != nil {
			return err
		}
		return journal.Append(txn, addr, "create_election", s.now().Unix(), data)
	})
	if err != nil {
		return models.Address{}, err
	}
	return addr, nil
}

// ActivateElection opens the voting window. The caller must be one of the
// election's commissioners and the start time must have passed.
func (s *ElectionService) ActivateElection(commissioner common.Address, electionAddr models.Address) (err error) {
	defer func() { s.metrics.observe("activate_election", err) }()

	err = s.store.Update(func(txn *storage.Txn) error {
		election, err := storage.GetElection(txn, electionAddr)
		if err != nil {
			return err
		}
		if !election.IsCommissioner(commissioner) {
			return ErrNotCommissioner
		}
		if s.now().Unix() < election.StartTime {
			return ErrElectionNotStarted
		}
		// Past the end time activation is gone for good, which is what
		// makes finalization a one-way transition.
		if s.now().Unix() > election.EndTime {
			return ErrVotingPeriodInvalid
		}
		if election.IsActive {
			return ErrElectionAlreadyActive
		}
		election.IsActive = true
		if err := storage.PutElection(txn, electionAddr, election); err != nil {
			return err
		}
		data, err := election.MarshalBinary()
		if err != nil {
			return err
		}
		return journal.Append(txn, electionAddr, "activate_election", s.now().Unix(), data)
	})
	return err
}

// FinalizeElection closes the election after its end time. The transition is
// one-way; there is no path back to active.
func (s *ElectionService) FinalizeElection(commissioner common.Address, electionAddr models.Address) (err error) {
	defer func() { s.metrics.observe("finalize_election", err) }()

	err = s.store.Update(func(txn *storage.Txn) error {
		election, err := storage.GetElection(txn, electionAddr)
		if err != nil {
			return err
		}
		if !election.IsCommissioner(commissioner) {
			return ErrNotCommissioner
		}
		if !election.IsActive {
			return ErrElectionNotActive
		}
		if s.now().Unix() <= election.EndTime {
			return ErrElectionStillActive
		}
		election.IsActive = false
		if err := storage.PutElection(txn, electionAddr, election); err != nil {
			return err
		}
		data, err := election.MarshalBinary()
		if err != nil {
			return err
		}
		return journal.Append(txn, electionAddr, "finalize_election", s.now().Unix(), data)
	})
	return err
}

// RegisterCandidate creates a zero-tally candidate record. Registration is
// only possible while the election is still inactive, and only for the
// election's authority. A duplicate candidate id collides on its derived
// address and is rejected by the store.
func (s *ElectionService) RegisterCandidate(
	authority common.Address,
	electionAddr models.Address,
	name string,
	candidateID uint32,
) (addr models.Address, err error) {
	defer func() { s.metrics.observe("register_candidate", err) }()

	if len(name) > models.MaxNameLen {
		return models.Address{}, ErrNameTooLong
	}

	addr, salt := models.CandidateAddress(electionAddr, candidateID)
	err = s.store.Update(func(txn *storage.Txn) error {
		election, err := storage.GetElection(txn, electionAddr)
		if err != nil {
			return err
		}
		if authority != election.Authority {
			return ErrNotAuthority
		}
		if election.IsActive {
			return ErrElectionAlreadyActive
		}
		candidate := &models.Candidate{
			Election:    electionAddr,
			CandidateID: candidateID,
			Name:        name,
			Salt:        salt,
		}
		if err := storage.CreateCandidate(txn, addr, candidate); err != nil {
			return err
		}
		data, err := candidate.MarshalBinary()
		if err != nil {
			return err
		}
		return journal.Append(txn, electionAddr, "register_candidate", s.now().Unix(), data)
	})
	if err != nil {
		return models.Address{}, err
	}
	return addr, nil
}

// GetElection reads an election record.
func (s *ElectionService) GetElection(addr models.Address) (*models.Election, error) {
	var election *models.Election
	err := s.store.View(func(txn *storage.Txn) error {
		var err error
		election, err = storage.GetElection(txn, addr)
		return err
	})
	return election, err
}

// GetCandidate reads a candidate record by its election and id.
func (s *ElectionService) GetCandidate(electionAddr models.Address, candidateID uint32) (*models.Candidate, error) {
	addr, _ := models.CandidateAddress(electionAddr, candidateID)
	var candidate *models.Candidate
	err := s.store.View(func(txn *storage.Txn) error {
		var err error
		candidate, err = storage.GetCandidate(txn, addr)
		return err
	})
	return candidate, err
}

// GetCredential reads a voter credential by its election and voter.
func (s *ElectionService) GetCredential(electionAddr models.Address, voter common.Address) (*models.VoterCredential, error) {
	addr, _ := models.CredentialAddress(electionAddr, voter)
	var credential *models.VoterCredential
	err := s.store.View(func(txn *storage.Txn) error {
		var err error
		credential, err = storage.GetCredential(txn, addr)
		return err
	})
	return credential, err
}

// TokenBalance reads a voter's voting-rights balance for an election.
func (s *ElectionService) TokenBalance(electionAddr models.Address, voter common.Address) (uint64, error) {
	var balance uint64
	err := s.store.View(func(txn *storage.Txn) error {
		var err error
		balance, err = token.Balance(txn, electionAddr, voter)
		return err
	})
	return balance, err
}

// ValidateJournal re-validates the election's operation chain and returns
// its length.
func (s *ElectionService) ValidateJournal(electionAddr models.Address) (uint64, error) {
	var count uint64
	err := s.store.View(func(txn *storage.Txn) error {
		var err error
		count, err = journal.Validate(txn, electionAddr)
		return err
	})
	return count, err
}

// IsNotFound reports whether err is the store's missing-account error.
func IsNotFound(err error) bool {
	return errors.Is(err, storage.ErrNotFound)
}
