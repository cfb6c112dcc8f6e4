package service

import (
	"strings"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"evoting-ledger/models"
	"evoting-ledger/storage"
)

func TestCreateElection(t *testing.T) {
	f := newFixture(t)

	addr := f.createElection(t)

	election, err := f.svc.GetElection(addr)
	require.NoError(t, err)
	assert.Equal(t, testAuthority, election.Authority)
	assert.Equal(t, "City Council 2029", election.Name)
	assert.False(t, election.IsActive)
	assert.Zero(t, election.TotalRegisteredVoters)
	assert.Zero(t, election.TotalVotesCast)
	assert.True(t, election.IsCommissioner(testCommissioner))

	// The voting-token mint exists with the election as its authority.
	balance, err := f.svc.TokenBalance(addr, testVoter)
	require.NoError(t, err)
	assert.Zero(t, balance)

	// One journal entry for the creation.
	count, err := f.svc.ValidateJournal(addr)
	require.NoError(t, err)
	assert.Equal(t, uint64(1), count)
}

func TestCreateElectionValidation(t *testing.T) {
	f := newFixture(t)
	commissioners := []common.Address{testCommissioner}

	tests := []struct {
		name    string
		run     func() error
		wantErr error
	}{
		{
			name: "required signatures exceed commissioner count",
			run: func() error {
				_, err := f.svc.CreateElection(testAuthority, "e1",
					electionStart, electionEnd, commissioners, 2)
				return err
			},
			wantErr: ErrInvalidCommissionerCount,
		},
		{
			name: "too many commissioners",
			run: func() error {
				many := make([]common.Address, models.MaxCommissioners+1)
				_, err := f.svc.CreateElection(testAuthority, "e2",
					electionStart, electionEnd, many, 1)
				return err
			},
			wantErr: ErrInvalidCommissionerCount,
		},
		{
			name: "start not before end",
			run: func() error {
				_, err := f.svc.CreateElection(testAuthority, "e3",
					electionEnd, electionStart, commissioners, 1)
				return err
			},
			wantErr: ErrInvalidElectionPeriod,
		},
		{
			name: "zero-length period",
			run: func() error {
				_, err := f.svc.CreateElection(testAuthority, "e4",
					electionStart, electionStart, commissioners, 1)
				return err
			},
			wantErr: ErrInvalidElectionPeriod,
		},
		{
			name: "name too long",
			run: func() error {
				_, err := f.svc.CreateElection(testAuthority,
					strings.Repeat("x", models.MaxNameLen+1),
					electionStart, electionEnd, commissioners, 1)
				return err
			},
			wantErr: ErrNameTooLong,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.ErrorIs(t, tt.run(), tt.wantErr)
		})
	}
}

func TestCreateElectionDuplicateName(t *testing.T) {
	f := newFixture(t)
	f.createElection(t)

	_, err := f.svc.CreateElection(testAuthority, "City Council 2029",
		electionStart, electionEnd, []common.Address{testCommissioner}, 1)
	assert.ErrorIs(t, err, storage.ErrExists)
}

func TestActivateElection(t *testing.T) {
	f := newFixture(t)
	addr := f.createElection(t)

	f.setTime(electionStart + 1)
	require.NoError(t, f.svc.ActivateElection(testCommissioner, addr))

	election, err := f.svc.GetElection(addr)
	require.NoError(t, err)
	assert.True(t, election.IsActive)
}

func TestActivateElectionRequiresCommissioner(t *testing.T) {
	f := newFixture(t)
	addr := f.createElection(t)

	f.setTime(electionStart + 1)
	err := f.svc.ActivateElection(testVoter, addr)
	assert.ErrorIs(t, err, ErrNotCommissioner)
}

func TestActivateElectionBeforeStart(t *testing.T) {
	f := newFixture(t)
	addr := f.createElection(t)

	f.setTime(electionStart - 1)
	err := f.svc.ActivateElection(testCommissioner, addr)
	assert.ErrorIs(t, err, ErrElectionNotStarted)
}

func TestActivateElectionTwice(t *testing.T) {
	f := newFixture(t)
	addr := f.createElection(t)
	f.activate(t, addr)

	err := f.svc.ActivateElection(testCommissioner, addr)
	assert.ErrorIs(t, err, ErrElectionAlreadyActive)
}

func TestFinalizeElection(t *testing.T) {
	f := newFixture(t)
	addr := f.createElection(t)
	f.activate(t, addr)

	f.setTime(electionEnd + 1)
	require.NoError(t, f.svc.FinalizeElection(testCommissioner, addr))

	election, err := f.svc.GetElection(addr)
	require.NoError(t, err)
	assert.False(t, election.IsActive)
}

func TestFinalizeElectionRequiresCommissioner(t *testing.T) {
	f := newFixture(t)
	addr := f.createElection(t)
	f.activate(t, addr)

	f.setTime(electionEnd + 1)
	err := f.svc.FinalizeElection(testVoter, addr)
	assert.ErrorIs(t, err, ErrNotCommissioner)
}

func TestFinalizeInactiveElection(t *testing.T) {
	f := newFixture(t)
	addr := f.createElection(t)

	f.setTime(electionEnd + 1)
	err := f.svc.FinalizeElection(testCommissioner, addr)
	assert.ErrorIs(t, err, ErrElectionNotActive)
}

func TestFinalizeBeforeEnd(t *testing.T) {
	f := newFixture(t)
	addr := f.createElection(t)
	f.activate(t, addr)

	f.setTime(electionEnd)
	err := f.svc.FinalizeElection(testCommissioner, addr)
	assert.ErrorIs(t, err, ErrElectionStillActive)
}

func TestFinalizedElectionCannotBeReactivated(t *testing.T) {
	f := newFixture(t)
	addr := f.createElection(t)
	f.activate(t, addr)
	f.setTime(electionEnd + 1)
	require.NoError(t, f.svc.FinalizeElection(testCommissioner, addr))

	err := f.svc.ActivateElection(testCommissioner, addr)
	assert.ErrorIs(t, err, ErrVotingPeriodInvalid)
}

func TestRegisterCandidate(t *testing.T) {
	f := newFixture(t)
	addr := f.createElection(t)

	candidateAddr, err := f.svc.RegisterCandidate(testAuthority, addr, "Alice Martono", 1)
	require.NoError(t, err)

	candidate, err := f.svc.GetCandidate(addr, 1)
	require.NoError(t, err)
	assert.Equal(t, "Alice Martono", candidate.Name)
	assert.Equal(t, uint32(1), candidate.CandidateID)
	assert.Zero(t, candidate.VoteCount)

	expected, _ := models.CandidateAddress(addr, 1)
	assert.Equal(t, expected, candidateAddr)
}

func TestRegisterCandidateRequiresAuthority(t *testing.T) {
	f := newFixture(t)
	addr := f.createElection(t)

	_, err := f.svc.RegisterCandidate(testCommissioner, addr, "Alice Martono", 1)
	assert.ErrorIs(t, err, ErrNotAuthority)
}

func TestRegisterCandidateDuplicateID(t *testing.T) {
	f := newFixture(t)
	addr := f.createElection(t)
	f.registerCandidates(t, addr, 1)

	_, err := f.svc.RegisterCandidate(testAuthority, addr, "Someone Else", 1)
	assert.ErrorIs(t, err, storage.ErrExists)
}

func TestRegisterCandidateOnActiveElection(t *testing.T) {
	f := newFixture(t)
	addr := f.createElection(t)
	f.activate(t, addr)

	_, err := f.svc.RegisterCandidate(testAuthority, addr, "Too Late", 1)
	assert.ErrorIs(t, err, ErrElectionAlreadyActive)
}

func TestOperationsOnMissingElection(t *testing.T) {
	f := newFixture(t)
	missing, _ := models.ElectionAddress("never created")

	assert.True(t, IsNotFound(f.svc.ActivateElection(testCommissioner, missing)))
	assert.True(t, IsNotFound(f.svc.FinalizeElection(testCommissioner, missing)))
	_, err := f.svc.RegisterCandidate(testAuthority, missing, "x", 1)
	assert.True(t, IsNotFound(err))
	_, err = f.svc.GetElection(missing)
	assert.True(t, IsNotFound(err))
}
