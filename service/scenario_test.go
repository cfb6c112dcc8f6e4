package service

import (
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestCityCouncilScenario walks one election through its whole life: setup,
// credentialing, activation, a vote with a rejected replay, and
// finalization.
func TestCityCouncilScenario(t *testing.T) {
	f := newFixture(t)

	c1 := common.HexToAddress("0x0000000000000000000000000000000000000011")
	c2 := common.HexToAddress("0x0000000000000000000000000000000000000022")
	c3 := common.HexToAddress("0x0000000000000000000000000000000000000033")
	voter := common.HexToAddress("0x00000000000000000000000000000000000000aa")

	start := electionStart
	end := start + 7*24*int64(time.Hour/time.Second)

	election, err := f.svc.CreateElection(testAuthority, "City Council 2029",
		start, end, []common.Address{c1, c2, c3}, 2)
	require.NoError(t, err)

	// Candidate registration while inactive.
	_, err = f.svc.RegisterCandidate(testAuthority, election, "Ana", 1)
	require.NoError(t, err)
	_, err = f.svc.RegisterCandidate(testAuthority, election, "Budi", 2)
	require.NoError(t, err)

	// Credentialing before the start time, confidence 92.
	_, err = f.svc.VerifyVoter(voter, election, testNIK(7), [32]byte{0x92},
		"ipfs://QmEvidence0007", f.clock.Load(), 92)
	require.NoError(t, err)
	balance, err := f.svc.TokenBalance(election, voter)
	require.NoError(t, err)
	assert.Equal(t, uint64(1), balance)

	// Activation at the start time.
	f.setTime(start)
	require.NoError(t, f.svc.ActivateElection(c1, election))

	// Registration is over once active.
	_, err = f.svc.RegisterCandidate(testAuthority, election, "Citra", 3)
	assert.ErrorIs(t, err, ErrElectionAlreadyActive)

	// One vote an hour in.
	f.setTime(start + 3600)
	ballot, err := f.svc.CastVote(voter, election, 1, testPayload)
	require.NoError(t, err)
	assert.Equal(t, uint64(0), ballot.Sequence)

	ana, err := f.svc.GetCandidate(election, 1)
	require.NoError(t, err)
	assert.Equal(t, uint64(1), ana.VoteCount)

	// The replay is rejected.
	_, err = f.svc.CastVote(voter, election, 2, testPayload)
	assert.ErrorIs(t, err, ErrAlreadyVoted)

	// Finalization fails while the window is open, succeeds after it.
	f.setTime(end - 1)
	err = f.svc.FinalizeElection(c2, election)
	assert.ErrorIs(t, err, ErrElectionStillActive)

	f.setTime(end + 1)
	require.NoError(t, f.svc.FinalizeElection(c2, election))

	final, err := f.svc.GetElection(election)
	require.NoError(t, err)
	assert.False(t, final.IsActive)
	assert.Equal(t, uint64(1), final.TotalVotesCast)
	assert.Equal(t, uint64(1), final.TotalRegisteredVoters)

	// Audit and receipt reads still work after finalization.
	audit, err := f.svc.AuditVerification(c3, election, voter)
	require.NoError(t, err)
	assert.True(t, audit.HasVoted)

	receipt, err := f.svc.VerifyBallotReceipt(voter, election, 0)
	require.NoError(t, err)
	assert.True(t, receipt.IsValid)
}
