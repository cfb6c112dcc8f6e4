package service

import (
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/require"

	"evoting-ledger/models"
	"evoting-ledger/storage"
)

// Shared scenario times: registration happens before electionStart, voting
// between electionStart and electionEnd.
const (
	electionStart = int64(1767225600)
	electionEnd   = int64(1767312000)
)

var (
	testAuthority    = common.HexToAddress("0x52908400098527886E0F7030069857D2E4169EE7")
	testCommissioner = common.HexToAddress("0x8617E340B3D01FA5F11F306F4090FD50E238070D")
	testVoter        = common.HexToAddress("0x9b2055d370f73ec7d8a03e965129118dc8f5bf83")
)

// fixture is an engine over an in-memory store with a settable clock.
type fixture struct {
	svc   *ElectionService
	store *storage.Store
	clock *atomic.Int64
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	store, err := storage.OpenInMemory()
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	clock := &atomic.Int64{}
	clock.Store(electionStart - 3600)

	svc := NewElectionService(store, nil)
	svc.now = func() time.Time { return time.Unix(clock.Load(), 0) }
	return &fixture{svc: svc, store: store, clock: clock}
}

func (f *fixture) setTime(unix int64) { f.clock.Store(unix) }

// createElection creates the standard test election in its draft state.
func (f *fixture) createElection(t *testing.T) models.Address {
	t.Helper()
	addr, err := f.svc.CreateElection(testAuthority, "City Council 2029",
		electionStart, electionEnd,
		[]common.Address{testCommissioner, testAuthority}, 1)
	require.NoError(t, err)
	return addr
}

// registerCandidates adds n candidates with ids 1..n.
func (f *fixture) registerCandidates(t *testing.T, election models.Address, n int) {
	t.Helper()
	for i := 1; i <= n; i++ {
		_, err := f.svc.RegisterCandidate(testAuthority, election,
			fmt.Sprintf("Candidate %d", i), uint32(i))
		require.NoError(t, err)
	}
}

// verifyVoter credentials a voter while registration is still open.
func (f *fixture) verifyVoter(t *testing.T, election models.Address, voter common.Address, nik string) *models.VoterCredential {
	t.Helper()
	credential, err := f.svc.VerifyVoter(voter, election, nik,
		[32]byte{0xB1, 0x0F}, "ipfs://QmEvidence0001", f.clock.Load(), 95)
	require.NoError(t, err)
	return credential
}

// activate moves the clock into the voting window and activates.
func (f *fixture) activate(t *testing.T, election models.Address) {
	t.Helper()
	f.setTime(electionStart + 60)
	require.NoError(t, f.svc.ActivateElection(testCommissioner, election))
}

func testNIK(i int) string {
	return fmt.Sprintf("317402%010d", i)
}
