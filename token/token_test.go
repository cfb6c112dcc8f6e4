package token

import (
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"evoting-ledger/models"
	"evoting-ledger/storage"
)

func newTestStore(t *testing.T) *storage.Store {
	t.Helper()
	store, err := storage.OpenInMemory()
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func createTestMint(t *testing.T, store *storage.Store) models.Address {
	t.Helper()
	election, _ := models.ElectionAddress("token test election")
	require.NoError(t, store.Update(func(txn *storage.Txn) error {
		_, err := CreateMint(txn, election)
		return err
	}))
	return election
}

func TestCreateMintSetsElectionAsAuthority(t *testing.T) {
	store := newTestStore(t)
	election := createTestMint(t, store)

	store.View(func(txn *storage.Txn) error {
		_, mint, err := getMint(txn, election)
		require.NoError(t, err)
		assert.Equal(t, election, mint.Election)
		assert.Equal(t, election, mint.Authority)
		assert.Zero(t, mint.Supply)
		assert.Zero(t, mint.Burned)
		return nil
	})
}

func TestCreateMintTwiceFails(t *testing.T) {
	store := newTestStore(t)
	election := createTestMint(t, store)

	err := store.Update(func(txn *storage.Txn) error {
		_, err := CreateMint(txn, election)
		return err
	})
	assert.ErrorIs(t, err, storage.ErrExists)
}

func TestMintOneGrantsExactlyOneUnit(t *testing.T) {
	store := newTestStore(t)
	election := createTestMint(t, store)
	voter := common.HexToAddress("0x52908400098527886E0F7030069857D2E4169EE7")

	require.NoError(t, store.Update(func(txn *storage.Txn) error {
		return MintOne(txn, election, election, voter)
	}))

	store.View(func(txn *storage.Txn) error {
		balance, err := Balance(txn, election, voter)
		require.NoError(t, err)
		assert.Equal(t, uint64(1), balance)

		_, mint, err := getMint(txn, election)
		require.NoError(t, err)
		assert.Equal(t, uint64(1), mint.Supply)
		return nil
	})
}

func TestMintOneRejectsWrongAuthority(t *testing.T) {
	store := newTestStore(t)
	election := createTestMint(t, store)
	voter := common.HexToAddress("0x52908400098527886E0F7030069857D2E4169EE7")
	impostor, _ := models.ElectionAddress("some other election")

	err := store.Update(func(txn *storage.Txn) error {
		return MintOne(txn, election, impostor, voter)
	})
	assert.ErrorIs(t, err, ErrNotAuthorized)
}

func TestBurnOneRequiresHolderAuthorization(t *testing.T) {
	store := newTestStore(t)
	election := createTestMint(t, store)
	voter := common.HexToAddress("0x52908400098527886E0F7030069857D2E4169EE7")
	other := common.HexToAddress("0x8617E340B3D01FA5F11F306F4090FD50E238070D")

	require.NoError(t, store.Update(func(txn *storage.Txn) error {
		return MintOne(txn, election, election, voter)
	}))

	err := store.Update(func(txn *storage.Txn) error {
		return BurnOne(txn, election, voter, other)
	})
	assert.ErrorIs(t, err, ErrNotAuthorized)
}

func TestBurnOneFailsOnZeroBalance(t *testing.T) {
	store := newTestStore(t)
	election := createTestMint(t, store)
	voter := common.HexToAddress("0x52908400098527886E0F7030069857D2E4169EE7")

	err := store.Update(func(txn *storage.Txn) error {
		return BurnOne(txn, election, voter, voter)
	})
	assert.ErrorIs(t, err, ErrInsufficientBalance)
}

func TestBurnOneConsumesTheUnit(t *testing.T) {
	store := newTestStore(t)
	election := createTestMint(t, store)
	voter := common.HexToAddress("0x52908400098527886E0F7030069857D2E4169EE7")

	require.NoError(t, store.Update(func(txn *storage.Txn) error {
		return MintOne(txn, election, election, voter)
	}))
	require.NoError(t, store.Update(func(txn *storage.Txn) error {
		return BurnOne(txn, election, voter, voter)
	}))

	store.View(func(txn *storage.Txn) error {
		balance, err := Balance(txn, election, voter)
		require.NoError(t, err)
		assert.Zero(t, balance)

		_, mint, err := getMint(txn, election)
		require.NoError(t, err)
		assert.Equal(t, uint64(1), mint.Supply)
		assert.Equal(t, uint64(1), mint.Burned)
		return nil
	})

	// No second unit to burn.
	err := store.Update(func(txn *storage.Txn) error {
		return BurnOne(txn, election, voter, voter)
	})
	assert.ErrorIs(t, err, ErrInsufficientBalance)
}

func TestBalanceOfUnknownHolderIsZero(t *testing.T) {
	store := newTestStore(t)
	election := createTestMint(t, store)
	stranger := common.HexToAddress("0xde709f2102306220921060314715629080e2fb77")

	store.View(func(txn *storage.Txn) error {
		balance, err := Balance(txn, election, stranger)
		require.NoError(t, err)
		assert.Zero(t, balance)
		return nil
	})
}
