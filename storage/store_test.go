package storage

import (
	"errors"
	"sync"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"evoting-ledger/models"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := OpenInMemory()
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func TestCreateAndGet(t *testing.T) {
	store := newTestStore(t)
	addr, _ := models.ElectionAddress("test")

	err := store.Update(func(txn *Txn) error {
		return txn.Create(addr, []byte("record"))
	})
	require.NoError(t, err)

	err = store.View(func(txn *Txn) error {
		data, err := txn.Get(addr)
		require.NoError(t, err)
		assert.Equal(t, []byte("record"), data)
		return nil
	})
	require.NoError(t, err)
}

func TestGetMissingAccount(t *testing.T) {
	store := newTestStore(t)
	addr, _ := models.ElectionAddress("missing")

	err := store.View(func(txn *Txn) error {
		_, err := txn.Get(addr)
		return err
	})
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestCreateRejectsOccupiedAddress(t *testing.T) {
	store := newTestStore(t)
	addr, _ := models.ElectionAddress("test")

	require.NoError(t, store.Update(func(txn *Txn) error {
		return txn.Create(addr, []byte("first"))
	}))

	err := store.Update(func(txn *Txn) error {
		return txn.Create(addr, []byte("second"))
	})
	assert.ErrorIs(t, err, ErrExists)

	// The loser's write must not have landed.
	store.View(func(txn *Txn) error {
		data, err := txn.Get(addr)
		require.NoError(t, err)
		assert.Equal(t, []byte("first"), data)
		return nil
	})
}

func TestExists(t *testing.T) {
	store := newTestStore(t)
	addr, _ := models.ElectionAddress("test")

	store.View(func(txn *Txn) error {
		exists, err := txn.Exists(addr)
		require.NoError(t, err)
		assert.False(t, exists)
		return nil
	})

	require.NoError(t, store.Update(func(txn *Txn) error {
		return txn.Create(addr, []byte("record"))
	}))

	store.View(func(txn *Txn) error {
		exists, err := txn.Exists(addr)
		require.NoError(t, err)
		assert.True(t, exists)
		return nil
	})
}

func TestUpdateDiscardsAllWritesOnError(t *testing.T) {
	store := newTestStore(t)
	a, _ := models.ElectionAddress("a")
	b, _ := models.ElectionAddress("b")
	boom := errors.New("boom")

	err := store.Update(func(txn *Txn) error {
		if err := txn.Put(a, []byte("a")); err != nil {
			return err
		}
		if err := txn.Put(b, []byte("b")); err != nil {
			return err
		}
		return boom
	})
	require.ErrorIs(t, err, boom)

	store.View(func(txn *Txn) error {
		for _, addr := range []models.Address{a, b} {
			_, err := txn.Get(addr)
			assert.ErrorIs(t, err, ErrNotFound)
		}
		return nil
	})
}

func TestConcurrentUpdatesAllCommit(t *testing.T) {
	store := newTestStore(t)
	counterAddr, _ := models.TokenHoldingAddress(
		models.Address{0x01}, common.HexToAddress("0x01"))

	require.NoError(t, store.Update(func(txn *Txn) error {
		return txn.Create(counterAddr, []byte{0})
	}))

	// Conflicting read-modify-write transactions; the retry loop must
	// serialize them so every increment lands.
	const workers = 8
	var wg sync.WaitGroup
	errs := make([]error, workers)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			errs[i] = store.Update(func(txn *Txn) error {
				data, err := txn.Get(counterAddr)
				if err != nil {
					return err
				}
				return txn.Put(counterAddr, []byte{data[0] + 1})
			})
		}(i)
	}
	wg.Wait()

	for _, err := range errs {
		require.NoError(t, err)
	}
	store.View(func(txn *Txn) error {
		data, err := txn.Get(counterAddr)
		require.NoError(t, err)
		assert.Equal(t, byte(workers), data[0])
		return nil
	})
}
