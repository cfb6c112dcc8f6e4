package storage

import (
	"errors"
	"fmt"

	badger "github.com/dgraph-io/badger/v4"

	"evoting-ledger/models"
)

var (
	ErrNotFound = errors.New("account not found")
	ErrExists   = errors.New("account already exists")
)

// updateRetries bounds how often a conflicting transaction is re-run against
// fresh state before the conflict is surfaced to the caller.
const updateRetries = 16

// Store is a key-addressed account store. Every record lives at its derived
// address and all mutations run inside serializable transactions: two
// transactions touching the same account never both commit, the loser is
// re-run against fresh state.
type Store struct {
	db *badger.DB
}

// Open opens (or creates) a store in the given directory.
func Open(dir string) (*Store, error) {
	opts := badger.DefaultOptions(dir).WithLogger(nil)
	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("failed to open account store: %w", err)
	}
	return &Store{db: db}, nil
}

// OpenInMemory opens a store with no backing files, for tests.
func OpenInMemory() (*Store, error) {
	opts := badger.DefaultOptions("").WithInMemory(true).WithLogger(nil)
	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("failed to open in-memory account store: %w", err)
	}
	return &Store{db: db}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

// Txn is a handle to a single store transaction.
type Txn struct {
	txn *badger.Txn
}

// View runs fn in a read-only transaction.
func (s *Store) View(fn func(*Txn) error) error {
	return s.db.View(func(btxn *badger.Txn) error {
		return fn(&Txn{txn: btxn})
	})
}

// Update runs fn in a read-write transaction. All writes commit together or
// not at all; any error from fn discards every write. On conflict with a
// concurrently committed transaction fn is re-run from scratch, so fn must
// not carry state across invocations.
func (s *Store) Update(fn func(*Txn) error) error {
	for i := 0; i < updateRetries; i++ {
		err := s.db.Update(func(btxn *badger.Txn) error {
			return fn(&Txn{txn: btxn})
		})
		if errors.Is(err, badger.ErrConflict) {
			continue
		}
		return err
	}
	return fmt.Errorf("transaction retries exhausted: %w", badger.ErrConflict)
}

// Get returns the record stored at addr.
func (t *Txn) Get(addr models.Address) ([]byte, error) {
	item, err := t.txn.Get(addr.Bytes())
	if err != nil {
		if errors.Is(err, badger.ErrKeyNotFound) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, addr.Hex())
		}
		return nil, err
	}
	return item.ValueCopy(nil)
}

// Exists reports whether a record is stored at addr.
func (t *Txn) Exists(addr models.Address) (bool, error) {
	_, err := t.txn.Get(addr.Bytes())
	if err != nil {
		if errors.Is(err, badger.ErrKeyNotFound) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

// Create stores a new record at addr. Creation of an address that is
// already occupied fails; this is what makes duplicate registration a
// collision on the derived address rather than an explicit check.
func (t *Txn) Create(addr models.Address, data []byte) error {
	exists, err := t.Exists(addr)
	if err != nil {
		return err
	}
	if exists {
		return fmt.Errorf("%w: %s", ErrExists, addr.Hex())
	}
	return t.txn.Set(addr.Bytes(), data)
}

// Put overwrites the record at addr.
func (t *Txn) Put(addr models.Address, data []byte) error {
	return t.txn.Set(addr.Bytes(), data)
}
