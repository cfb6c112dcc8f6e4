// Package journal keeps a hash-chained record of every state-changing
// operation applied to an election. Entries are appended inside the same
// store transaction as the operation they describe, so the chain and the
// account state can never diverge. Validate replays the chain and reports
// the first broken link.
package journal

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"

	"golang.org/x/crypto/sha3"

	"evoting-ledger/models"
	"evoting-ledger/storage"
)

const maxOperationLen = 32

// Entry is one link of an election's operation chain.
type Entry struct {
	Election  models.Address `json:"election"`
	Sequence  uint64         `json:"sequence"`
	Timestamp int64          `json:"timestamp"`
	Operation string         `json:"operation"`
	DataHash  [32]byte       `json:"data_hash"`
	PrevHash  [32]byte       `json:"prev_hash"`
	Hash      [32]byte       `json:"hash"`
}

// head tracks the tail of an election's chain.
type head struct {
	Count    uint64
	LastHash [32]byte
}

func (e *Entry) computeHash() [32]byte {
	h := sha3.NewLegacyKeccak256()
	h.Write(e.Election.Bytes())
	var b [8]byte
	binary.LittleEndian.PutUint64(b[:], e.Sequence)
	h.Write(b[:])
	binary.LittleEndian.PutUint64(b[:], uint64(e.Timestamp))
	h.Write(b[:])
	h.Write([]byte(e.Operation))
	h.Write(e.DataHash[:])
	h.Write(e.PrevHash[:])
	var out [32]byte
	h.Sum(out[:0])
	return out
}

func (e *Entry) marshal() ([]byte, error) {
	if len(e.Operation) > maxOperationLen {
		return nil, fmt.Errorf("operation name %q too long", e.Operation)
	}
	buf := make([]byte, 0, 1+32+8+8+1+len(e.Operation)+32+32+32)
	buf = append(buf, byte(models.KindJournalEntry))
	buf = append(buf, e.Election.Bytes()...)
	buf = binary.LittleEndian.AppendUint64(buf, e.Sequence)
	buf = binary.LittleEndian.AppendUint64(buf, uint64(e.Timestamp))
	buf = append(buf, byte(len(e.Operation)))
	buf = append(buf, e.Operation...)
	buf = append(buf, e.DataHash[:]...)
	buf = append(buf, e.PrevHash[:]...)
	buf = append(buf, e.Hash[:]...)
	return buf, nil
}

func (e *Entry) unmarshal(data []byte) error {
	if len(data) < 1+32+8+8+1 || models.Kind(data[0]) != models.KindJournalEntry {
		return errors.New("malformed journal entry")
	}
	data = data[1:]
	copy(e.Election[:], data[:32])
	e.Sequence = binary.LittleEndian.Uint64(data[32:40])
	e.Timestamp = int64(binary.LittleEndian.Uint64(data[40:48]))
	opLen := int(data[48])
	data = data[49:]
	if len(data) != opLen+32+32+32 {
		return errors.New("malformed journal entry")
	}
	e.Operation = string(data[:opLen])
	copy(e.DataHash[:], data[opLen:opLen+32])
	copy(e.PrevHash[:], data[opLen+32:opLen+64])
	copy(e.Hash[:], data[opLen+64:opLen+96])
	return nil
}

func (h *head) marshal() []byte {
	buf := make([]byte, 0, 1+8+32)
	buf = append(buf, byte(models.KindJournalHead))
	buf = binary.LittleEndian.AppendUint64(buf, h.Count)
	buf = append(buf, h.LastHash[:]...)
	return buf
}

func (h *head) unmarshal(data []byte) error {
	if len(data) != 1+8+32 || models.Kind(data[0]) != models.KindJournalHead {
		return errors.New("malformed journal head")
	}
	h.Count = binary.LittleEndian.Uint64(data[1:9])
	copy(h.LastHash[:], data[9:41])
	return nil
}

func loadHead(txn *storage.Txn, election models.Address) (*head, error) {
	addr, _ := models.JournalHeadAddress(election)
	data, err := txn.Get(addr)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return &head{}, nil
		}
		return nil, err
	}
	var h head
	if err := h.unmarshal(data); err != nil {
		return nil, err
	}
	return &h, nil
}

// Append links a new entry describing an operation onto the election's
// chain. data is the encoded record the operation wrote; its hash is what
// the entry commits to.
func Append(txn *storage.Txn, election models.Address, operation string, timestamp int64, data []byte) error {
	h, err := loadHead(txn, election)
	if err != nil {
		return err
	}
	entry := Entry{
		Election:  election,
		Sequence:  h.Count,
		Timestamp: timestamp,
		Operation: operation,
		PrevHash:  h.LastHash,
	}
	dh := sha3.NewLegacyKeccak256()
	dh.Write(data)
	dh.Sum(entry.DataHash[:0])
	entry.Hash = entry.computeHash()

	entryAddr, _ := models.JournalEntryAddress(election, entry.Sequence)
	encoded, err := entry.marshal()
	if err != nil {
		return err
	}
	if err := txn.Create(entryAddr, encoded); err != nil {
		return err
	}

	h.Count++
	h.LastHash = entry.Hash
	headAddr, _ := models.JournalHeadAddress(election)
	return txn.Put(headAddr, h.marshal())
}

// Entries returns the election's chain in order.
func Entries(txn *storage.Txn, election models.Address) ([]Entry, error) {
	h, err := loadHead(txn, election)
	if err != nil {
		return nil, err
	}
	entries := make([]Entry, 0, h.Count)
	for seq := uint64(0); seq < h.Count; seq++ {
		addr, _ := models.JournalEntryAddress(election, seq)
		data, err := txn.Get(addr)
		if err != nil {
			return nil, err
		}
		var e Entry
		if err := e.unmarshal(data); err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	return entries, nil
}

// Validate walks the election's chain, recomputing every hash and link.
// It returns the chain length, or an error naming the first broken entry.
func Validate(txn *storage.Txn, election models.Address) (uint64, error) {
	entries, err := Entries(txn, election)
	if err != nil {
		return 0, err
	}
	var prev [32]byte
	for i, e := range entries {
		if e.Sequence != uint64(i) {
			return 0, fmt.Errorf("journal entry %d has sequence %d", i, e.Sequence)
		}
		if !bytes.Equal(e.PrevHash[:], prev[:]) {
			return 0, fmt.Errorf("journal entry %d has a broken link", i)
		}
		if got := e.computeHash(); !bytes.Equal(got[:], e.Hash[:]) {
			return 0, fmt.Errorf("journal entry %d has an invalid hash", i)
		}
		prev = e.Hash
	}
	if len(entries) > 0 {
		h, err := loadHead(txn, election)
		if err != nil {
			return 0, err
		}
		if !bytes.Equal(h.LastHash[:], prev[:]) {
			return 0, errors.New("journal head does not match last entry")
		}
	}
	return uint64(len(entries)), nil
}
