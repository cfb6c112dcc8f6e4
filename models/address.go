package models

import (
	"encoding/binary"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"golang.org/x/crypto/sha3"
)

// Address identifies an entity record in the account store. Addresses are
// derived, never allocated: the same seed tuple always yields the same
// address, so no side index is needed to locate a record.
type Address [32]byte

func (a Address) Hex() string {
	return hexutil.Encode(a[:])
}

func (a Address) Bytes() []byte {
	return a[:]
}

// AddressFromHex parses a 0x-prefixed hex string into an Address.
func AddressFromHex(s string) (Address, error) {
	var a Address
	b, err := hexutil.Decode(s)
	if err != nil {
		return a, fmt.Errorf("invalid address %q: %w", s, err)
	}
	if len(b) != len(a) {
		return a, fmt.Errorf("invalid address %q: want %d bytes, got %d", s, len(a), len(b))
	}
	copy(a[:], b)
	return a, nil
}

// Kind is the leading discriminator of every seed tuple and of every
// persisted record. It keeps tuples of different entity types from ever
// hashing to the same address.
type Kind byte

const (
	KindElection     Kind = 0x01
	KindCandidate    Kind = 0x02
	KindCredential   Kind = 0x03
	KindBallot       Kind = 0x04
	KindTokenMint    Kind = 0x05
	KindTokenHolding Kind = 0x06
	KindJournalEntry Kind = 0x07
	KindJournalHead  Kind = 0x08
)

// Derive computes the deterministic address for (kind, seeds). Each seed is
// length-prefixed before hashing so that tuples which only differ in how
// bytes are split across seeds still derive distinct addresses. The returned
// salt is the digest's final byte and is stored on the record it addresses.
func Derive(kind Kind, seeds ...[]byte) (Address, uint8) {
	h := sha3.NewLegacyKeccak256()
	h.Write([]byte{byte(kind)})
	var lenbuf [binary.MaxVarintLen64]byte
	for _, seed := range seeds {
		n := binary.PutUvarint(lenbuf[:], uint64(len(seed)))
		h.Write(lenbuf[:n])
		h.Write(seed)
	}
	var a Address
	h.Sum(a[:0])
	return a, a[len(a)-1]
}

// Uint32Seed encodes v as a little-endian seed.
func Uint32Seed(v uint32) []byte {
	var b [4]byte
	binary.LittleEndian.PutUint32(b[:], v)
	return b[:]
}

// Uint64Seed encodes v as a little-endian seed.
func Uint64Seed(v uint64) []byte {
	var b [8]byte
	binary.LittleEndian.PutUint64(b[:], v)
	return b[:]
}

// ElectionAddress derives the election record address from its name.
func ElectionAddress(name string) (Address, uint8) {
	return Derive(KindElection, []byte(name))
}

// CandidateAddress derives the tally record address for (election, id).
func CandidateAddress(election Address, id uint32) (Address, uint8) {
	return Derive(KindCandidate, election.Bytes(), Uint32Seed(id))
}

// CredentialAddress derives the credential address for (election, voter).
func CredentialAddress(election Address, voter common.Address) (Address, uint8) {
	return Derive(KindCredential, election.Bytes(), voter.Bytes())
}

// BallotAddress derives the ballot address for (election, sequence).
func BallotAddress(election Address, sequence uint64) (Address, uint8) {
	return Derive(KindBallot, election.Bytes(), Uint64Seed(sequence))
}

// TokenMintAddress derives the voting-token mint address for an election.
func TokenMintAddress(election Address) (Address, uint8) {
	return Derive(KindTokenMint, election.Bytes())
}

// TokenHoldingAddress derives the holding address for (mint, owner).
func TokenHoldingAddress(mint Address, owner common.Address) (Address, uint8) {
	return Derive(KindTokenHolding, mint.Bytes(), owner.Bytes())
}

// JournalEntryAddress derives the journal entry address for (election, sequence).
func JournalEntryAddress(election Address, sequence uint64) (Address, uint8) {
	return Derive(KindJournalEntry, election.Bytes(), Uint64Seed(sequence))
}

// JournalHeadAddress derives the journal head address for an election.
func JournalHeadAddress(election Address) (Address, uint8) {
	return Derive(KindJournalHead, election.Bytes())
}
