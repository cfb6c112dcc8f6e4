// Package token implements the single-use voting-rights token subsystem.
// Each election owns one mint whose authority is the election record
// itself; each voter owns at most one holding per mint. One unit is minted
// at credentialing and burned at ballot casting; destruction of the unit
// is the primary double-vote barrier.
package token

import (
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/ethereum/go-ethereum/common"

	"evoting-ledger/models"
	"evoting-ledger/storage"
)

var (
	ErrNotAuthorized       = errors.New("token operation not authorized")
	ErrInsufficientBalance = errors.New("insufficient token balance")
)

// Mint is the per-election token mint record.
type Mint struct {
	Election  models.Address `json:"election"`
	Authority models.Address `json:"authority"`
	Supply    uint64         `json:"supply"`
	Burned    uint64         `json:"burned"`
	Salt      uint8          `json:"salt"`
}

// Holding is a voter's balance of voting-rights units. Holdings are not
// transferable; there is no operation that moves units between holdings.
type Holding struct {
	Mint    models.Address `json:"mint"`
	Owner   common.Address `json:"owner"`
	Balance uint64         `json:"balance"`
	Salt    uint8          `json:"salt"`
}

func (m *Mint) MarshalBinary() ([]byte, error) {
	buf := make([]byte, 0, 1+32+32+8+8+1)
	buf = append(buf, byte(models.KindTokenMint))
	buf = append(buf, m.Election.Bytes()...)
	buf = append(buf, m.Authority.Bytes()...)
	buf = binary.LittleEndian.AppendUint64(buf, m.Supply)
	buf = binary.LittleEndian.AppendUint64(buf, m.Burned)
	buf = append(buf, m.Salt)
	return buf, nil
}

func (m *Mint) UnmarshalBinary(data []byte) error {
	if len(data) != 1+32+32+8+8+1 || models.Kind(data[0]) != models.KindTokenMint {
		return fmt.Errorf("malformed token mint record (%d bytes)", len(data))
	}
	data = data[1:]
	copy(m.Election[:], data[:32])
	copy(m.Authority[:], data[32:64])
	m.Supply = binary.LittleEndian.Uint64(data[64:72])
	m.Burned = binary.LittleEndian.Uint64(data[72:80])
	m.Salt = data[80]
	return nil
}

func (h *Holding) MarshalBinary() ([]byte, error) {
	buf := make([]byte, 0, 1+32+20+8+1)
	buf = append(buf, byte(models.KindTokenHolding))
	buf = append(buf, h.Mint.Bytes()...)
	buf = append(buf, h.Owner.Bytes()...)
	buf = binary.LittleEndian.AppendUint64(buf, h.Balance)
	buf = append(buf, h.Salt)
	return buf, nil
}

func (h *Holding) UnmarshalBinary(data []byte) error {
	if len(data) != 1+32+20+8+1 || models.Kind(data[0]) != models.KindTokenHolding {
		return fmt.Errorf("malformed token holding record (%d bytes)", len(data))
	}
	data = data[1:]
	copy(h.Mint[:], data[:32])
	h.Owner = common.BytesToAddress(data[32:52])
	h.Balance = binary.LittleEndian.Uint64(data[52:60])
	h.Salt = data[60]
	return nil
}

// CreateMint creates the voting-token mint for an election, with the
// election record as the only minting authority. Called from the same
// transaction that creates the election.
func CreateMint(txn *storage.Txn, election models.Address) (models.Address, error) {
	addr, salt := models.TokenMintAddress(election)
	mint := &Mint{
		Election:  election,
		Authority: election,
		Salt:      salt,
	}
	data, err := mint.MarshalBinary()
	if err != nil {
		return models.Address{}, err
	}
	if err := txn.Create(addr, data); err != nil {
		return models.Address{}, err
	}
	return addr, nil
}

func getMint(txn *storage.Txn, election models.Address) (models.Address, *Mint, error) {
	addr, _ := models.TokenMintAddress(election)
	data, err := txn.Get(addr)
	if err != nil {
		return models.Address{}, nil, err
	}
	var mint Mint
	if err := mint.UnmarshalBinary(data); err != nil {
		return models.Address{}, nil, err
	}
	return addr, &mint, nil
}

func getHolding(txn *storage.Txn, mint models.Address, owner common.Address) (models.Address, *Holding, error) {
	addr, salt := models.TokenHoldingAddress(mint, owner)
	data, err := txn.Get(addr)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return addr, &Holding{Mint: mint, Owner: owner, Salt: salt}, nil
		}
		return models.Address{}, nil, err
	}
	var h Holding
	if err := h.UnmarshalBinary(data); err != nil {
		return models.Address{}, nil, err
	}
	return addr, &h, nil
}

func putHolding(txn *storage.Txn, addr models.Address, h *Holding) error {
	data, err := h.MarshalBinary()
	if err != nil {
		return err
	}
	return txn.Put(addr, data)
}

func putMint(txn *storage.Txn, addr models.Address, m *Mint) error {
	data, err := m.MarshalBinary()
	if err != nil {
		return err
	}
	return txn.Put(addr, data)
}

// MintOne mints exactly one unit to the given owner. The caller must present
// the mint's authority (the owning election's address).
func MintOne(txn *storage.Txn, election, authority models.Address, to common.Address) error {
	mintAddr, mint, err := getMint(txn, election)
	if err != nil {
		return err
	}
	if authority != mint.Authority {
		return fmt.Errorf("%w: %s is not the mint authority", ErrNotAuthorized, authority.Hex())
	}
	holdAddr, holding, err := getHolding(txn, mintAddr, to)
	if err != nil {
		return err
	}
	holding.Balance++
	mint.Supply++
	if err := putHolding(txn, holdAddr, holding); err != nil {
		return err
	}
	return putMint(txn, mintAddr, mint)
}

// BurnOne burns exactly one unit from the holder's holding. Only the holder
// themselves can authorize the burn, and the balance can never go negative:
// a holder with zero units fails here regardless of any other state.
func BurnOne(txn *storage.Txn, election models.Address, holder, authorizedBy common.Address) error {
	if authorizedBy != holder {
		return fmt.Errorf("%w: burn requires holder authorization", ErrNotAuthorized)
	}
	mintAddr, mint, err := getMint(txn, election)
	if err != nil {
		return err
	}
	holdAddr, holding, err := getHolding(txn, mintAddr, holder)
	if err != nil {
		return err
	}
	if holding.Balance == 0 {
		return fmt.Errorf("%w: holder %s has no voting-rights unit", ErrInsufficientBalance, holder.Hex())
	}
	holding.Balance--
	mint.Burned++
	if err := putHolding(txn, holdAddr, holding); err != nil {
		return err
	}
	return putMint(txn, mintAddr, mint)
}

// Balance returns the holder's current balance for an election's mint.
func Balance(txn *storage.Txn, election models.Address, owner common.Address) (uint64, error) {
	mintAddr, _, err := getMint(txn, election)
	if err != nil {
		return 0, err
	}
	_, holding, err := getHolding(txn, mintAddr, owner)
	if err != nil {
		return 0, err
	}
	return holding.Balance, nil
}
