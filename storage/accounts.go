package storage

import (
	"fmt"

	"evoting-ledger/models"
)

// Typed accessors for the core entity records. Each loads or stores the
// record at the given derived address, translating between the persisted
// layout and the model type.

func GetElection(t *Txn, addr models.Address) (*models.Election, error) {
	data, err := t.Get(addr)
	if err != nil {
		return nil, err
	}
	var e models.Election
	if err := e.UnmarshalBinary(data); err != nil {
		return nil, fmt.Errorf("decoding election %s: %w", addr.Hex(), err)
	}
	return &e, nil
}

func PutElection(t *Txn, addr models.Address, e *models.Election) error {
	data, err := e.MarshalBinary()
	if err != nil {
		return err
	}
	return t.Put(addr, data)
}

func CreateElection(t *Txn, addr models.Address, e *models.Election) error {
	data, err := e.MarshalBinary()
	if err != nil {
		return err
	}
	return t.Create(addr, data)
}

func GetCandidate(t *Txn, addr models.Address) (*models.Candidate, error) {
	data, err := t.Get(addr)
	if err != nil {
		return nil, err
	}
	var c models.Candidate
	if err := c.UnmarshalBinary(data); err != nil {
		return nil, fmt.Errorf("decoding candidate %s: %w", addr.Hex(), err)
	}
	return &c, nil
}

func PutCandidate(t *Txn, addr models.Address, c *models.Candidate) error {
	data, err := c.MarshalBinary()
	if err != nil {
		return err
	}
	return t.Put(addr, data)
}

func CreateCandidate(t *Txn, addr models.Address, c *models.Candidate) error {
	data, err := c.MarshalBinary()
	if err != nil {
		return err
	}
	return t.Create(addr, data)
}

func GetCredential(t *Txn, addr models.Address) (*models.VoterCredential, error) {
	data, err := t.Get(addr)
	if err != nil {
		return nil, err
	}
	var v models.VoterCredential
	if err := v.UnmarshalBinary(data); err != nil {
		return nil, fmt.Errorf("decoding credential %s: %w", addr.Hex(), err)
	}
	return &v, nil
}

func PutCredential(t *Txn, addr models.Address, v *models.VoterCredential) error {
	data, err := v.MarshalBinary()
	if err != nil {
		return err
	}
	return t.Put(addr, data)
}

func CreateCredential(t *Txn, addr models.Address, v *models.VoterCredential) error {
	data, err := v.MarshalBinary()
	if err != nil {
		return err
	}
	return t.Create(addr, data)
}

func GetBallot(t *Txn, addr models.Address) (*models.Ballot, error) {
	data, err := t.Get(addr)
	if err != nil {
		return nil, err
	}
	var b models.Ballot
	if err := b.UnmarshalBinary(data); err != nil {
		return nil, fmt.Errorf("decoding ballot %s: %w", addr.Hex(), err)
	}
	return &b, nil
}

func CreateBallot(t *Txn, addr models.Address, b *models.Ballot) error {
	data, err := b.MarshalBinary()
	if err != nil {
		return err
	}
	return t.Create(addr, data)
}
