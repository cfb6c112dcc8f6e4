package models

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
)

// Persisted layout: every record starts with its Kind tag, followed by its
// fields in declaration order. Integers are little-endian, strings are
// length-prefixed (uint16), optional fields carry a one-byte presence flag.

var (
	ErrBadRecord  = errors.New("malformed account record")
	ErrWrongKind  = errors.New("account record has unexpected kind tag")
	ErrFieldBound = errors.New("account field exceeds its bound")
)

type recordWriter struct {
	buf bytes.Buffer
}

func (w *recordWriter) kind(k Kind)       { w.buf.WriteByte(byte(k)) }
func (w *recordWriter) u8(v uint8)        { w.buf.WriteByte(v) }
func (w *recordWriter) raw(b []byte)      { w.buf.Write(b) }
func (w *recordWriter) boolean(v bool) {
	if v {
		w.buf.WriteByte(1)
	} else {
		w.buf.WriteByte(0)
	}
}

func (w *recordWriter) u32(v uint32) {
	var b [4]byte
	binary.LittleEndian.PutUint32(b[:], v)
	w.buf.Write(b[:])
}

func (w *recordWriter) u64(v uint64) {
	var b [8]byte
	binary.LittleEndian.PutUint64(b[:], v)
	w.buf.Write(b[:])
}

func (w *recordWriter) i64(v int64) { w.u64(uint64(v)) }

func (w *recordWriter) str(s string, maxLen int) error {
	if len(s) > maxLen {
		return fmt.Errorf("%w: string of %d bytes, bound %d", ErrFieldBound, len(s), maxLen)
	}
	var b [2]byte
	binary.LittleEndian.PutUint16(b[:], uint16(len(s)))
	w.buf.Write(b[:])
	w.buf.WriteString(s)
	return nil
}

type recordReader struct {
	data []byte
	err  error
}

func (r *recordReader) take(n int) []byte {
	if r.err != nil {
		return nil
	}
	if len(r.data) < n {
		r.err = ErrBadRecord
		return nil
	}
	b := r.data[:n]
	r.data = r.data[n:]
	return b
}

func (r *recordReader) kind(want Kind) {
	b := r.take(1)
	if r.err == nil && Kind(b[0]) != want {
		r.err = fmt.Errorf("%w: want 0x%02x, got 0x%02x", ErrWrongKind, byte(want), b[0])
	}
}

func (r *recordReader) u8() uint8 {
	b := r.take(1)
	if r.err != nil {
		return 0
	}
	return b[0]
}

func (r *recordReader) boolean() bool { return r.u8() == 1 }

func (r *recordReader) u32() uint32 {
	b := r.take(4)
	if r.err != nil {
		return 0
	}
	return binary.LittleEndian.Uint32(b)
}

func (r *recordReader) u64() uint64 {
	b := r.take(8)
	if r.err != nil {
		return 0
	}
	return binary.LittleEndian.Uint64(b)
}

func (r *recordReader) i64() int64 { return int64(r.u64()) }

func (r *recordReader) str(maxLen int) string {
	b := r.take(2)
	if r.err != nil {
		return ""
	}
	n := int(binary.LittleEndian.Uint16(b))
	if n > maxLen {
		r.err = fmt.Errorf("%w: string of %d bytes, bound %d", ErrFieldBound, n, maxLen)
		return ""
	}
	return string(r.take(n))
}

func (r *recordReader) finish() error {
	if r.err != nil {
		return r.err
	}
	if len(r.data) != 0 {
		return fmt.Errorf("%w: %d trailing bytes", ErrBadRecord, len(r.data))
	}
	return nil
}

func (e *Election) MarshalBinary() ([]byte, error) {
	if len(e.Commissioners) > MaxCommissioners {
		return nil, fmt.Errorf("%w: %d commissioners, bound %d",
			ErrFieldBound, len(e.Commissioners), MaxCommissioners)
	}
	var w recordWriter
	w.kind(KindElection)
	w.raw(e.Authority.Bytes())
	if err := w.str(e.Name, MaxNameLen); err != nil {
		return nil, err
	}
	w.i64(e.StartTime)
	w.i64(e.EndTime)
	w.boolean(e.IsActive)
	w.u64(e.TotalRegisteredVoters)
	w.u64(e.TotalVotesCast)
	w.u8(uint8(len(e.Commissioners)))
	for _, c := range e.Commissioners {
		w.raw(c.Bytes())
	}
	w.u8(e.RequiredSignatures)
	w.u8(e.Salt)
	return w.buf.Bytes(), nil
}

func (e *Election) UnmarshalBinary(data []byte) error {
	r := recordReader{data: data}
	r.kind(KindElection)
	e.Authority = common.BytesToAddress(r.take(common.AddressLength))
	e.Name = r.str(MaxNameLen)
	e.StartTime = r.i64()
	e.EndTime = r.i64()
	e.IsActive = r.boolean()
	e.TotalRegisteredVoters = r.u64()
	e.TotalVotesCast = r.u64()
	n := int(r.u8())
	if r.err == nil && n > MaxCommissioners {
		return fmt.Errorf("%w: %d commissioners, bound %d", ErrFieldBound, n, MaxCommissioners)
	}
	e.Commissioners = make([]common.Address, 0, n)
	for i := 0; i < n; i++ {
		e.Commissioners = append(e.Commissioners, common.BytesToAddress(r.take(common.AddressLength)))
	}
	e.RequiredSignatures = r.u8()
	e.Salt = r.u8()
	return r.finish()
}

func (c *Candidate) MarshalBinary() ([]byte, error) {
	var w recordWriter
	w.kind(KindCandidate)
	w.raw(c.Election.Bytes())
	w.u32(c.CandidateID)
	if err := w.str(c.Name, MaxNameLen); err != nil {
		return nil, err
	}
	w.u64(c.VoteCount)
	w.u8(c.Salt)
	return w.buf.Bytes(), nil
}

func (c *Candidate) UnmarshalBinary(data []byte) error {
	r := recordReader{data: data}
	r.kind(KindCandidate)
	copy(c.Election[:], r.take(len(c.Election)))
	c.CandidateID = r.u32()
	c.Name = r.str(MaxNameLen)
	c.VoteCount = r.u64()
	c.Salt = r.u8()
	return r.finish()
}

func (v *VoterCredential) MarshalBinary() ([]byte, error) {
	var w recordWriter
	w.kind(KindCredential)
	w.raw(v.Election.Bytes())
	w.raw(v.Voter.Bytes())
	w.raw(v.NIKHash[:])
	w.raw(v.BiometricHash[:])
	if err := w.str(v.PhotoRef, MaxPhotoRefLen); err != nil {
		return nil, err
	}
	w.boolean(v.IsVerified)
	w.boolean(v.HasVoted)
	w.i64(v.VerificationTimestamp)
	if v.VoteTimestamp != nil {
		w.boolean(true)
		w.i64(*v.VoteTimestamp)
	} else {
		w.boolean(false)
	}
	w.u8(v.ConfidenceScore)
	if err := w.str(v.VerificationCode, 64); err != nil {
		return nil, err
	}
	w.u8(v.Salt)
	return w.buf.Bytes(), nil
}

func (v *VoterCredential) UnmarshalBinary(data []byte) error {
	r := recordReader{data: data}
	r.kind(KindCredential)
	copy(v.Election[:], r.take(len(v.Election)))
	v.Voter = common.BytesToAddress(r.take(common.AddressLength))
	copy(v.NIKHash[:], r.take(len(v.NIKHash)))
	copy(v.BiometricHash[:], r.take(len(v.BiometricHash)))
	v.PhotoRef = r.str(MaxPhotoRefLen)
	v.IsVerified = r.boolean()
	v.HasVoted = r.boolean()
	v.VerificationTimestamp = r.i64()
	if r.boolean() {
		ts := r.i64()
		v.VoteTimestamp = &ts
	} else {
		v.VoteTimestamp = nil
	}
	v.ConfidenceScore = r.u8()
	v.VerificationCode = r.str(64)
	v.Salt = r.u8()
	return r.finish()
}

func (b *Ballot) MarshalBinary() ([]byte, error) {
	var w recordWriter
	w.kind(KindBallot)
	w.raw(b.Election.Bytes())
	w.raw(b.Candidate.Bytes())
	w.raw(b.EncryptedVote[:])
	w.i64(b.Timestamp)
	w.u64(b.Sequence)
	if err := w.str(b.VerificationReceipt, 64); err != nil {
		return nil, err
	}
	w.u8(b.Salt)
	return w.buf.Bytes(), nil
}

func (b *Ballot) UnmarshalBinary(data []byte) error {
	r := recordReader{data: data}
	r.kind(KindBallot)
	copy(b.Election[:], r.take(len(b.Election)))
	copy(b.Candidate[:], r.take(len(b.Candidate)))
	copy(b.EncryptedVote[:], r.take(len(b.EncryptedVote)))
	b.Timestamp = r.i64()
	b.Sequence = r.u64()
	b.VerificationReceipt = r.str(64)
	b.Salt = r.u8()
	return r.finish()
}
