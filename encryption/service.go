package encryption

import (
	"crypto/ecdsa"
	"crypto/sha256"
	"encoding/hex"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"golang.org/x/crypto/sha3"
)

const (
	// VerificationCodeLen is the length of a derived voter verification code.
	VerificationCodeLen = 16
	// BallotReceiptLen is the length of a derived ballot receipt.
	BallotReceiptLen = 32
)

type CryptoService struct{}

func NewCryptoService() *CryptoService {
	return &CryptoService{}
}

// Keccak256 hashes the concatenation of the given byte slices.
func (cs *CryptoService) Keccak256(data ...[]byte) []byte {
	h := sha3.NewLegacyKeccak256()
	for _, d := range data {
		h.Write(d)
	}
	return h.Sum(nil)
}

// HashNIK returns the hash of a raw national identity number. Only this
// hash is ever persisted.
func (cs *CryptoService) HashNIK(nik string) [32]byte {
	return sha256.Sum256([]byte(nik))
}

// VerificationCode derives the voter's verification code from their
// identity, raw NIK and verification timestamp. The code is a commitment:
// anyone holding the same inputs can re-derive and compare it, nobody else
// can recover the inputs from it.
func (cs *CryptoService) VerificationCode(voter common.Address, nik string, timestamp int64) string {
	data := fmt.Sprintf("%s%s%d", voter.Hex(), nik, timestamp)
	return hex.EncodeToString(cs.Keccak256([]byte(data)))[:VerificationCodeLen]
}

// BallotReceipt derives the receipt stored on a ballot from the voter's
// identity, their verification code and the cast timestamp.
func (cs *CryptoService) BallotReceipt(voter common.Address, verificationCode string, timestamp int64) string {
	data := fmt.Sprintf("%s%s%d", voter.Hex(), verificationCode, timestamp)
	return hex.EncodeToString(cs.Keccak256([]byte(data)))[:BallotReceiptLen]
}

// GenerateKeyPair generates a new ECDSA key pair
func (cs *CryptoService) GenerateKeyPair() (*ecdsa.PrivateKey, error) {
	return crypto.GenerateKey()
}

// Sign signs a 32-byte digest with the given private key.
func (cs *CryptoService) Sign(digest []byte, privateKey *ecdsa.PrivateKey) ([]byte, error) {
	return crypto.Sign(digest, privateKey)
}

// RecoverSigner recovers the signer address from a digest and its signature.
func (cs *CryptoService) RecoverSigner(digest, signature []byte) (common.Address, error) {
	pub, err := crypto.SigToPub(digest, signature)
	if err != nil {
		return common.Address{}, fmt.Errorf("failed to recover signer: %w", err)
	}
	return crypto.PubkeyToAddress(*pub), nil
}

// AddressOf returns the on-ledger address of a key pair.
func (cs *CryptoService) AddressOf(privateKey *ecdsa.PrivateKey) common.Address {
	return crypto.PubkeyToAddress(privateKey.PublicKey)
}
