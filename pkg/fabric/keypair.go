package fabric

import (
	"errors"

	"github.com/openfabric-io/devicecore/pkg/crypto"
)

// ErrNoOperationalKeyPair is returned when an operation that requires a
// fabric's operational key pair is attempted before one has been set.
var ErrNoOperationalKeyPair = errors.New("fabric: no operational key pair set")

// OperationalKeyPair is the signing identity a node holds for a single
// fabric. FabricInfo stores this as an owned, defensively-copied value: the
// caller's key pair is serialized and immediately re-deserialized so that
// later mutation or zeroization of the caller's copy cannot affect the
// fabric table's copy.
type OperationalKeyPair interface {
	// Sign produces a signature over message using this key pair.
	Sign(message []byte) ([]byte, error)

	// Verify checks a signature over message against this key pair's
	// public key.
	Verify(message, signature []byte) (bool, error)

	// PublicKey returns the 65-byte uncompressed public key.
	PublicKey() []byte

	// Serialize encodes the key pair for transfer across a defensive-copy
	// boundary (P256SerializedKeypair format).
	Serialize() ([]byte, error)

	// Zeroize clears private key material from memory. The key pair must
	// not be used after Zeroize is called.
	Zeroize()
}

// SoftwareKeyPair is an OperationalKeyPair backed by an in-memory P-256 key
// pair. It is the only OperationalKeyPair implementation this package
// provides; an HSM-backed implementation would satisfy the same interface
// without touching FabricInfo or Table.
type SoftwareKeyPair struct {
	kp *crypto.P256KeyPair
}

// NewSoftwareKeyPair generates a new random operational key pair.
func NewSoftwareKeyPair() (*SoftwareKeyPair, error) {
	kp, err := crypto.P256GenerateKeyPair()
	if err != nil {
		return nil, err
	}
	return &SoftwareKeyPair{kp: kp}, nil
}

// SoftwareKeyPairFromSerialized reconstructs a key pair from the bytes
// produced by Serialize.
func SoftwareKeyPairFromSerialized(serialized []byte) (*SoftwareKeyPair, error) {
	kp, err := crypto.P256DeserializeKeyPair(serialized)
	if err != nil {
		return nil, err
	}
	return &SoftwareKeyPair{kp: kp}, nil
}

// Sign implements OperationalKeyPair.
func (s *SoftwareKeyPair) Sign(message []byte) ([]byte, error) {
	return crypto.P256Sign(s.kp, message)
}

// Verify implements OperationalKeyPair.
func (s *SoftwareKeyPair) Verify(message, signature []byte) (bool, error) {
	return crypto.P256Verify(s.kp.P256PublicKey(), message, signature)
}

// PublicKey implements OperationalKeyPair.
func (s *SoftwareKeyPair) PublicKey() []byte {
	return s.kp.P256PublicKey()
}

// Serialize implements OperationalKeyPair.
func (s *SoftwareKeyPair) Serialize() ([]byte, error) {
	return s.kp.Serialize()
}

// Zeroize implements OperationalKeyPair.
func (s *SoftwareKeyPair) Zeroize() {
	s.kp.Zeroize()
}

var _ OperationalKeyPair = (*SoftwareKeyPair)(nil)
