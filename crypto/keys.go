// Package crypto provides the cryptographic primitives shared by every
// bill-chain component: secp256k1 keypair generation, ECDSA sign/verify,
// ECIES payload encryption, SHA-256 hashing and canonical base58 encoding.
package crypto

import (
	"crypto/rand"
	"crypto/sha256"
	"fmt"

	"github.com/decred/dcrd/dcrec/secp256k1/v4"
	"github.com/decred/dcrd/dcrec/secp256k1/v4/ecdsa"
	"github.com/mr-tron/base58"
)

// NodeID is the hex encoding of a compressed secp256k1 public key (33
// bytes, 66 hex chars). It identifies a signing party: a person, a
// company, or a bill itself.
type NodeID string

// Hash is a SHA-256 digest.
type Hash [32]byte

func (h Hash) Bytes() []byte { return h[:] }

func (h Hash) String() string {
	return base58.Encode(h[:])
}

// IsZero reports whether h is the zero hash.
func (h Hash) IsZero() bool {
	return h == Hash{}
}

// SHA256 hashes the concatenation of parts.
func SHA256(parts ...[]byte) Hash {
	hasher := sha256.New()
	for _, p := range parts {
		hasher.Write(p)
	}
	var h Hash
	copy(h[:], hasher.Sum(nil))
	return h
}

// Keys is a secp256k1 keypair. It is used both for identity (personal /
// company) keys and for a bill's own encryption keypair.
type Keys struct {
	priv *secp256k1.PrivateKey
}

// GenerateKeys creates a fresh random keypair.
func GenerateKeys() (*Keys, error) {
	priv, err := secp256k1.GeneratePrivateKey()
	if err != nil {
		return nil, fmt.Errorf("generate keys: %w", err)
	}
	return &Keys{priv: priv}, nil
}

// KeysFromPrivateKeyBytes reconstructs a keypair from a 32-byte scalar.
func KeysFromPrivateKeyBytes(b []byte) (*Keys, error) {
	if len(b) != 32 {
		return nil, fmt.Errorf("private key must be 32 bytes, got %d", len(b))
	}
	priv := secp256k1.PrivKeyFromBytes(b)
	return &Keys{priv: priv}, nil
}

// PrivateKeyBytes returns the raw 32-byte scalar.
func (k *Keys) PrivateKeyBytes() []byte {
	return k.priv.Serialize()
}

// PublicKeyBytes returns the 33-byte compressed public key.
func (k *Keys) PublicKeyBytes() []byte {
	return k.priv.PubKey().SerializeCompressed()
}

// PublicKeyUncompressedBytes returns the 65-byte uncompressed public key
// (0x04 || X || Y), the format ECIES needs for curve point import.
func (k *Keys) PublicKeyUncompressedBytes() []byte {
	return k.priv.PubKey().SerializeUncompressed()
}

// NodeID returns the hex-encoded compressed public key identifying this
// keypair as a participant node.
func (k *Keys) NodeID() NodeID {
	return NodeID(fmt.Sprintf("%x", k.PublicKeyBytes()))
}

// PublicKey returns the curve point for ECIES / tweak operations.
func (k *Keys) PublicKey() *secp256k1.PublicKey {
	return k.priv.PubKey()
}

// PrivateKey exposes the underlying scalar for ECIES decryption.
func (k *Keys) PrivateKey() *secp256k1.PrivateKey {
	return k.priv
}

// ParseNodeID decodes a hex-encoded compressed public key and validates
// that it lies on the secp256k1 curve.
func ParseNodeID(s NodeID) (*secp256k1.PublicKey, error) {
	var raw []byte
	n, err := fmt.Sscanf(string(s), "%x", &raw)
	if err != nil || n != 1 {
		return nil, fmt.Errorf("node id %q is not valid hex: %w", s, err)
	}
	pub, err := secp256k1.ParsePubKey(raw)
	if err != nil {
		return nil, fmt.Errorf("node id %q is not a valid secp256k1 point: %w", s, err)
	}
	return pub, nil
}

// IsValidNodeID reports whether s decodes to a point on secp256k1,
// without needing the parsed key.
func IsValidNodeID(s NodeID) bool {
	_, err := ParseNodeID(s)
	return err == nil
}

// Sign produces a compact, recoverable ECDSA signature over hash.
func (k *Keys) Sign(hash Hash) ([]byte, error) {
	sig := ecdsa.SignCompact(k.priv, hash[:], true)
	return sig, nil
}

// Verify checks a compact signature against hash and the given
// compressed public key.
func Verify(pub *secp256k1.PublicKey, hash Hash, sig []byte) bool {
	recoveredPub, _, err := ecdsa.RecoverCompact(sig, hash[:])
	if err != nil {
		return false
	}
	return recoveredPub.IsEqual(pub)
}

// RandomBytes returns n cryptographically random bytes.
func RandomBytes(n int) ([]byte, error) {
	b := make([]byte, n)
	if _, err := rand.Read(b); err != nil {
		return nil, err
	}
	return b, nil
}

// Base58Encode is the canonical transport encoding for ciphertext and
// signatures (§6).
func Base58Encode(b []byte) string {
	return base58.Encode(b)
}

// Base58Decode reverses Base58Encode.
func Base58Decode(s string) ([]byte, error) {
	return base58.Decode(s)
}
