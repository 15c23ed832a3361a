package crypto

import (
	"crypto/rand"
	"fmt"

	gethcrypto "github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/crypto/ecies"
)

// Encrypt seals payload under the bill's public key using ECIES
// (secp256k1, as mandated by §6's canonical block format).
func Encrypt(billPub *Keys, payload []byte) ([]byte, error) {
	pub, err := gethcrypto.UnmarshalPubkey(billPub.PublicKeyUncompressedBytes())
	if err != nil {
		return nil, fmt.Errorf("ecies encrypt: %w", err)
	}
	ct, err := ecies.Encrypt(rand.Reader, ecies.ImportECDSAPublic(pub), payload, nil, nil)
	if err != nil {
		return nil, fmt.Errorf("ecies encrypt: %w", err)
	}
	return ct, nil
}

// EncryptToCompressedPublicKey is like Encrypt but takes a raw 33-byte
// compressed public key, for encrypting to a counterparty rather than to
// the bill itself.
func EncryptToCompressedPublicKey(compressedPub []byte, payload []byte) ([]byte, error) {
	parsed, err := ParseNodeID(NodeID(fmt.Sprintf("%x", compressedPub)))
	if err != nil {
		return nil, err
	}
	pub, err := gethcrypto.UnmarshalPubkey(parsed.SerializeUncompressed())
	if err != nil {
		return nil, fmt.Errorf("ecies encrypt: %w", err)
	}
	ct, err := ecies.Encrypt(rand.Reader, ecies.ImportECDSAPublic(pub), payload, nil, nil)
	if err != nil {
		return nil, fmt.Errorf("ecies encrypt: %w", err)
	}
	return ct, nil
}

// Decrypt opens ciphertext with the bill's private key.
func Decrypt(billKeys *Keys, ciphertext []byte) ([]byte, error) {
	ecdsaPriv, err := gethcrypto.ToECDSA(billKeys.PrivateKeyBytes())
	if err != nil {
		return nil, fmt.Errorf("ecies decrypt: %w", err)
	}
	plain, err := ecies.ImportECDSA(ecdsaPriv).Decrypt(ciphertext, nil, nil)
	if err != nil {
		return nil, fmt.Errorf("ecies decrypt: %w", err)
	}
	return plain, nil
}
