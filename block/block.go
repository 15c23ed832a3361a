// Package block implements the bill-chain block: a signed, encrypted,
// hash-linked unit of chain history (spec.md §4, §6).
package block

import (
	"encoding/binary"
	"fmt"
	"io"
	"sync/atomic"

	"github.com/ethereum/go-ethereum/rlp"

	"github.com/bitcredit/ebill/bill"
	"github.com/bitcredit/ebill/crypto"
)

// Block is one entry in a bill's chain. Its payload is always an
// RLP-encoded, ECIES-encrypted op-specific struct from package bill;
// only a signer holding the bill's private key can decrypt it.
type Block struct {
	body body

	cache struct {
		hash   atomic.Value
		signer atomic.Value
	}
}

type body struct {
	ID                uint64
	BillID            string
	OpCode            bill.OpCode
	PrevHash          crypto.Hash
	PayloadCiphertext []byte
	Timestamp         int64
	SignerPubKey      []byte
	CoSignerPubKey    []byte // set only when a company signer co-signs
	Signature         []byte
}

// New constructs an unsigned block. Sign must be called before the
// block is appended to a chain.
func New(id uint64, billID string, op bill.OpCode, prevHash crypto.Hash, payloadCiphertext []byte, timestamp int64, signerPub, coSignerPub []byte) *Block {
	return &Block{
		body: body{
			ID:                id,
			BillID:            billID,
			OpCode:            op,
			PrevHash:          prevHash,
			PayloadCiphertext: append([]byte(nil), payloadCiphertext...),
			Timestamp:         timestamp,
			SignerPubKey:      append([]byte(nil), signerPub...),
			CoSignerPubKey:    append([]byte(nil), coSignerPub...),
		},
	}
}

func (b *Block) ID() uint64                  { return b.body.ID }
func (b *Block) BillID() string              { return b.body.BillID }
func (b *Block) OpCode() bill.OpCode          { return b.body.OpCode }
func (b *Block) PrevHash() crypto.Hash       { return b.body.PrevHash }
func (b *Block) Timestamp() int64            { return b.body.Timestamp }
func (b *Block) SignerPubKeyBytes() []byte   { return b.body.SignerPubKey }
func (b *Block) CoSignerPubKeyBytes() []byte { return b.body.CoSignerPubKey }
func (b *Block) Signature() []byte           { return b.body.Signature }
func (b *Block) PayloadCiphertext() []byte   { return b.body.PayloadCiphertext }

func (b *Block) IsCoSigned() bool { return len(b.body.CoSignerPubKey) > 0 }

// SigningHash is the canonical hash every signature covers (spec.md §6):
// SHA256(id ‖ prev_hash ‖ payload_ciphertext ‖ timestamp ‖ signer_pubkey ‖ op_code),
// all integers big-endian.
func (b *Block) SigningHash() (hash crypto.Hash) {
	if cached := b.cache.hash.Load(); cached != nil {
		return cached.(crypto.Hash)
	}
	defer func() { b.cache.hash.Store(hash) }()

	var idBuf, tsBuf [8]byte
	binary.BigEndian.PutUint64(idBuf[:], b.body.ID)
	binary.BigEndian.PutUint64(tsBuf[:], uint64(b.body.Timestamp))

	hash = crypto.SHA256(
		idBuf[:],
		b.body.PrevHash.Bytes(),
		b.body.PayloadCiphertext,
		tsBuf[:],
		b.body.SignerPubKey,
		[]byte{byte(b.body.OpCode)},
	)
	return
}

// Sign signs the block with the signer's keys and records its public
// key. A non-nil coSigner has only its public key recorded
// (CoSignerPubKey); no co-signature is made with its keys.
func (b *Block) Sign(signer *crypto.Keys, coSigner *crypto.Keys) (*Block, error) {
	cpy := *b
	cpy.body.SignerPubKey = append([]byte(nil), signer.PublicKeyBytes()...)
	cpy.cache = struct {
		hash   atomic.Value
		signer atomic.Value
	}{}

	sig, err := signer.Sign(cpy.SigningHash())
	if err != nil {
		return nil, fmt.Errorf("sign block: %w", err)
	}
	cpy.body.Signature = sig

	if coSigner != nil {
		cpy.body.CoSignerPubKey = append([]byte(nil), coSigner.PublicKeyBytes()...)
	}

	return &cpy, nil
}

// Verify checks the block's signer signature against its signing hash.
// Blocks carry no co-signature, so none is verified.
func (b *Block) Verify() error {
	pub, err := crypto.ParseNodeID(crypto.NodeID(fmt.Sprintf("%x", b.body.SignerPubKey)))
	if err != nil {
		return fmt.Errorf("verify block: invalid signer pubkey: %w", err)
	}
	if !crypto.Verify(pub, b.SigningHash(), b.body.Signature) {
		return fmt.Errorf("verify block: signature mismatch")
	}
	return nil
}

// Decrypt decrypts the block's payload with the bill's private key and
// RLP-decodes it into dst, which must be a pointer to one of the
// op-specific payload types in package bill.
func (b *Block) Decrypt(billKeys *crypto.Keys, dst interface{}) error {
	plain, err := crypto.Decrypt(billKeys, b.body.PayloadCiphertext)
	if err != nil {
		return fmt.Errorf("decrypt block payload: %w", err)
	}
	if err := rlp.DecodeBytes(plain, dst); err != nil {
		return fmt.Errorf("decode block payload: %w", err)
	}
	return nil
}

// EncodePayload RLP-encodes an op-specific payload struct for
// encryption. Field order is pinned by the Go struct definition
// (SPEC_FULL.md §4.1): this is the canonical v1 wire encoding.
func EncodePayload(payload interface{}) ([]byte, error) {
	return rlp.EncodeToBytes(payload)
}

// EncodeRLP implements rlp.Encoder for transport and storage.
func (b *Block) EncodeRLP(w io.Writer) error {
	return rlp.Encode(w, b.body)
}

// DecodeRLP implements rlp.Decoder.
func (b *Block) DecodeRLP(s *rlp.Stream) error {
	var body body
	if err := s.Decode(&body); err != nil {
		return err
	}
	*b = Block{body: body}
	return nil
}
