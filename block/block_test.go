package block_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bitcredit/ebill/bill"
	"github.com/bitcredit/ebill/block"
	"github.com/bitcredit/ebill/crypto"
)

func TestBlockSignVerifyRoundTrip(t *testing.T) {
	billKeys, err := crypto.GenerateKeys()
	require.NoError(t, err)
	signer, err := crypto.GenerateKeys()
	require.NoError(t, err)

	payload := bill.AcceptPayload{SignatureMetadata: bill.SignatureMetadata{SigningTimestamp: time.Now().Unix()}}
	encoded, err := block.EncodePayload(payload)
	require.NoError(t, err)

	ct, err := crypto.Encrypt(billKeys, encoded)
	require.NoError(t, err)

	b := block.New(1, "bill-1", bill.Accept, crypto.Hash{}, ct, time.Now().Unix(), signer.PublicKeyBytes(), nil)
	signed, err := b.Sign(signer, nil)
	require.NoError(t, err)

	assert.NoError(t, signed.Verify())
	assert.False(t, signed.IsCoSigned())

	var decoded bill.AcceptPayload
	require.NoError(t, signed.Decrypt(billKeys, &decoded))
	assert.Equal(t, payload.SigningTimestamp, decoded.SigningTimestamp)
}

func TestBlockVerifyFailsOnTamperedSignature(t *testing.T) {
	billKeys, err := crypto.GenerateKeys()
	require.NoError(t, err)
	signer, err := crypto.GenerateKeys()
	require.NoError(t, err)

	ct, err := crypto.Encrypt(billKeys, []byte("payload"))
	require.NoError(t, err)

	b := block.New(1, "bill-1", bill.Issue, crypto.Hash{}, ct, time.Now().Unix(), signer.PublicKeyBytes(), nil)
	signed, err := b.Sign(signer, nil)
	require.NoError(t, err)

	tampered := signed.Signature()
	tampered[0] ^= 0xff

	assert.Error(t, signed.Verify())
}

func TestBlockCoSignRecordsCoSigner(t *testing.T) {
	billKeys, err := crypto.GenerateKeys()
	require.NoError(t, err)
	signer, err := crypto.GenerateKeys()
	require.NoError(t, err)
	coSigner, err := crypto.GenerateKeys()
	require.NoError(t, err)

	ct, err := crypto.Encrypt(billKeys, []byte("payload"))
	require.NoError(t, err)

	b := block.New(2, "bill-1", bill.Accept, crypto.Hash{}, ct, time.Now().Unix(), signer.PublicKeyBytes(), nil)
	signed, err := b.Sign(signer, coSigner)
	require.NoError(t, err)

	assert.True(t, signed.IsCoSigned())
	assert.Equal(t, coSigner.PublicKeyBytes(), signed.CoSignerPubKeyBytes())
}
