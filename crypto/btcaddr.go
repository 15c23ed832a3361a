package crypto

import (
	"fmt"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/chaincfg"
	"github.com/decred/dcrd/dcrec/secp256k1/v4"
)

// DeriveP2WPKHAddress computes a fresh Bitcoin payment address for a sell
// or recourse payment by tweaking the bill's public key with the
// beneficiary's node id (§4.4, §9). The tweak is a scalar derived from
// SHA256(billPub || beneficiaryNodeID), added to the bill's public key
// point via the curve's own scalar-base-mult-and-add — never ad-hoc
// big.Int arithmetic.
func DeriveP2WPKHAddress(billPub *Keys, beneficiary NodeID, params *chaincfg.Params) (string, error) {
	beneficiaryPub, err := ParseNodeID(beneficiary)
	if err != nil {
		return "", fmt.Errorf("derive payment address: %w", err)
	}

	tweak := SHA256(billPub.PublicKeyBytes(), beneficiaryPub.SerializeCompressed())

	tweaked, err := tweakAddPubKey(billPub.PublicKey(), tweak[:])
	if err != nil {
		return "", fmt.Errorf("derive payment address: %w", err)
	}

	witnessProg := btcutil.Hash160(tweaked.SerializeCompressed())
	addr, err := btcutil.NewAddressWitnessPubKeyHash(witnessProg, params)
	if err != nil {
		return "", fmt.Errorf("derive payment address: %w", err)
	}
	return addr.EncodeAddress(), nil
}

// tweakAddPubKey returns pub + tweak*G on the secp256k1 curve.
func tweakAddPubKey(pub *secp256k1.PublicKey, tweak []byte) (*btcec.PublicKey, error) {
	btcPub, err := btcec.ParsePubKey(pub.SerializeCompressed())
	if err != nil {
		return nil, err
	}

	var tweakScalar btcec.ModNScalar
	overflow := tweakScalar.SetByteSlice(tweak)
	if overflow {
		return nil, fmt.Errorf("tweak scalar overflows curve order")
	}

	var tweakPointJ btcec.JacobianPoint
	btcec.ScalarBaseMultNonConst(&tweakScalar, &tweakPointJ)

	var pubPointJ btcec.JacobianPoint
	btcPub.AsJacobian(&pubPointJ)

	var sumJ btcec.JacobianPoint
	btcec.AddNonConst(&tweakPointJ, &pubPointJ, &sumJ)
	sumJ.ToAffine()

	return btcec.NewPublicKey(&sumJ.X, &sumJ.Y), nil
}
