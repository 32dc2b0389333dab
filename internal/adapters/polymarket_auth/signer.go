package polymarket_auth

import (
	"crypto/ecdsa"
	"errors"
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
)

var (
	ErrInvalidPrivateKey = errors.New("invalid private key")
	ErrInvalidFunder     = errors.New("invalid funder address")
)

// Signer holds the secp256k1 trading identity. Every order and every L1 auth
// header is signed with it. The private key never leaves this package.
type Signer struct {
	privateKey *ecdsa.PrivateKey
	address    common.Address
	funder     common.Address
	chainID    int64
}

// NewSigner parses a hex private key ("0x..." or bare) and the funder wallet
// address. The funder is the proxy wallet that holds USDC and positions; the
// key is the EOA that signs on its behalf.
func NewSigner(privateKeyHex, funderHex string, chainID int64) (*Signer, error) {
	pk, err := crypto.HexToECDSA(strings.TrimPrefix(privateKeyHex, "0x"))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidPrivateKey, err)
	}

	if !common.IsHexAddress(funderHex) {
		return nil, fmt.Errorf("%w: %q", ErrInvalidFunder, funderHex)
	}

	return &Signer{
		privateKey: pk,
		address:    crypto.PubkeyToAddress(pk.PublicKey),
		funder:     common.HexToAddress(funderHex),
		chainID:    chainID,
	}, nil
}

// Address returns the signing EOA derived from the private key.
func (s *Signer) Address() common.Address { return s.address }

// Funder returns the proxy wallet that orders are placed on behalf of.
func (s *Signer) Funder() common.Address { return s.funder }

// ChainID returns the chain the signer is bound to (137 for Polygon mainnet).
func (s *Signer) ChainID() int64 { return s.chainID }

// sign produces a 65-byte [R || S || V] signature over a 32-byte digest,
// with V adjusted to the Ethereum 27/28 convention.
func (s *Signer) sign(digest []byte) ([]byte, error) {
	if len(digest) != 32 {
		return nil, fmt.Errorf("digest must be 32 bytes, got %d", len(digest))
	}

	sig, err := crypto.Sign(digest, s.privateKey)
	if err != nil {
		return nil, fmt.Errorf("ecdsa sign: %w", err)
	}

	sig[64] += 27
	return sig, nil
}

// RecoverAddress recovers the signer address from a digest and a 65-byte
// signature in the 27/28 V convention. Used by tests to verify signatures.
func RecoverAddress(digest, sig []byte) (common.Address, error) {
	if len(sig) != 65 {
		return common.Address{}, fmt.Errorf("invalid signature length: %d", len(sig))
	}

	adjusted := make([]byte, 65)
	copy(adjusted, sig)
	if adjusted[64] >= 27 {
		adjusted[64] -= 27
	}

	pub, err := crypto.Ecrecover(digest, adjusted)
	if err != nil {
		return common.Address{}, fmt.Errorf("ecrecover: %w", err)
	}

	key, err := crypto.UnmarshalPubkey(pub)
	if err != nil {
		return common.Address{}, fmt.Errorf("unmarshal pubkey: %w", err)
	}

	return crypto.PubkeyToAddress(*key), nil
}
