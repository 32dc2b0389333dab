package polymarket_auth

import (
	"fmt"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/math"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/signer/core/apitypes"
)

// CTF exchange contracts on Polygon. Orders verify against one of these
// depending on the market's neg-risk flag.
var (
	ExchangeAddress        = common.HexToAddress("0x4bFb41d5B3570DeFd03C39a9A4D8dE6Bd8B8982E")
	NegRiskExchangeAddress = common.HexToAddress("0xC5d563A36AE78145C45a50134d48A1215220f80a")
)

// Order side values in the exchange's EIP-712 schema.
const (
	SideBuy  uint8 = 0
	SideSell uint8 = 1
)

// SignatureTypeProxy marks orders signed by an EOA on behalf of a
// Polymarket proxy wallet.
const SignatureTypeProxy uint8 = 1

// Order is the EIP-712 payload the CTF exchange verifies. Amounts are
// 6-decimal integer units (raw units); TokenID is the market's uint256
// outcome-token identifier.
type Order struct {
	Salt          *big.Int
	Maker         common.Address
	Signer        common.Address
	Taker         common.Address
	TokenID       *big.Int
	MakerAmount   *big.Int
	TakerAmount   *big.Int
	Expiration    *big.Int
	Nonce         *big.Int
	FeeRateBps    *big.Int
	Side          uint8
	SignatureType uint8
}

var orderTypes = apitypes.Types{
	"EIP712Domain": []apitypes.Type{
		{Name: "name", Type: "string"},
		{Name: "version", Type: "string"},
		{Name: "chainId", Type: "uint256"},
		{Name: "verifyingContract", Type: "address"},
	},
	"Order": []apitypes.Type{
		{Name: "salt", Type: "uint256"},
		{Name: "maker", Type: "address"},
		{Name: "signer", Type: "address"},
		{Name: "taker", Type: "address"},
		{Name: "tokenId", Type: "uint256"},
		{Name: "makerAmount", Type: "uint256"},
		{Name: "takerAmount", Type: "uint256"},
		{Name: "expiration", Type: "uint256"},
		{Name: "nonce", Type: "uint256"},
		{Name: "feeRateBps", Type: "uint256"},
		{Name: "side", Type: "uint8"},
		{Name: "signatureType", Type: "uint8"},
	},
}

// HashOrder computes the EIP-712 digest the exchange contract verifies.
func (s *Signer) HashOrder(order *Order, verifyingContract common.Address) ([]byte, error) {
	typedData := apitypes.TypedData{
		Types:       orderTypes,
		PrimaryType: "Order",
		Domain: apitypes.TypedDataDomain{
			Name:              "Polymarket CTF Exchange",
			Version:           "1",
			ChainId:           (*math.HexOrDecimal256)(big.NewInt(s.chainID)),
			VerifyingContract: verifyingContract.Hex(),
		},
		Message: apitypes.TypedDataMessage{
			"salt":          order.Salt.String(),
			"maker":         order.Maker.Hex(),
			"signer":        order.Signer.Hex(),
			"taker":         order.Taker.Hex(),
			"tokenId":       order.TokenID.String(),
			"makerAmount":   order.MakerAmount.String(),
			"takerAmount":   order.TakerAmount.String(),
			"expiration":    order.Expiration.String(),
			"nonce":         order.Nonce.String(),
			"feeRateBps":    order.FeeRateBps.String(),
			"side":          fmt.Sprintf("%d", order.Side),
			"signatureType": fmt.Sprintf("%d", order.SignatureType),
		},
	}

	return hashTypedData(typedData)
}

// SignOrder hashes and signs an order, returning the 65-byte signature.
func (s *Signer) SignOrder(order *Order, verifyingContract common.Address) ([]byte, error) {
	digest, err := s.HashOrder(order, verifyingContract)
	if err != nil {
		return nil, fmt.Errorf("hash order: %w", err)
	}
	return s.sign(digest)
}

const clobAuthMessage = "This message attests that I control the given wallet"

// AuthHeaders returns the L1 (key-signed) headers used to derive or create
// CLOB API credentials: POLY_ADDRESS, POLY_SIGNATURE, POLY_TIMESTAMP,
// POLY_NONCE. The signature covers an EIP-712 ClobAuth attestation.
func (s *Signer) AuthHeaders(nonce uint64) (map[string]string, error) {
	ts := fmt.Sprintf("%d", time.Now().Unix())

	typedData := apitypes.TypedData{
		Types: apitypes.Types{
			"EIP712Domain": []apitypes.Type{
				{Name: "name", Type: "string"},
				{Name: "version", Type: "string"},
				{Name: "chainId", Type: "uint256"},
			},
			"ClobAuth": []apitypes.Type{
				{Name: "address", Type: "address"},
				{Name: "timestamp", Type: "string"},
				{Name: "nonce", Type: "uint256"},
				{Name: "message", Type: "string"},
			},
		},
		PrimaryType: "ClobAuth",
		Domain: apitypes.TypedDataDomain{
			Name:    "ClobAuthDomain",
			Version: "1",
			ChainId: (*math.HexOrDecimal256)(big.NewInt(s.chainID)),
		},
		Message: apitypes.TypedDataMessage{
			"address":   s.address.Hex(),
			"timestamp": ts,
			"nonce":     new(big.Int).SetUint64(nonce).String(),
			"message":   clobAuthMessage,
		},
	}

	digest, err := hashTypedData(typedData)
	if err != nil {
		return nil, fmt.Errorf("hash clob auth: %w", err)
	}

	sig, err := s.sign(digest)
	if err != nil {
		return nil, err
	}

	return map[string]string{
		"POLY_ADDRESS":   s.address.Hex(),
		"POLY_SIGNATURE": "0x" + common.Bytes2Hex(sig),
		"POLY_TIMESTAMP": ts,
		"POLY_NONCE":     fmt.Sprintf("%d", nonce),
	}, nil
}

// hashTypedData computes keccak256("\x19\x01" || domainSeparator || structHash).
func hashTypedData(typedData apitypes.TypedData) ([]byte, error) {
	domainSeparator, err := typedData.HashStruct("EIP712Domain", typedData.Domain.Map())
	if err != nil {
		return nil, fmt.Errorf("hash domain: %w", err)
	}

	structHash, err := typedData.HashStruct(typedData.PrimaryType, typedData.Message)
	if err != nil {
		return nil, fmt.Errorf("hash message: %w", err)
	}

	raw := make([]byte, 0, 2+len(domainSeparator)+len(structHash))
	raw = append(raw, 0x19, 0x01)
	raw = append(raw, domainSeparator...)
	raw = append(raw, structHash...)
	return crypto.Keccak256(raw), nil
}
