package claimsig

import (
	"crypto/ecdsa"
	"errors"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/math"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/signer/core/apitypes"
	"github.com/holiman/uint256"
)

const (
	DomainName    = "Rubyscore_Deposit"
	DomainVersion = "0.0.1"

	primaryType = "ClaimParams"
)

var ErrInvalidSignature = errors.New("invalid signature")

// Domain binds a claim signature to one contract on one chain.
type Domain struct {
	Name              string
	Version           string
	ChainID           *big.Int
	VerifyingContract common.Address
}

// NewDomain returns the deposit contract domain for chainID and contract.
func NewDomain(chainID *big.Int, contract common.Address) Domain {
	return Domain{
		Name:              DomainName,
		Version:           DomainVersion,
		ChainID:           new(big.Int).Set(chainID),
		VerifyingContract: contract,
	}
}

// ClaimParams is the signed payload authorizing one payout.
type ClaimParams struct {
	Recipient common.Address
	Amount    *uint256.Int
	UserNonce *uint256.Int
}

var claimTypes = apitypes.Types{
	"EIP712Domain": {
		{Name: "name", Type: "string"},
		{Name: "version", Type: "string"},
		{Name: "chainId", Type: "uint256"},
		{Name: "verifyingContract", Type: "address"},
	},
	primaryType: {
		{Name: "recipient", Type: "address"},
		{Name: "amount", Type: "uint256"},
		{Name: "userNonce", Type: "uint256"},
	},
}

// TypedData builds the EIP-712 document for params under domain.
func TypedData(domain Domain, params ClaimParams) apitypes.TypedData {
	return apitypes.TypedData{
		Types:       claimTypes,
		PrimaryType: primaryType,
		Domain: apitypes.TypedDataDomain{
			Name:              domain.Name,
			Version:           domain.Version,
			ChainId:           (*math.HexOrDecimal256)(domain.ChainID),
			VerifyingContract: domain.VerifyingContract.Hex(),
		},
		Message: apitypes.TypedDataMessage{
			"recipient": params.Recipient.Hex(),
			"amount":    toBig(params.Amount),
			"userNonce": toBig(params.UserNonce),
		},
	}
}

// Hash returns the EIP-712 digest that operators sign.
func Hash(domain Domain, params ClaimParams) (common.Hash, error) {
	if domain.ChainID == nil {
		return common.Hash{}, errors.New("domain chain id is required")
	}
	digest, _, err := apitypes.TypedDataAndHash(TypedData(domain, params))
	if err != nil {
		return common.Hash{}, fmt.Errorf("hash claim params: %w", err)
	}
	return common.BytesToHash(digest), nil
}

// Sign produces a 65-byte r||s||v signature with v in {27, 28}.
func Sign(domain Domain, params ClaimParams, key *ecdsa.PrivateKey) ([]byte, error) {
	digest, err := Hash(domain, params)
	if err != nil {
		return nil, err
	}
	sig, err := crypto.Sign(digest.Bytes(), key)
	if err != nil {
		return nil, fmt.Errorf("sign claim: %w", err)
	}
	sig[crypto.RecoveryIDOffset] += 27
	return sig, nil
}

// Verifier recovers claim signers for a fixed domain.
type Verifier struct {
	domain Domain
}

func NewVerifier(domain Domain) *Verifier {
	return &Verifier{domain: domain}
}

// Signer returns the address that signed params. It never reports whether
// that address is authorized.
func (v *Verifier) Signer(params ClaimParams, signature []byte) (common.Address, error) {
	digest, err := Hash(v.domain, params)
	if err != nil {
		return common.Address{}, err
	}
	return Recover(digest, signature)
}

// Recover returns the signer of digest. Signatures must be canonical
// (low-s) and carry v in {0, 1, 27, 28}.
func Recover(digest common.Hash, signature []byte) (common.Address, error) {
	if len(signature) != crypto.SignatureLength {
		return common.Address{}, fmt.Errorf("%w: length %d", ErrInvalidSignature, len(signature))
	}
	sig := make([]byte, crypto.SignatureLength)
	copy(sig, signature)
	if sig[crypto.RecoveryIDOffset] >= 27 {
		sig[crypto.RecoveryIDOffset] -= 27
	}

	r := new(big.Int).SetBytes(sig[:32])
	s := new(big.Int).SetBytes(sig[32:64])
	if !crypto.ValidateSignatureValues(sig[crypto.RecoveryIDOffset], r, s, true) {
		return common.Address{}, fmt.Errorf("%w: malformed r, s or v", ErrInvalidSignature)
	}

	pub, err := crypto.SigToPub(digest.Bytes(), sig)
	if err != nil {
		return common.Address{}, fmt.Errorf("%w: %v", ErrInvalidSignature, err)
	}
	return crypto.PubkeyToAddress(*pub), nil
}

func toBig(v *uint256.Int) *big.Int {
	if v == nil {
		return new(big.Int)
	}
	return v.ToBig()
}
