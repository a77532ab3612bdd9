package claimsig

import (
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/holiman/uint256"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var contract = common.HexToAddress("0x5FbDB2315678afecb367f032d93F642f64180aa3")

func testParams() ClaimParams {
	return ClaimParams{
		Recipient: common.HexToAddress("0x90F79bf6EB2c4f870365E785982E1f101E93b906"),
		Amount:    uint256.NewInt(100_000),
		UserNonce: uint256.NewInt(0),
	}
}

func TestSignRecoversOperator(t *testing.T) {
	key, err := crypto.GenerateKey()
	require.NoError(t, err)
	operator := crypto.PubkeyToAddress(key.PublicKey)

	domain := NewDomain(big.NewInt(31337), contract)
	sig, err := Sign(domain, testParams(), key)
	require.NoError(t, err)
	require.Len(t, sig, 65)
	assert.Contains(t, []byte{27, 28}, sig[64])

	signer, err := NewVerifier(domain).Signer(testParams(), sig)
	require.NoError(t, err)
	assert.Equal(t, operator, signer)
}

func TestRecoverAcceptsZeroBasedV(t *testing.T) {
	key, err := crypto.GenerateKey()
	require.NoError(t, err)

	domain := NewDomain(big.NewInt(1), contract)
	sig, err := Sign(domain, testParams(), key)
	require.NoError(t, err)
	sig[64] -= 27

	signer, err := NewVerifier(domain).Signer(testParams(), sig)
	require.NoError(t, err)
	assert.Equal(t, crypto.PubkeyToAddress(key.PublicKey), signer)
}

func TestAnyFieldChangeInvalidatesSignature(t *testing.T) {
	key, err := crypto.GenerateKey()
	require.NoError(t, err)
	operator := crypto.PubkeyToAddress(key.PublicKey)

	domain := NewDomain(big.NewInt(2810), contract)
	sig, err := Sign(domain, testParams(), key)
	require.NoError(t, err)
	verifier := NewVerifier(domain)

	mutations := map[string]func(p *ClaimParams){
		"recipient": func(p *ClaimParams) { p.Recipient = common.HexToAddress("0x01") },
		"amount":    func(p *ClaimParams) { p.Amount = uint256.NewInt(985) },
		"nonce":     func(p *ClaimParams) { p.UserNonce = uint256.NewInt(1) },
	}
	for name, mutate := range mutations {
		t.Run(name, func(t *testing.T) {
			params := testParams()
			mutate(&params)
			signer, err := verifier.Signer(params, sig)
			if err == nil {
				assert.NotEqual(t, operator, signer)
			}
		})
	}
}

func TestDomainSeparation(t *testing.T) {
	key, err := crypto.GenerateKey()
	require.NoError(t, err)
	operator := crypto.PubkeyToAddress(key.PublicKey)

	sig, err := Sign(NewDomain(big.NewInt(1), contract), testParams(), key)
	require.NoError(t, err)

	otherChain, err := NewVerifier(NewDomain(big.NewInt(10), contract)).Signer(testParams(), sig)
	if err == nil {
		assert.NotEqual(t, operator, otherChain)
	}

	otherContract := common.HexToAddress("0xe7f1725E7734CE288F8367e1Bb143E90bb3F0512")
	signer, err := NewVerifier(NewDomain(big.NewInt(1), otherContract)).Signer(testParams(), sig)
	if err == nil {
		assert.NotEqual(t, operator, signer)
	}
}

func TestRecoverRejectsMalformed(t *testing.T) {
	digest := crypto.Keccak256Hash([]byte("claim"))

	_, err := Recover(digest, []byte{1, 2, 3})
	assert.ErrorIs(t, err, ErrInvalidSignature)

	_, err = Recover(digest, make([]byte, 65))
	assert.ErrorIs(t, err, ErrInvalidSignature)
}

func TestRecoverRejectsHighS(t *testing.T) {
	key, err := crypto.GenerateKey()
	require.NoError(t, err)
	digest := crypto.Keccak256Hash([]byte("claim"))

	sig, err := crypto.Sign(digest.Bytes(), key)
	require.NoError(t, err)

	// Flip s to n - s and the recovery bit, producing the malleable twin.
	n := crypto.S256().Params().N
	s := new(big.Int).SetBytes(sig[32:64])
	highS := new(big.Int).Sub(n, s)
	highS.FillBytes(sig[32:64])
	sig[64] ^= 1

	_, err = Recover(digest, sig)
	assert.ErrorIs(t, err, ErrInvalidSignature)
}

func TestHashRequiresChainID(t *testing.T) {
	_, err := Hash(Domain{Name: DomainName, Version: DomainVersion, VerifyingContract: contract}, testParams())
	assert.Error(t, err)
}

func TestTypedDataEncodesClaimType(t *testing.T) {
	td := TypedData(NewDomain(big.NewInt(1), contract), testParams())
	assert.Equal(t,
		"ClaimParams(address recipient,uint256 amount,uint256 userNonce)",
		string(td.EncodeType("ClaimParams")))
}
