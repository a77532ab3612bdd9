package main

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/holiman/uint256"
	"github.com/spf13/cobra"

	"rubyscore/internal/claimsig"
	"rubyscore/internal/deposit"
	"rubyscore/internal/units"
)

type claimFlags struct {
	network   string
	chainID   uint64
	contract  string
	recipient string
	amount    string
	unit      string
	nonce     uint64
}

func (f *claimFlags) register(cmd *cobra.Command) {
	fl := cmd.Flags()
	fl.StringVar(&f.network, "network", "", "network whose chain id binds the signature")
	fl.Uint64Var(&f.chainID, "chain-id", 0, "chain id, overrides --network")
	fl.StringVar(&f.contract, "contract", "", "Rubyscore_Deposit address")
	fl.StringVar(&f.recipient, "recipient", "", "claim recipient")
	fl.StringVar(&f.amount, "amount", "", "claim amount")
	fl.StringVar(&f.unit, "unit", "wei", "unit of --amount: wei, gwei or ether")
	fl.Uint64Var(&f.nonce, "nonce", 0, "recipient's current claim nonce")
}

func (f *claimFlags) resolve(opts *rootOptions) (claimsig.Domain, claimsig.ClaimParams, error) {
	chainID, err := opts.chainID(f.network, f.chainID)
	if err != nil {
		return claimsig.Domain{}, claimsig.ClaimParams{}, err
	}
	contract, err := addressFlag("contract", f.contract)
	if err != nil {
		return claimsig.Domain{}, claimsig.ClaimParams{}, err
	}
	recipient, err := addressFlag("recipient", f.recipient)
	if err != nil {
		return claimsig.Domain{}, claimsig.ClaimParams{}, err
	}
	if f.amount == "" {
		return claimsig.Domain{}, claimsig.ClaimParams{}, errors.New("--amount is required")
	}
	amount, err := units.Parse(f.amount, f.unit)
	if err != nil {
		return claimsig.Domain{}, claimsig.ClaimParams{}, err
	}
	return claimsig.NewDomain(chainID, contract), claimsig.ClaimParams{
		Recipient: recipient,
		Amount:    amount,
		UserNonce: uint256.NewInt(f.nonce),
	}, nil
}

type signedClaim struct {
	Recipient string `json:"recipient"`
	Amount    string `json:"amount"`
	UserNonce string `json:"userNonce"`
	Signature string `json:"signature"`
	Digest    string `json:"digest"`
	Signer    string `json:"signer"`
}

func newSignClaimCmd(opts *rootOptions) *cobra.Command {
	var (
		flags  claimFlags
		keyHex string
	)
	cmd := &cobra.Command{
		Use:   "sign-claim",
		Short: "Sign a claimProfit capability with an operator key",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			domain, params, err := flags.resolve(opts)
			if err != nil {
				return err
			}
			keyStr := envKey(keyHex, "OPERATOR_PRIVATE_KEY", "CHAIN_PRIVATE_KEY")
			if keyStr == "" {
				return errors.New("--private-key or OPERATOR_PRIVATE_KEY is required")
			}
			key, err := deposit.ParsePrivateKey(keyStr)
			if err != nil {
				return err
			}
			sig, err := claimsig.Sign(domain, params, key)
			if err != nil {
				return err
			}
			digest, err := claimsig.Hash(domain, params)
			if err != nil {
				return err
			}

			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(signedClaim{
				Recipient: params.Recipient.Hex(),
				Amount:    params.Amount.Dec(),
				UserNonce: params.UserNonce.Dec(),
				Signature: hexutil.Encode(sig),
				Digest:    digest.Hex(),
				Signer:    crypto.PubkeyToAddress(key.PublicKey).Hex(),
			})
		},
	}
	flags.register(cmd)
	cmd.Flags().StringVar(&keyHex, "private-key", "", "operator key, defaults to OPERATOR_PRIVATE_KEY")
	return cmd
}

func newVerifyClaimCmd(opts *rootOptions) *cobra.Command {
	var (
		flags     claimFlags
		signature string
		expect    string
	)
	cmd := &cobra.Command{
		Use:   "verify-claim",
		Short: "Recover the signer of a claim signature",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			domain, params, err := flags.resolve(opts)
			if err != nil {
				return err
			}
			sig, err := hexutil.Decode(signature)
			if err != nil {
				return fmt.Errorf("--signature: %w", err)
			}
			signer, err := claimsig.NewVerifier(domain).Signer(params, sig)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), signer.Hex())
			if expect != "" && signer != common.HexToAddress(expect) {
				return fmt.Errorf("signed by %s, expected %s", signer.Hex(), expect)
			}
			return nil
		},
	}
	flags.register(cmd)
	cmd.Flags().StringVar(&signature, "signature", "", "0x-prefixed 65-byte signature")
	cmd.Flags().StringVar(&expect, "expect", "", "fail unless the signer is this address")
	_ = cmd.MarkFlagRequired("signature")
	return cmd
}
