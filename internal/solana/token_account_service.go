package solana

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"strings"

	bin "github.com/gagliardetto/binary"
	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/programs/token"
	"github.com/gagliardetto/solana-go/rpc"
	"github.com/shopspring/decimal"
)

type tokenAccountService struct{}

func newTokenAccountService() *tokenAccountService {
	return &tokenAccountService{}
}

// ownerProgram reads the mint account and reports the token program that owns it
// (legacy SPL or Token-2022) along with the mint decimals.
func (s *tokenAccountService) ownerProgram(
	ctx context.Context,
	client *rpc.Client,
	mint solana.PublicKey,
) (solana.PublicKey, uint8, error) {
	accountInfo, err := client.GetAccountInfo(ctx, mint)
	if err != nil {
		return solana.PublicKey{}, 0, fmt.Errorf("solana: failed to get mint account info: %w", err)
	}

	if accountInfo.Value == nil {
		return solana.PublicKey{}, 0, fmt.Errorf("solana: mint account not found: %s", mint)
	}

	owner := accountInfo.Value.Owner
	if owner != solana.TokenProgramID && owner != solana.Token2022ProgramID {
		return solana.PublicKey{}, 0, fmt.Errorf("solana: mint account is not owned by a token program: %s", owner)
	}

	var mintData token.Mint
	if err := mintData.UnmarshalWithDecoder(bin.NewBinDecoder(accountInfo.Value.Data.GetBinary())); err != nil {
		return solana.PublicKey{}, 0, fmt.Errorf("solana: failed to deserialize mint data: %w", err)
	}

	return owner, mintData.Decimals, nil
}

// associatedTokenAddress derives the owner's token account under tokenProgram.
func associatedTokenAddress(wallet, mint, tokenProgram solana.PublicKey) (solana.PublicKey, uint8, error) {
	return solana.FindProgramAddress(
		[][]byte{
			wallet[:],
			tokenProgram[:],
			mint[:],
		},
		solana.SPLAssociatedTokenAccountProgramID,
	)
}

// accountBalance returns the UI amount held by a token account. A missing
// account is a zero balance, not an error.
func (s *tokenAccountService) accountBalance(
	ctx context.Context,
	client *rpc.Client,
	tokenAccount solana.PublicKey,
) (decimal.Decimal, error) {
	balance, err := client.GetTokenAccountBalance(ctx, tokenAccount, rpc.CommitmentConfirmed)
	if err != nil {
		if errors.Is(err, rpc.ErrNotFound) || strings.Contains(err.Error(), "could not find account") {
			return decimal.Zero, nil
		}
		return decimal.Zero, fmt.Errorf("solana: failed to get token balance: %w", err)
	}

	if balance.Value == nil || balance.Value.Amount == "" {
		return decimal.Zero, nil
	}

	raw, ok := new(big.Int).SetString(balance.Value.Amount, 10)
	if !ok {
		return decimal.Zero, fmt.Errorf("solana: failed to parse amount %q", balance.Value.Amount)
	}

	return decimal.NewFromBigInt(raw, -int32(balance.Value.Decimals)), nil
}
