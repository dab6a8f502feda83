package validate

import (
	"fmt"
	"strings"

	"github.com/gagliardetto/solana-go"
	"github.com/shopspring/decimal"

	"github.com/umbra-research/umbra-interface/internal/types"
)

type Field string

const (
	FieldDestination Field = "destination"
	FieldAmount      Field = "amount"
)

type Code string

const (
	CodeRequired            Code = "Required"
	CodeInvalidAddress      Code = "InvalidAddress"
	CodeNotPositive         Code = "NotPositive"
	CodeInsufficientBalance Code = "InsufficientBalance"
)

type FieldError struct {
	Field     Field           `json:"field"`
	Code      Code            `json:"code"`
	Message   string          `json:"message"`
	Shortfall *decimal.Decimal `json:"shortfall,omitempty"`
}

// Errors is keyed by field so the form can show every problem at once.
type Errors map[Field]FieldError

func (e Errors) Empty() bool {
	return len(e) == 0
}

// Err folds the field errors into a single error wrapping types.ErrValidation,
// or nil when there is nothing to report.
func (e Errors) Err() error {
	if e.Empty() {
		return nil
	}
	msgs := make([]string, 0, len(e))
	for _, f := range []Field{FieldDestination, FieldAmount} {
		if fe, ok := e[f]; ok {
			msgs = append(msgs, fmt.Sprintf("%s: %s", f, fe.Message))
		}
	}
	return fmt.Errorf("%w: %s", types.ErrValidation, strings.Join(msgs, "; "))
}

// Input is everything the form knows at the time of validation. Fee is expected
// in the same unit as Balance; callers pass zero when the fee is paid in a
// different token than the one being sent.
type Input struct {
	Destination string
	Amount      string
	Token       string
	Fee         decimal.Decimal
	Balance     decimal.Decimal
}

// Validate runs every field rule independently. It does no I/O.
func Validate(in Input) Errors {
	errs := Errors{}

	if fe, ok := checkDestination(in.Destination); !ok {
		errs[FieldDestination] = fe
	}
	if fe, ok := checkAmount(in); !ok {
		errs[FieldAmount] = fe
	}

	return errs
}

func checkDestination(dest string) (FieldError, bool) {
	dest = strings.TrimSpace(dest)
	if dest == "" {
		return FieldError{
			Field:   FieldDestination,
			Code:    CodeRequired,
			Message: "recipient address is required",
		}, false
	}
	if !IsAddress(dest) {
		return FieldError{
			Field:   FieldDestination,
			Code:    CodeInvalidAddress,
			Message: "invalid Solana address",
		}, false
	}
	return FieldError{}, true
}

func checkAmount(in Input) (FieldError, bool) {
	raw := strings.TrimSpace(in.Amount)
	if raw == "" {
		return FieldError{
			Field:   FieldAmount,
			Code:    CodeRequired,
			Message: "amount is required",
		}, false
	}

	amount, err := ParseAmount(raw)
	if err != nil {
		return FieldError{
			Field:   FieldAmount,
			Code:    CodeNotPositive,
			Message: "amount must be greater than 0",
		}, false
	}

	need := amount.Add(in.Fee)
	if need.GreaterThan(in.Balance) {
		shortfall := need.Sub(in.Balance)
		return FieldError{
			Field: FieldAmount,
			Code:  CodeInsufficientBalance,
			Message: fmt.Sprintf(
				"insufficient balance (need %s %s, short by %s)",
				need.StringFixed(6),
				tokenLabel(in.Token),
				shortfall.String(),
			),
			Shortfall: &shortfall,
		}, false
	}

	return FieldError{}, true
}

// IsAddress checks that s is a base58 encoded 32 byte public key. It says
// nothing about whether the account exists.
func IsAddress(s string) bool {
	_, err := solana.PublicKeyFromBase58(s)
	return err == nil
}

// ParseAmount accepts a strictly positive decimal.
func ParseAmount(s string) (decimal.Decimal, error) {
	d, err := decimal.NewFromString(strings.TrimSpace(s))
	if err != nil {
		return decimal.Zero, fmt.Errorf("invalid amount %q: %w", s, err)
	}
	if !d.IsPositive() {
		return decimal.Zero, fmt.Errorf("amount must be positive, got %s", d)
	}
	return d, nil
}

func tokenLabel(token string) string {
	if types.IsNativeToken(token) {
		return types.NativeToken
	}
	return types.MaskAddress(token, 4)
}
