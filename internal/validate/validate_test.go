package validate

import (
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/umbra-research/umbra-interface/internal/types"
)

const validAddr = "9xQeWvG816bUx9EPjHmaT23yvVM2ZWbrrpZb9PusVFin"

func TestValidate_InvalidDestinationOnly(t *testing.T) {
	errs := Validate(Input{
		Destination: "not-base58!!",
		Amount:      "1",
		Token:       types.NativeToken,
		Fee:         decimal.RequireFromString("0.00005"),
		Balance:     decimal.RequireFromString("5"),
	})

	require.Len(t, errs, 1)
	assert.Equal(t, CodeInvalidAddress, errs[FieldDestination].Code)
	_, hasAmount := errs[FieldAmount]
	assert.False(t, hasAmount)
}

func TestValidate_TrimsDestination(t *testing.T) {
	errs := Validate(Input{
		Destination: "  " + validAddr + "\n",
		Amount:      "1",
		Token:       types.NativeToken,
		Balance:     decimal.RequireFromString("5"),
	})
	assert.True(t, errs.Empty(), "%v", errs)
}

func TestFieldError_ShortfallOnlyWhenShort(t *testing.T) {
	errs := Validate(Input{Destination: "bad", Amount: "0", Balance: decimal.RequireFromString("5")})
	raw, err := json.Marshal(errs)
	require.NoError(t, err)
	assert.NotContains(t, string(raw), "shortfall")

	errs = Validate(Input{Destination: validAddr, Amount: "6", Balance: decimal.RequireFromString("5")})
	raw, err = json.Marshal(errs)
	require.NoError(t, err)
	assert.Contains(t, string(raw), `"shortfall":"1"`)
}

func TestValidate_InsufficientBalanceShortfall(t *testing.T) {
	errs := Validate(Input{
		Destination: validAddr,
		Amount:      "2",
		Token:       types.NativeToken,
		Fee:         decimal.RequireFromString("0.0005"),
		Balance:     decimal.RequireFromString("1.0"),
	})

	require.Len(t, errs, 1)
	fe := errs[FieldAmount]
	assert.Equal(t, CodeInsufficientBalance, fe.Code)
	require.NotNil(t, fe.Shortfall)
	assert.True(t, fe.Shortfall.Equal(decimal.RequireFromString("1.0005")), "shortfall %s", fe.Shortfall)
	assert.Contains(t, fe.Message, "1.0005")
}

func TestValidate_AllRulesRun(t *testing.T) {
	errs := Validate(Input{Destination: "   ", Amount: ""})

	require.Len(t, errs, 2)
	assert.Equal(t, CodeRequired, errs[FieldDestination].Code)
	assert.Equal(t, CodeRequired, errs[FieldAmount].Code)

	err := errs.Err()
	require.Error(t, err)
	assert.True(t, errors.Is(err, types.ErrValidation))
	assert.Equal(t, types.KindValidation, types.KindOf(err))
}

func TestValidate_Amount(t *testing.T) {
	tests := []struct {
		name   string
		amount string
		want   Code
	}{
		{name: "empty", amount: "", want: CodeRequired},
		{name: "not a number", amount: "abc", want: CodeNotPositive},
		{name: "zero", amount: "0", want: CodeNotPositive},
		{name: "negative", amount: "-1", want: CodeNotPositive},
		{name: "exactly balance minus fee", amount: "0.99995", want: ""},
		{name: "one lamport over", amount: "0.999950001", want: CodeInsufficientBalance},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			errs := Validate(Input{
				Destination: validAddr,
				Amount:      tt.amount,
				Fee:         decimal.RequireFromString("0.00005"),
				Balance:     decimal.RequireFromString("1"),
			})
			if tt.want == "" {
				assert.True(t, errs.Empty(), "unexpected errors: %v", errs)
				assert.NoError(t, errs.Err())
				return
			}
			assert.Equal(t, tt.want, errs[FieldAmount].Code)
		})
	}
}

func TestValidate_MalformedDestinations(t *testing.T) {
	malformed := []string{
		"not-base58!!",
		"0OIl0OIl0OIl0OIl0OIl0OIl0OIl0OIl",
		"abc",
		strings.Repeat("z", 64),
		validAddr + " ",
		validAddr[:len(validAddr)-2],
	}

	for _, dest := range malformed {
		errs := Validate(Input{
			Destination: dest,
			Amount:      "1",
			Balance:     decimal.NewFromInt(10),
		})
		assert.Equal(t, CodeInvalidAddress, errs[FieldDestination].Code, "destination %q", dest)
	}
}

func TestValidate_InsufficientWheneverAmountPlusFeeExceedsBalance(t *testing.T) {
	balances := []string{"0", "0.000001", "1", "2.5", "1000"}
	fees := []string{"0", "0.000005", "0.00005", "0.5"}
	amounts := []string{"0.000001", "0.1", "1", "2.5", "999.99995", "1001"}

	for _, b := range balances {
		for _, f := range fees {
			for _, a := range amounts {
				balance := decimal.RequireFromString(b)
				fee := decimal.RequireFromString(f)
				amount := decimal.RequireFromString(a)

				errs := Validate(Input{
					Destination: validAddr,
					Amount:      a,
					Fee:         fee,
					Balance:     balance,
				})

				over := amount.Add(fee).GreaterThan(balance)
				if over {
					assert.Equal(t, CodeInsufficientBalance, errs[FieldAmount].Code, "a=%s f=%s b=%s", a, f, b)
					assert.True(t, errs[FieldAmount].Shortfall.Equal(amount.Add(fee).Sub(balance)))
				} else {
					assert.True(t, errs.Empty(), "a=%s f=%s b=%s", a, f, b)
				}
			}
		}
	}
}

func TestIsAddress(t *testing.T) {
	assert.True(t, IsAddress(validAddr))
	assert.True(t, IsAddress("So11111111111111111111111111111111111111112"))
	assert.False(t, IsAddress(""))
	assert.False(t, IsAddress("0x6507f97E3A26E966bC381153eB16Fa55ED23a38E"))
}
