package domain

import (
	"errors"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
)

func testAddr(b byte) common.Address {
	var a common.Address
	a[19] = b
	return a
}

func TestCurrencyAmountDefensiveCopy(t *testing.T) {
	raw := big.NewInt(100)
	amount := NewCurrencyAmount(NewToken(1, testAddr(1), 18, "TKN"), raw)

	raw.SetInt64(999)
	if amount.Raw().Int64() != 100 {
		t.Error("amount must not alias the caller's big.Int")
	}

	amount.Raw().SetInt64(5)
	if amount.Raw().Int64() != 100 {
		t.Error("Raw must return a copy")
	}
}

func TestCurrencyAmountMismatch(t *testing.T) {
	tkn := NewCurrencyAmount(NewToken(1, testAddr(1), 18, "A"), big.NewInt(1))
	other := NewCurrencyAmount(NewToken(1, testAddr(2), 18, "B"), big.NewInt(1))

	if _, err := tkn.Add(other); !errors.Is(err, ErrCurrencyMismatch) {
		t.Errorf("Add across currencies: err = %v, want ErrCurrencyMismatch", err)
	}
	if _, err := tkn.Cmp(other); !errors.Is(err, ErrCurrencyMismatch) {
		t.Errorf("Cmp across currencies: err = %v, want ErrCurrencyMismatch", err)
	}
}

func TestCurrencyEquality(t *testing.T) {
	nativeA := NewNative(1, 18, "ETH")
	nativeB := NewNative(1, 18, "WETH-display")
	if !nativeA.Equal(nativeB) {
		t.Error("native currencies on the same chain must be equal regardless of symbol")
	}

	token := NewToken(1, testAddr(1), 18, "TKN")
	if nativeA.Equal(token) {
		t.Error("native must not equal a token")
	}

	otherChain := NewToken(2, testAddr(1), 18, "TKN")
	if token.Equal(otherChain) {
		t.Error("same address on different chains must not be equal")
	}
}

func TestCurrencyAmountToExact(t *testing.T) {
	usdc := NewToken(1, testAddr(3), 6, "USDC")
	amount := NewCurrencyAmount(usdc, big.NewInt(1_500_000))
	if got := amount.ToExact().String(); got != "1.5" {
		t.Errorf("ToExact = %q, want 1.5", got)
	}
}
