package types_test

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/xraph/reckon/types"
)

func TestConstructors(t *testing.T) {
	tests := []struct {
		name     string
		money    types.Money
		amount   int64
		currency string
	}{
		{"USD", types.USD(4900), 4900, "usd"},
		{"EUR", types.EUR(19900), 19900, "eur"},
		{"GBP", types.GBP(9900), 9900, "gbp"},
		{"Zero", types.Zero("USD"), 0, "usd"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.money.Amount != tt.amount {
				t.Errorf("expected amount %d, got %d", tt.amount, tt.money.Amount)
			}
			if tt.money.Currency != tt.currency {
				t.Errorf("expected currency %q, got %q", tt.currency, tt.money.Currency)
			}
		})
	}
}

func TestArithmetic(t *testing.T) {
	a := types.USD(1000)
	b := types.USD(250)

	if got := a.Add(b); got.Amount != 1250 {
		t.Errorf("Add: expected 1250, got %d", got.Amount)
	}
	if got := a.Subtract(b); got.Amount != 750 {
		t.Errorf("Subtract: expected 750, got %d", got.Amount)
	}
	if got := a.Negate(); got.Amount != -1000 {
		t.Errorf("Negate: expected -1000, got %d", got.Amount)
	}
	if got := a.Negate().Abs(); got.Amount != 1000 {
		t.Errorf("Abs: expected 1000, got %d", got.Amount)
	}
}

func TestSum(t *testing.T) {
	got := types.Sum(types.USD(100), types.USD(200), types.USD(300))
	if got.Amount != 600 {
		t.Errorf("expected 600, got %d", got.Amount)
	}

	empty := types.Sum()
	if !empty.IsZero() {
		t.Errorf("expected zero value for empty sum, got %v", empty)
	}
}

func TestCurrencyMismatchPanics(t *testing.T) {
	defer func() {
		if r := recover(); r == nil {
			t.Error("expected panic on currency mismatch")
		}
	}()
	_ = types.USD(100).Add(types.EUR(100))
}

func TestComparisons(t *testing.T) {
	if !types.USD(100).IsPositive() {
		t.Error("USD(100) should be positive")
	}
	if !types.USD(-100).IsNegative() {
		t.Error("USD(-100) should be negative")
	}
	if !types.Zero("usd").IsZero() {
		t.Error("Zero should be zero")
	}
	if !types.USD(100).Equal(types.USD(100)) {
		t.Error("equal values should compare equal")
	}
	if types.USD(100).Equal(types.EUR(100)) {
		t.Error("different currencies should not compare equal")
	}
}

func TestFormatting(t *testing.T) {
	tests := []struct {
		money types.Money
		major string
		full  string
	}{
		{types.USD(4900), "49.00", "$49.00"},
		{types.USD(5), "0.05", "$0.05"},
		{types.USD(-1250), "-12.50", "$-12.50"},
		{types.EUR(19900), "199.00", "€199.00"},
		{types.GBP(9900), "99.00", "£99.00"},
	}

	for _, tt := range tests {
		t.Run(tt.full, func(t *testing.T) {
			if got := tt.money.FormatMajor(); got != tt.major {
				t.Errorf("FormatMajor: expected %q, got %q", tt.major, got)
			}
			if got := tt.money.String(); got != tt.full {
				t.Errorf("String: expected %q, got %q", tt.full, got)
			}
		})
	}
}

func TestMarshalJSON(t *testing.T) {
	data, err := json.Marshal(types.USD(4900))
	if err != nil {
		t.Fatalf("marshal failed: %v", err)
	}
	s := string(data)
	if !strings.Contains(s, `"amount":4900`) {
		t.Errorf("expected amount in JSON, got %s", s)
	}
	if !strings.Contains(s, `"currency":"usd"`) {
		t.Errorf("expected currency in JSON, got %s", s)
	}
	if !strings.Contains(s, `"display":"$49.00"`) {
		t.Errorf("expected display in JSON, got %s", s)
	}
}
