package utils

import (
	"testing"

	"github.com/shopspring/decimal"
)

func d(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func TestProportionalValueUntouchedLotIsExact(t *testing.T) {
	cases := []struct {
		totalCost string
		initial   string
	}{
		{"50000", "30"},
		{"1000", "3"},
		{"100.01", "7"},
		{"0.01", "3"},
		{"33333.33", "0.3333"},
		{"2400", "20"},
	}
	for _, c := range cases {
		got := ProportionalValue(d(c.totalCost), d(c.initial), d(c.initial))
		if !got.Equal(d(c.totalCost)) {
			t.Fatalf("ProportionalValue(%s, %s, %s) = %s, want exactly %s", c.totalCost, c.initial, c.initial, got, c.totalCost)
		}
	}
}

func TestProportionalValueLotA(t *testing.T) {
	got := ProportionalValue(d("50000"), d("30"), d("30"))
	if got.StringFixed(2) != "50000.00" {
		t.Fatalf("expected 50000.00, got %s", got.StringFixed(2))
	}
}

func TestProportionalValuePartial(t *testing.T) {
	cases := []struct {
		totalCost, remaining, initial, want string
	}{
		{"50000", "10", "30", "16666.67"},
		{"2400", "15", "20", "1800"},
		{"1000", "0", "10", "0"},
		{"100", "1", "3", "33.33"},
		{"100", "2", "3", "66.67"},
	}
	for _, c := range cases {
		got := ProportionalValue(d(c.totalCost), d(c.remaining), d(c.initial))
		if !got.Equal(d(c.want)) {
			t.Fatalf("ProportionalValue(%s, %s, %s) = %s, want %s", c.totalCost, c.remaining, c.initial, got, c.want)
		}
	}
}

func TestProportionalValueZeroInitial(t *testing.T) {
	if got := ProportionalValue(d("10"), d("0"), d("0")); !got.IsZero() {
		t.Fatalf("expected 0 for zero initial quantity, got %s", got)
	}
}

func TestWeightedAverageCost(t *testing.T) {
	cases := []struct {
		value, qty, fallback, want string
	}{
		{"3400", "30", "99", "113.3333"},
		{"1600", "20", "0", "80"},
		{"10", "3", "0", "3.3333"},
		{"20", "3", "0", "6.6667"},
		{"100", "0", "12.5", "12.5"},
		{"100", "-1", "7", "7"},
	}
	for _, c := range cases {
		got := WeightedAverageCost(d(c.value), d(c.qty), d(c.fallback))
		if !got.Equal(d(c.want)) {
			t.Fatalf("WeightedAverageCost(%s, %s, %s) = %s, want %s", c.value, c.qty, c.fallback, got, c.want)
		}
	}
}

func TestMargin(t *testing.T) {
	cost := d("35")
	abs, pct := Margin(d("100"), &cost)
	if !abs.Equal(d("65")) || !pct.Equal(d("65")) {
		t.Fatalf("expected 65 / 65%%, got %s / %s", abs, pct)
	}

	abs, pct = Margin(d("30"), nil)
	if !abs.Equal(d("30")) || !pct.Equal(d("100")) {
		t.Fatalf("nil cost: expected 30 / 100%%, got %s / %s", abs, pct)
	}

	cost = d("10")
	abs, pct = Margin(decimal.Zero, &cost)
	if !abs.Equal(d("-10")) || !pct.IsZero() {
		t.Fatalf("zero price: expected -10 / 0%%, got %s / %s", abs, pct)
	}

	cost = d("2")
	_, pct = Margin(d("3"), &cost)
	if !pct.Equal(d("33.33")) {
		t.Fatalf("expected 33.33%%, got %s", pct)
	}
}

func TestRoundMoneyHalfUp(t *testing.T) {
	cases := map[string]string{
		"0.005":  "0.01",
		"1.2349": "1.23",
		"2.675":  "2.68",
		"10":     "10",
	}
	for in, want := range cases {
		if got := RoundMoney(d(in)); !got.Equal(d(want)) {
			t.Fatalf("RoundMoney(%s) = %s, want %s", in, got, want)
		}
	}
}
