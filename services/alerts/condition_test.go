package alerts

import (
	"errors"
	"testing"
)

func TestParseCondition(t *testing.T) {
	tests := []struct {
		name    string
		kind    string
		value   string
		wantErr bool
	}{
		{"price above", "price_above", "185.00", false},
		{"price below", "price_below", "99.5", false},
		{"signed change percent", "price_change_percent", "-5", false},
		{"volume spike", "volume_spike_percent", "200", false},
		{"news mention", "news_mention", "earnings", false},
		{"non-numeric price operand", "price_above", "abc", true},
		{"empty price operand", "price_below", "", true},
		{"empty news keyword", "news_mention", "", true},
		{"whitespace news keyword", "news_mention", "   ", true},
		{"unrecognized kind", "price_between", "10", true},
		{"empty kind", "", "10", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseCondition(tt.kind, tt.value)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("ParseCondition(%q, %q) succeeded, want error", tt.kind, tt.value)
				}
				if !errors.Is(err, ErrInvalidCondition) {
					t.Errorf("error is not ErrInvalidCondition: %v", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("ParseCondition(%q, %q) failed: %v", tt.kind, tt.value, err)
			}
		})
	}
}

func TestConditionEncodeRoundTrip(t *testing.T) {
	tests := []struct {
		kind  string
		value string
	}{
		{"price_above", "185.00"},
		{"price_above", "185.0000"}, // trailing zeros survive
		{"price_change_percent", "-2.50"},
		{"volume_spike_percent", "150"},
		{"news_mention", "Federal Reserve"},
	}

	for _, tt := range tests {
		cond, err := ParseCondition(tt.kind, tt.value)
		if err != nil {
			t.Fatalf("ParseCondition(%q, %q) failed: %v", tt.kind, tt.value, err)
		}
		kind, value := cond.Encode()
		if kind != tt.kind || value != tt.value {
			t.Errorf("Encode() = (%q, %q), want (%q, %q)", kind, value, tt.kind, tt.value)
		}

		// Decoding the encoded pair yields an equivalent condition
		again, err := ParseCondition(kind, value)
		if err != nil {
			t.Fatalf("re-parse failed: %v", err)
		}
		k2, v2 := again.Encode()
		if k2 != kind || v2 != value {
			t.Errorf("second round-trip drifted: (%q, %q) != (%q, %q)", k2, v2, kind, value)
		}
	}
}

func TestConditionDescribe(t *testing.T) {
	cond, err := ParseCondition("news_mention", "merger")
	if err != nil {
		t.Fatal(err)
	}
	if got := cond.Describe(); got != `news mentioning "merger"` {
		t.Errorf("Describe() = %q", got)
	}
}
