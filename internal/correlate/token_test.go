package correlate

import (
	"strings"
	"testing"
	"time"
)

func TestExtractToken(t *testing.T) {
	tests := []struct {
		name string
		text string
		want string
	}{
		{
			name: "reference id label",
			text: "Reference ID: req_1714643700123_ab12cd34ef",
			want: "req_1714643700123_ab12cd34ef",
		},
		{
			name: "ref label",
			text: "Ref: req_1714643700123_ab12cd34ef",
			want: "req_1714643700123_ab12cd34ef",
		},
		{
			name: "french label",
			text: "Référence: req_1714643700123_ab12cd34ef",
			want: "req_1714643700123_ab12cd34ef",
		},
		{
			name: "case insensitive label",
			text: "REFERENCE ID req_1714643700123_ab12cd34ef",
			want: "req_1714643700123_ab12cd34ef",
		},
		{
			name: "inside quoted reply text",
			text: "Oui, 450 euros.\n\n> Brand: Renault\n> Reference ID: req_1714643700123_ab12cd34ef\n> Plate: AB-123-CD",
			want: "req_1714643700123_ab12cd34ef",
		},
		{
			name: "unlabeled token ignored",
			text: "our internal id req_1714643700123_ab12cd34ef",
			want: "",
		},
		{
			name: "no token",
			text: "450 euros, disponible lundi",
			want: "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ExtractToken(tt.text)
			if got != tt.want {
				t.Errorf("ExtractToken() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestNewToken_RoundTrip(t *testing.T) {
	now := time.Date(2024, 5, 2, 9, 15, 0, 123e6, time.UTC)
	tok := NewToken(now)

	if !strings.HasPrefix(tok, "req_") {
		t.Fatalf("NewToken() = %q, want req_ prefix", tok)
	}
	at, ok := TokenTime(tok)
	if !ok {
		t.Fatalf("TokenTime(%q) not ok", tok)
	}
	if !at.Equal(now.Truncate(time.Millisecond)) {
		t.Errorf("TokenTime() = %v, want %v", at, now)
	}

	// The token must survive its own extraction path.
	if got := ExtractToken("Reference ID: " + tok); got != tok {
		t.Errorf("ExtractToken round-trip = %q, want %q", got, tok)
	}
}

func TestTokenTime_Malformed(t *testing.T) {
	tests := []string{
		"req_",
		"req_notanumber_abc",
		"req_-5_abc",
		"nope_1714643700123_abc",
		"",
	}
	for _, tok := range tests {
		if _, ok := TokenTime(tok); ok {
			t.Errorf("TokenTime(%q) ok = true, want false", tok)
		}
	}
}
