package correlate

import "testing"

func TestNormalizeEmail(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{name: "bare address", in: "contact@dupont.fr", want: "contact@dupont.fr"},
		{name: "uppercase folded", in: "Contact@Dupont.FR", want: "contact@dupont.fr"},
		{name: "display name form", in: "Garage Dupont <Contact@Dupont.FR>", want: "contact@dupont.fr"},
		{name: "quoted display name", in: `"Dupont, Garage" <atelier@dupont.fr>`, want: "atelier@dupont.fr"},
		{name: "surrounding whitespace", in: "  contact@dupont.fr  ", want: "contact@dupont.fr"},
		{name: "malformed but recoverable", in: "Garage Dupont <<contact@dupont.fr>", want: "contact@dupont.fr"},
		{name: "empty", in: "", want: ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := NormalizeEmail(tt.in)
			if got != tt.want {
				t.Errorf("NormalizeEmail(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}
