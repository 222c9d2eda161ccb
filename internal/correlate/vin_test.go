package correlate

import "testing"

func TestExtractVIN(t *testing.T) {
	tests := []struct {
		name    string
		subject string
		body    string
		want    string
	}{
		{
			name:    "vin in subject",
			subject: "Re: Repair Quote Request - VIN: WVWZZZ1KZAW123456",
			body:    "We can do it for 500 euros",
			want:    "WVWZZZ1KZAW123456",
		},
		{
			name:    "bare vin in body",
			subject: "Devis carrosserie",
			body:    "Concernant le véhicule VF1RFB00861234567, comptez 800€.",
			want:    "VF1RFB00861234567",
		},
		{
			name:    "lowercase normalized to uppercase",
			subject: "re: devis",
			body:    "vin: wvwzzz1kzaw123456",
			want:    "WVWZZZ1KZAW123456",
		},
		{
			name:    "subject wins over body",
			subject: "VIN WVWZZZ1KZAW123456",
			body:    "autre véhicule VF1RFB00861234567",
			want:    "WVWZZZ1KZAW123456",
		},
		{
			name:    "excluded letters break the match",
			subject: "",
			body:    "WVWZZZ1KZAWI23456 looks like a VIN but contains I",
			want:    "",
		},
		{
			name:    "too short",
			subject: "",
			body:    "WVWZZZ1KZAW12345",
			want:    "",
		},
		{
			name:    "embedded in longer run not matched",
			subject: "",
			body:    "XWVWZZZ1KZAW123456789",
			want:    "",
		},
		{
			name:    "no vin at all",
			subject: "Re: votre demande",
			body:    "Pouvez-vous préciser le modèle ?",
			want:    "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ExtractVIN(tt.subject, tt.body)
			if got != tt.want {
				t.Errorf("ExtractVIN() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestExtractVIN_Deterministic(t *testing.T) {
	subject := "Re: Repair Quote Request - VIN: WVWZZZ1KZAW123456"
	body := "500 euros\n> VIN: WVWZZZ1KZAW123456"
	first := ExtractVIN(subject, body)
	second := ExtractVIN(subject, body)
	if first != second {
		t.Errorf("ExtractVIN not deterministic: %q then %q", first, second)
	}
}

func TestIsVIN(t *testing.T) {
	if !IsVIN("WVWZZZ1KZAW123456") {
		t.Error("IsVIN(WVWZZZ1KZAW123456) = false, want true")
	}
	if IsVIN("WVWZZZ1KZAW12345") {
		t.Error("IsVIN accepted a 16-character string")
	}
	if IsVIN("WVWZZZ1KZAWI23456") {
		t.Error("IsVIN accepted a VIN containing I")
	}
}
