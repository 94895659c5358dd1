package contact

import "testing"

func TestNormalizeVariants(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name string
		raw  string
		want string
		ok   bool
	}{
		{name: "canonical passthrough", raw: "5511999999999", want: "5511999999999", ok: true},
		{name: "plus and separators stripped", raw: "+55 (11) 99999-9999", want: "5511999999999", ok: true},
		{name: "11 digits gets country prefix", raw: "21888888888", want: "5521888888888", ok: true},
		{name: "10 digits gets prefix and marker", raw: "1131234567", want: "5511931234567", ok: true},
		{name: "formatted landline-style input", raw: "(11) 3123-4567", want: "5511931234567", ok: true},
		{name: "13 digits wrong country", raw: "5411999999999", ok: false},
		{name: "too short", raw: "999999", ok: false},
		{name: "12 digits", raw: "551199999999", ok: false},
		{name: "14 digits", raw: "55119999999999", ok: false},
		{name: "empty", raw: "", ok: false},
		{name: "letters only", raw: "not-a-number", ok: false},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			got, ok := Normalize(tt.raw)
			if ok != tt.ok {
				t.Fatalf("Normalize(%q) ok = %v, want %v", tt.raw, ok, tt.ok)
			}
			if ok && got != tt.want {
				t.Fatalf("Normalize(%q) = %q, want %q", tt.raw, got, tt.want)
			}
		})
	}
}

func TestNormalizeElevenDigitIdentity(t *testing.T) {
	t.Parallel()
	// For any 11-digit string d, Normalize(d) == "55"+d.
	inputs := []string{"11999999999", "99000000000", "21912345678"}
	for _, d := range inputs {
		got, ok := Normalize(d)
		if !ok || got != "55"+d {
			t.Fatalf("Normalize(%q) = %q, %v; want %q", d, got, ok, "55"+d)
		}
	}
}

func TestNormalizeTenDigitMarkerInjection(t *testing.T) {
	t.Parallel()
	got, ok := Normalize("2187654321")
	if !ok || got != "5521987654321" {
		t.Fatalf("Normalize = %q, %v; want 5521987654321", got, ok)
	}
}
