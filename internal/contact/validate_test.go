package contact

import (
	"strings"
	"testing"
)

func TestIsValid(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name string
		num  string
		want bool
	}{
		{name: "valid sp mobile", num: "5511999999999", want: true},
		{name: "valid rj mobile", num: "5521988888888", want: true},
		{name: "valid area 14", num: "5514912345678", want: true},
		{name: "area 10 not assigned", num: "5510999999999", want: false},
		{name: "area 20 not assigned", num: "5520999999999", want: false},
		{name: "area 23 not assigned", num: "5523999999999", want: false},
		{name: "missing mobile marker", num: "5511812345678", want: false},
		{name: "wrong country", num: "5411999999999", want: false},
		{name: "too short", num: "551199999999", want: false},
		{name: "too long", num: "55119999999999", want: false},
		{name: "non-digit content", num: "55119x9999999", want: false},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			if got := IsValid(tt.num); got != tt.want {
				t.Fatalf("IsValid(%q) = %v, want %v", tt.num, got, tt.want)
			}
		})
	}
}

func TestIsValidAllowListIsExhaustive(t *testing.T) {
	t.Parallel()
	// Every code in [11,99] outside the allow-list must be rejected,
	// every code inside must be accepted.
	for code := 11; code <= 99; code++ {
		num := "55" + twoDigits(code) + "912345678"
		_, allowed := areaCodes[code]
		if got := IsValid(num); got != allowed {
			t.Fatalf("IsValid(%s) = %v, allow-list says %v (area %d)", num, got, allowed, code)
		}
	}
	if len(areaCodes) != 67 {
		t.Fatalf("allow-list has %d entries, want 67", len(areaCodes))
	}
}

func twoDigits(n int) string {
	s := "0123456789"
	return string(s[n/10]) + string(s[n%10])
}

func TestPartitionEndToEnd(t *testing.T) {
	t.Parallel()
	rows := []Row{
		{Number: "+5511999999999", Rest: map[string]string{"name": "Ana"}},
		{Number: "5521988888888"},
		{Number: "1131234567"},
		{Number: "999"},           // too short
		{Number: "5510999999999"}, // bad area code
	}
	valid, invalid := Partition(rows)

	wantNumbers := []string{"5511999999999", "5521988888888", "5511931234567"}
	if invalid != 2 {
		t.Fatalf("invalid = %d, want 2", invalid)
	}
	if len(valid) != len(wantNumbers) {
		t.Fatalf("valid = %d contacts, want %d", len(valid), len(wantNumbers))
	}
	for i, want := range wantNumbers {
		if valid[i].Number != want {
			t.Fatalf("valid[%d].Number = %s, want %s (order must be preserved)", i, valid[i].Number, want)
		}
	}
	if valid[0].Original != "+5511999999999" {
		t.Fatalf("Original not preserved: %s", valid[0].Original)
	}
	if valid[0].Row["name"] != "Ana" {
		t.Fatalf("Row passthrough lost: %+v", valid[0].Row)
	}
}

func TestReadCSV(t *testing.T) {
	t.Parallel()
	src := strings.Join([]string{
		"Name,NUMBER,City",
		"Ana,+55 11 99999-9999,Sao Paulo",
		"Bia,21888888888,Rio",
		"short-row",
	}, "\n")

	rows, err := ReadCSV(strings.NewReader(src))
	if err != nil {
		t.Fatalf("ReadCSV error: %v", err)
	}
	if len(rows) != 3 {
		t.Fatalf("rows = %d, want 3", len(rows))
	}
	if rows[0].Number != "+55 11 99999-9999" {
		t.Fatalf("rows[0].Number = %q", rows[0].Number)
	}
	if rows[0].Rest["Name"] != "Ana" || rows[0].Rest["City"] != "Sao Paulo" {
		t.Fatalf("rows[0].Rest = %+v", rows[0].Rest)
	}
	// Case-insensitive header match means the ragged third record still lands
	// as a (countable) empty row rather than an error.
	if rows[2].Number != "" {
		t.Fatalf("rows[2].Number = %q, want empty", rows[2].Number)
	}
}

func TestReadCSVNoNumberColumn(t *testing.T) {
	t.Parallel()
	_, err := ReadCSV(strings.NewReader("name,city\nAna,SP\n"))
	if err != ErrNoNumberColumn {
		t.Fatalf("err = %v, want ErrNoNumberColumn", err)
	}
}
