package price

import "testing"

func TestParse(t *testing.T) {
	tests := []struct {
		in     string
		want   float64
		wantOK bool
	}{
		{in: "R$ 150", want: 150, wantOK: true},
		{in: "R$ 150,00", want: 150, wantOK: true},
		{in: "R$ 1.234,56", want: 1234.56, wantOK: true},
		{in: "R$ 1.234", want: 1234, wantOK: true},
		{in: "R$ 1.234.567", want: 1234567, wantOK: true},
		{in: "1,234.56", want: 1234.56, wantOK: true},
		{in: "99.9", want: 99.9, wantOK: true},
		{in: "R$ 89,90", want: 89.9, wantOK: true},
		{in: "  R$ 0,50 ", want: 0.5, wantOK: true},
		{in: "", wantOK: false},
		{in: "Consultar", wantOK: false},
		{in: "R$ ,", wantOK: false},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, ok := Parse(tt.in)
			if ok != tt.wantOK {
				t.Fatalf("Parse(%q) ok = %v, want %v", tt.in, ok, tt.wantOK)
			}
			if ok && got != tt.want {
				t.Errorf("Parse(%q) = %v, want %v", tt.in, got, tt.want)
			}
		})
	}
}

func TestFormat(t *testing.T) {
	tests := []struct {
		in   float64
		want string
	}{
		{in: 0.5, want: "R$ 0,50"},
		{in: 150, want: "R$ 150,00"},
		{in: 1234.56, want: "R$ 1.234,56"},
		{in: 1234567, want: "R$ 1.234.567,00"},
	}

	for _, tt := range tests {
		if got := Format(tt.in); got != tt.want {
			t.Errorf("Format(%v) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
