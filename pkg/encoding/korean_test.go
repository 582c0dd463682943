package encoding

import "testing"

func TestEUCKRRoundTrip(t *testing.T) {
	tests := []string{"ascii.rsm", "몸통", "data\\model\\프론테라\\분수.rsm"}
	for _, s := range tests {
		t.Run(s, func(t *testing.T) {
			encoded := UTF8ToEUCKR(s)
			if got := EUCKRToUTF8(encoded); got != s {
				t.Errorf("round trip = %q, want %q", got, s)
			}
		})
	}
}

func TestFixedString(t *testing.T) {
	field := UTF8ToFixedString("팔", 40)
	if len(field) != 40 {
		t.Fatalf("len = %d, want 40", len(field))
	}
	// Hangul syllables use lead bytes B0-C8 and take two bytes.
	if field[0] < 0xB0 || field[0] > 0xC8 || field[2] != 0 {
		t.Errorf("EUC-KR bytes = % X", field[:3])
	}
	if got := FixedStringToUTF8(field); got != "팔" {
		t.Errorf("FixedStringToUTF8 = %q, want %q", got, "팔")
	}

	if got := FixedStringToUTF8([]byte("root\x00garbage")); got != "root" {
		t.Errorf("null termination: got %q", got)
	}
}

func TestNormalizeGRFPath(t *testing.T) {
	if got := NormalizeGRFPath(`Data\Model\Fountain.RSM`); got != "data/model/fountain.rsm" {
		t.Errorf("NormalizeGRFPath = %q", got)
	}
}
