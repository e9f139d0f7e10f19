package pricing

import "testing"

func TestNormalizeName(t *testing.T) {
	cases := map[string]string{
		"Tama":              "tama",
		"  Durov's Cap  ":   "durov's cap",
		"plush   pepe":      "plush pepe",
		"ＴＡＭＡ":              "tama", // полноширинные символы сводятся NFKC
		"\tSnoop  Dogg\n":   "snoop dogg",
		"":                  "",
		"   ":               "",
		"Jolly Chimp":       "jolly chimp",
		"JOLLY CHIMP":  "jolly chimp", // неразрывный пробел
	}
	for in, want := range cases {
		if got := NormalizeName(in); got != want {
			t.Errorf("NormalizeName(%q) = %q; want %q", in, got, want)
		}
	}
}

func TestMatchName(t *testing.T) {
	catalog := []string{"Tama", "Durov's Cap", "Plush Pepe", "Jolly Chimp"}

	tests := []struct {
		query string
		want  string
		ok    bool
	}{
		{"tama", "Tama", true},
		{"TAMA", "Tama", true},
		{"durov", "Durov's Cap", true},   // префикс
		{"pepe", "Plush Pepe", true},     // вхождение
		{"chimp", "Jolly Chimp", true},
		{"  plush pepe ", "Plush Pepe", true},
		{"unknown gift", "", false},
		{"", "", false},
	}
	for _, tt := range tests {
		got, ok := MatchName(tt.query, catalog)
		if got != tt.want || ok != tt.ok {
			t.Errorf("MatchName(%q) = (%q, %v); want (%q, %v)", tt.query, got, ok, tt.want, tt.ok)
		}
	}
}
