package lang

import (
	"testing"

	"golang.org/x/text/language"
)

func TestDetect(t *testing.T) {
	cases := []struct {
		name string
		in   string
		want language.Tag
	}{
		{"empty defaults to bangla", "", language.Bengali},
		{"whitespace defaults to bangla", "   ", language.Bengali},
		{"digits only", "01711 000000", language.Bengali},
		{"bengali script", "এসি সার্ভিস কত টাকা?", language.Bengali},
		{"mixed mostly bengali", "AC সার্ভিসের দাম কত", language.Bengali},
		{"english", "How much for AC servicing?", language.English},
		{"english mentioning one bangla word in long sentence", "I want to know about the ki price of repairs today", language.English},
		{"banglish two markers", "AC service koto taka", language.Bengali},
		{"banglish short single marker", "bhai price?", language.Bengali},
		{"english greeting", "hello there", language.English},
		{"english homograph of a bangla word", "My tooth ache", language.English},
		{"english homograph with a real marker", "dat ache bhai", language.Bengali},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := Detect(tc.in); got != tc.want {
				t.Fatalf("Detect(%q) = %v; want %v", tc.in, got, tc.want)
			}
		})
	}
}

func TestCodeAndFromCode(t *testing.T) {
	if Code(language.Bengali) != CodeBN {
		t.Fatalf("Code(Bengali) = %q", Code(language.Bengali))
	}
	if Code(language.MustParse("bn-BD")) != CodeBN {
		t.Fatalf("Code(bn-BD) should be bn")
	}
	if Code(language.English) != CodeEN {
		t.Fatalf("Code(English) = %q", Code(language.English))
	}
	if FromCode("BN") != language.Bengali || FromCode("en") != language.English || FromCode("xx") != language.English {
		t.Fatalf("FromCode mapping mismatch")
	}
}
