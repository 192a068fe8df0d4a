// Package lang classifies inbound Messenger text as Bangla or English.
//
// Two signals are used:
//   - script: the share of Bengali-script letters among all letters
//   - romanized Bangla ("Banglish"): common transliterated words typed with
//     a Latin keyboard, e.g. "apnar service koto taka"
//
// Anything that is not Bangla by either signal is treated as English. The
// classifier never errors and is safe for concurrent use.
package lang

import (
	"regexp"
	"strings"
	"unicode"

	"golang.org/x/text/language"
)

// BengaliShare is the minimum fraction of Bengali-script letters for a text
// to be classified as Bangla by script.
const BengaliShare = 0.30

// Codes returned by Code.
const (
	CodeBN = "bn"
	CodeEN = "en"
)

var latinWordRE = regexp.MustCompile(`\p{Latin}+`)

// banglish holds lowercase transliterations that rarely occur in English.
// Spellings that are also English words ("ache", "ase") are left out.
var banglish = map[string]struct{}{
	"ami": {}, "amar": {}, "amake": {}, "apni": {}, "apnar": {}, "apnader": {},
	"tumi": {}, "tomar": {}, "kemon": {}, "achen": {},
	"asen": {}, "koto": {}, "taka": {}, "lagbe": {}, "chai": {}, "korte": {},
	"kori": {}, "koren": {}, "korben": {}, "bhai": {}, "vai": {}, "apu": {},
	"hobe": {}, "hoy": {}, "thik": {}, "dorkar": {}, "kivabe": {}, "kothay": {},
	"kokhon": {}, "somoy": {}, "ajke": {}, "kalke": {}, "valo": {}, "bhalo": {},
	"khub": {}, "nai": {}, "nei": {}, "ki": {}, "keno": {}, "ekhon": {},
	"salam": {}, "assalamualaikum": {}, "dhonnobad": {}, "dhonyobad": {},
	"jante": {}, "bolen": {}, "bolun": {}, "shathe": {}, "sathe": {}, "kaj": {},
	"mistri": {}, "thikana": {}, "basha": {}, "bashay": {},
}

// Detect returns language.Bengali or language.English for text. Empty or
// letterless input defaults to Bengali, the business's primary audience.
func Detect(text string) language.Tag {
	text = strings.TrimSpace(text)
	if text == "" {
		return language.Bengali
	}

	var letters, bengali int
	for _, r := range text {
		if unicode.IsDigit(r) {
			continue
		}
		switch {
		case unicode.Is(unicode.Bengali, r):
			bengali++
			letters++
		case unicode.IsLetter(r):
			letters++
		}
	}
	if letters == 0 {
		return language.Bengali
	}
	if float64(bengali)/float64(letters) >= BengaliShare {
		return language.Bengali
	}
	if isBanglish(text) {
		return language.Bengali
	}
	return language.English
}

// isBanglish reports whether Latin-script text reads as romanized Bangla:
// two or more marker words, or a single marker in a message of at most
// three words.
func isBanglish(text string) bool {
	words := latinWordRE.FindAllString(strings.ToLower(text), -1)
	if len(words) == 0 {
		return false
	}
	hits := 0
	for _, w := range words {
		if _, ok := banglish[w]; ok {
			hits++
		}
	}
	return hits >= 2 || (hits == 1 && len(words) <= 3)
}

// Code maps a tag to the short code stored on leads and messages.
func Code(tag language.Tag) string {
	if base, _ := tag.Base(); base.String() == CodeBN {
		return CodeBN
	}
	return CodeEN
}

// FromCode is the inverse of Code. Unknown codes map to English.
func FromCode(code string) language.Tag {
	if strings.EqualFold(strings.TrimSpace(code), CodeBN) {
		return language.Bengali
	}
	return language.English
}
