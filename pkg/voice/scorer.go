package voice

import (
	"fmt"
	"strings"

	"github.com/antzucaro/matchr"
)

// The indicator tables below are deliberately plain package data rather
// than logic: extending the scorer to a new locale means adding entries
// here, not touching the rule sequence in SelectBest.

// FemaleGivenNames maps a bare language code to curated female given
// names commonly used for synthesis voices in that language. A name
// appearing in a voice's display name is the strongest gender signal
// available (rule 1).
var FemaleGivenNames = map[string][]string{
	"es": {
		"monica", "paulina", "lucia", "elvira", "carmen", "marisol",
		"esperanza", "angelica", "soledad", "isabela", "ximena",
		"camila", "dalia", "renata", "penelope", "juana",
	},
}

// GenderTokens are generic tokens that signal a female voice when found
// in a display name (rule 2).
var GenderTokens = []string{"female", "mujer", "femenina", "woman"}

// QualityTokens mark enhanced-quality voice builds (rule 3).
var QualityTokens = []string{"premium", "natural", "enhanced", "neural"}

// LanguageEnglishNames maps bare language codes to the language's
// English name, used as a last-resort display-name match (rule 6).
var LanguageEnglishNames = map[string]string{
	"es": "spanish",
	"en": "english",
	"pt": "portuguese",
	"fr": "french",
}

// jaroWinklerThreshold is the minimum similarity for a fuzzy given-name
// match. Chosen so that accent and transliteration variants ("Monika",
// "Mónica") match while unrelated names do not.
const jaroWinklerThreshold = 0.93

// SelectBest ranks voices against target and returns the best match.
//
// Rules are tried in order and the first hit wins; ties within a rule
// are broken by enumeration order of the backend:
//
//  1. A curated female given name for the target language appears in
//     the display name (high confidence).
//  2. A generic gender token appears in the display name (medium).
//  3. A quality token appears and the locale matches the target prefix
//     (medium).
//  4. The locale starts with the exact target prefix (medium).
//  5. The locale starts with the bare language code (low).
//  6. The display name contains the language's English name (low).
//
// An empty voice list (e.g. queried before the backend finished its
// asynchronous voice load) behaves like a list with no matches; callers
// are responsible for retrying after a bounded wait.
//
// When no rule matches and target.AllowFallback is set, SelectBest
// returns a Selection with a nil Voice and low confidence. Callers must
// treat a nil voice as "no usable local voice".
func SelectBest(voices []Voice, target Target) Selection {
	lang := target.Language()

	type rule struct {
		tier       int
		confidence Confidence
		match      func(v Voice) (bool, string)
	}

	rules := []rule{
		{1, ConfidenceHigh, func(v Voice) (bool, string) {
			name, ok := matchGivenName(v.Name, lang)
			if !ok {
				return false, ""
			}
			return true, fmt.Sprintf("display name contains the female given name %q", name)
		}},
		{2, ConfidenceMedium, func(v Voice) (bool, string) {
			tok, ok := containsAnyToken(v.Name, GenderTokens)
			if !ok {
				return false, ""
			}
			return true, fmt.Sprintf("display name contains the gender token %q", tok)
		}},
		{3, ConfidenceMedium, func(v Voice) (bool, string) {
			if !strings.HasPrefix(v.Locale, target.LocalePrefix) {
				return false, ""
			}
			tok, ok := containsAnyToken(v.Name, QualityTokens)
			if !ok {
				return false, ""
			}
			return true, fmt.Sprintf("locale %q matches target and name carries quality token %q", v.Locale, tok)
		}},
		{4, ConfidenceMedium, func(v Voice) (bool, string) {
			if !strings.HasPrefix(v.Locale, target.LocalePrefix) {
				return false, ""
			}
			return true, fmt.Sprintf("locale %q starts with target prefix %q", v.Locale, target.LocalePrefix)
		}},
		{5, ConfidenceLow, func(v Voice) (bool, string) {
			if lang == "" || !strings.HasPrefix(strings.ToLower(v.Locale), lang) {
				return false, ""
			}
			return true, fmt.Sprintf("locale %q belongs to the %q language family", v.Locale, lang)
		}},
		{6, ConfidenceLow, func(v Voice) (bool, string) {
			english := LanguageEnglishNames[lang]
			if english == "" || !strings.Contains(foldName(v.Name), english) {
				return false, ""
			}
			return true, fmt.Sprintf("display name mentions %q", english)
		}},
	}

	for _, r := range rules {
		// Gender rules only apply when the target asks for one; without the
		// requirement they would skew selection toward female voices.
		if r.tier <= 2 && !target.RequireFemale {
			continue
		}
		for i := range voices {
			if ok, why := r.match(voices[i]); ok {
				return Selection{
					Voice:      &voices[i],
					Name:       voices[i].Name,
					Tier:       r.tier,
					Confidence: r.confidence,
					Reasoning:  why,
				}
			}
		}
	}

	if target.AllowFallback {
		return Selection{
			Confidence: ConfidenceLow,
			Reasoning: fmt.Sprintf("no voice matched locale %q (checked %d voices); proceeding without a local voice",
				target.LocalePrefix, len(voices)),
		}
	}
	return Selection{
		Reasoning: fmt.Sprintf("no voice matched locale %q and fallback is not permitted", target.LocalePrefix),
	}
}

// Classify scores a single voice for gender against the target language
// using scorer rules 1-2, degrading to a low-confidence locale-only
// result. Used by the audit path, which classifies every voice rather
// than selecting one.
func Classify(v Voice, lang string) Classification {
	if name, ok := matchGivenName(v.Name, lang); ok {
		return Classification{
			Match:      true,
			Confidence: ConfidenceHigh,
			Reasoning:  fmt.Sprintf("display name contains the female given name %q", name),
		}
	}
	if tok, ok := containsAnyToken(v.Name, GenderTokens); ok {
		return Classification{
			Match:      true,
			Confidence: ConfidenceMedium,
			Reasoning:  fmt.Sprintf("display name contains the gender token %q", tok),
		}
	}
	return Classification{
		Confidence: ConfidenceLow,
		Reasoning:  "no gender signal in display name; locale-only classification",
	}
}

// matchGivenName reports whether any curated female given name for lang
// appears in name, either as a folded substring or as a fuzzy
// (Jaro-Winkler) token match.
func matchGivenName(name, lang string) (string, bool) {
	folded := foldName(name)
	tokens := strings.FieldsFunc(folded, func(r rune) bool {
		return r == ' ' || r == '-' || r == '_' || r == '(' || r == ')' || r == ','
	})
	for _, given := range FemaleGivenNames[lang] {
		if strings.Contains(folded, given) {
			return given, true
		}
		for _, tok := range tokens {
			if matchr.JaroWinkler(tok, given, false) >= jaroWinklerThreshold {
				return given, true
			}
		}
	}
	return "", false
}

// containsAnyToken reports whether the folded name contains any of the
// given indicator tokens, returning the first one found.
func containsAnyToken(name string, tokens []string) (string, bool) {
	folded := foldName(name)
	for _, tok := range tokens {
		if strings.Contains(folded, tok) {
			return tok, true
		}
	}
	return "", false
}

// accentFold maps Latin accented runes to their base letter so that
// "Mónica" and "Monica" compare equal.
var accentFold = map[rune]rune{
	'á': 'a', 'à': 'a', 'ä': 'a', 'â': 'a', 'ã': 'a',
	'é': 'e', 'è': 'e', 'ë': 'e', 'ê': 'e',
	'í': 'i', 'ì': 'i', 'ï': 'i', 'î': 'i',
	'ó': 'o', 'ò': 'o', 'ö': 'o', 'ô': 'o', 'õ': 'o',
	'ú': 'u', 'ù': 'u', 'ü': 'u', 'û': 'u',
	'ñ': 'n', 'ç': 'c',
}

// foldName lowercases name and strips Latin accents.
func foldName(name string) string {
	return strings.Map(func(r rune) rune {
		if f, ok := accentFold[r]; ok {
			return f
		}
		return r
	}, strings.ToLower(name))
}
