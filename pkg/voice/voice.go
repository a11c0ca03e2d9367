// Package voice defines the voice data model shared by all synthesis
// backends, the hand-curated premium voice catalogue, and the heuristic
// scorer that picks the best locally installed voice for a target
// locale/gender profile.
//
// Voices are enumerated fresh from their owning backend on every query
// and are never mutated or persisted.
package voice

// QualityTier describes the synthesis quality class of a premium voice.
type QualityTier string

const (
	QualityStandard QualityTier = "standard"
	QualityStudio   QualityTier = "studio"
	QualityPremium  QualityTier = "premium"
)

// IsValid reports whether q is a recognised quality tier.
func (q QualityTier) IsValid() bool {
	switch q {
	case QualityStandard, QualityStudio, QualityPremium:
		return true
	}
	return false
}

// Confidence is the coarse certainty of a heuristic classification.
type Confidence string

const (
	ConfidenceHigh   Confidence = "high"
	ConfidenceMedium Confidence = "medium"
	ConfidenceLow    Confidence = "low"
)

// Voice is one synthesis voice exposed by a backend.
type Voice struct {
	// Name is the backend-scoped identity of the voice. For the local
	// speech daemon this is also the display name shown to users.
	Name string

	// Locale is a BCP-47-like tag such as "es-ES" or "es-MX".
	Locale string

	// LocalService reports whether the voice runs fully on-device.
	LocalService bool

	// Default reports whether the backend marks this as its default voice.
	Default bool

	// Quality is set only for premium catalogue voices.
	Quality QualityTier
}

// Classification is the result of scoring one voice against a target
// profile during an audit run. A voice receives at most one
// Classification per profile per run.
type Classification struct {
	Match      bool
	Confidence Confidence

	// Reasoning is a human-readable explanation of why the voice did or
	// did not match.
	Reasoning string
}

// Target describes the profile a scorer run selects against.
type Target struct {
	// LocalePrefix is the required locale prefix, e.g. "es-ES". The bare
	// language code ("es") is derived from it for broad matches.
	LocalePrefix string

	// RequireFemale requests female-gendered voices. Gender is inferred
	// heuristically from the display name; see the scorer rules.
	RequireFemale bool

	// AllowFallback permits a null-voice result when nothing matches.
	// When false, no match yields an error from the caller's perspective.
	AllowFallback bool
}

// Language returns the bare language code of the target locale prefix
// ("es" for "es-ES"). An empty prefix yields "".
func (t Target) Language() string {
	for i := 0; i < len(t.LocalePrefix); i++ {
		if t.LocalePrefix[i] == '-' || t.LocalePrefix[i] == '_' {
			return t.LocalePrefix[:i]
		}
	}
	return t.LocalePrefix
}

// Selection is the outcome of one scorer run. A nil Voice with
// AllowFallback set means "no usable local voice"; callers must fail
// the local-backend attempt in that case.
type Selection struct {
	// Voice is the selected voice, or nil when no rule matched.
	Voice *Voice

	// Name is the display name of the selected voice ("" when Voice is nil).
	Name string

	// Tier is the 1-based rule number that produced the match; lower is
	// better. 0 when no rule matched.
	Tier int

	Confidence Confidence
	Reasoning  string
}
