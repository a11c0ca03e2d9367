package voice

// PremiumVoice is one entry of the curated premium voice catalogue.
type PremiumVoice struct {
	// ID is the remote backend's voice identifier.
	ID string

	// Label is the friendly display name shown in voice pickers.
	Label string

	Quality QualityTier
}

// premiumCatalog is the fixed, ordered set of premium Spanish voices the
// remote backend supports. Hand-curated; order is presentation order.
var premiumCatalog = []PremiumVoice{
	{ID: "es-ES-Elvira-Premium", Label: "Elvira (España, premium)", Quality: QualityPremium},
	{ID: "es-ES-Lucia-Studio", Label: "Lucía (España, estudio)", Quality: QualityStudio},
	{ID: "es-MX-Dalia-Premium", Label: "Dalia (México, premium)", Quality: QualityPremium},
	{ID: "es-MX-Renata-Studio", Label: "Renata (México, estudio)", Quality: QualityStudio},
	{ID: "es-US-Camila-Standard", Label: "Camila (EE. UU., estándar)", Quality: QualityStandard},
}

// PremiumVoices returns the curated premium voice catalogue in
// presentation order. The returned slice is a copy; callers may reorder
// or filter it freely.
func PremiumVoices() []PremiumVoice {
	out := make([]PremiumVoice, len(premiumCatalog))
	copy(out, premiumCatalog)
	return out
}

// LabelFor resolves the friendly label for a premium voice id. Unknown
// ids are returned unchanged so callers always have something to display.
func LabelFor(id string) string {
	for _, v := range premiumCatalog {
		if v.ID == id {
			return v.Label
		}
	}
	return id
}
