package voice

import "testing"

func TestPremiumVoices(t *testing.T) {
	vs := PremiumVoices()
	if len(vs) != 5 {
		t.Fatalf("got %d voices, want 5", len(vs))
	}
	seen := map[string]bool{}
	tiers := map[QualityTier]bool{}
	for _, v := range vs {
		if v.ID == "" || v.Label == "" {
			t.Fatalf("catalogue entry with empty id or label: %+v", v)
		}
		if seen[v.ID] {
			t.Fatalf("duplicate catalogue id %q", v.ID)
		}
		seen[v.ID] = true
		if !v.Quality.IsValid() {
			t.Fatalf("invalid quality tier %q for %q", v.Quality, v.ID)
		}
		tiers[v.Quality] = true
	}
	for _, q := range []QualityTier{QualityPremium, QualityStudio, QualityStandard} {
		if !tiers[q] {
			t.Fatalf("catalogue is missing a %q tier voice", q)
		}
	}
}

func TestPremiumVoices_ReturnsCopy(t *testing.T) {
	a := PremiumVoices()
	a[0].Label = "mutated"
	if b := PremiumVoices(); b[0].Label == "mutated" {
		t.Fatal("PremiumVoices returned shared backing storage")
	}
}

func TestLabelFor(t *testing.T) {
	if got := LabelFor("es-ES-Lucia-Studio"); got != "Lucía (España, estudio)" {
		t.Fatalf("LabelFor = %q", got)
	}
	if got := LabelFor("unknown-id"); got != "unknown-id" {
		t.Fatalf("LabelFor(unknown) = %q, want id passthrough", got)
	}
}
