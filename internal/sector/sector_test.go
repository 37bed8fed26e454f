package sector

import "testing"

func TestClassify_Cascade(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		in   Input
		want Sector
	}{
		{"api sector beats name keywords", Input{VictimName: "Acme Steel Manufacturing Plant", APISector: "Healthcare"}, Healthcare},
		{"api sector case and whitespace", Input{APISector: "  FINANCIAL SERVICES "}, Finance},
		{"api sector containment", Input{APISector: "Regional Banking Group"}, Finance},
		{"api sector contained in alias", Input{APISector: "logist"}, Transportation},
		{"activity used when api sector empty", Input{Activity: "Hospitality and Tourism"}, Hospitality},
		{"sentinel api sector ignored", Input{VictimName: "Riverside Hospital", APISector: "Unknown"}, Healthcare},
		{"not found api sector ignored", Input{VictimName: "First National Bank", Activity: "Not Found"}, Finance},
		{"tld without keywords", Input{VictimName: "Foo Corp", Website: "clinic.example.health"}, Healthcare},
		{"tld edu", Input{VictimName: "Foo", Website: "https://www.state.edu/about"}, Education},
		{"tld gov second level", Input{VictimName: "Foo", Website: "council.gov.uk"}, Government},
		{"tld before name keywords", Input{VictimName: "Metro Steel", Website: "metro.bank"}, Finance},
		{"edu marker inside longer label", Input{VictimName: "Foo", Website: "foo.education.io"}, Education},
		{"ac marker at label boundary", Input{VictimName: "Foo", Website: "www.ox.ac.uk"}, Education},
		{"ac marker inside label ignored", Input{VictimName: "Foo", Website: "shop.acme.io"}, Other},
		{"org stops tld stage", Input{VictimName: "Foo", Website: "helpers.org"}, Other},
		{"name keyword", Input{VictimName: "Lakeside Dental Group"}, Healthcare},
		{"name keyword order", Input{VictimName: "Texas Tech University"}, Education},
		{"multilingual keyword", Input{VictimName: "Klinikum Nord Krankenhaus"}, Healthcare},
		{"short keyword whole word", Input{VictimName: "Smith Law"}, Legal},
		{"short keyword inside word", Input{VictimName: "Smith Holdings"}, Other},
		{"description fallback", Input{VictimName: "Foo Inc", Description: "A regional trucking and freight company"}, Transportation},
		{"website keyword fallback", Input{VictimName: "Foo Inc", Website: "foo-logistics.de"}, Transportation},
		{"empty input", Input{}, Other},
		{"nothing matches", Input{VictimName: "Foo Inc", Website: "foo.com", Description: "leading provider"}, Other},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if got := Classify(tt.in); got != tt.want {
				t.Errorf("Classify(%+v) = %q, want %q (stage %s)", tt.in, got, tt.want, Explain(tt.in).Stage)
			}
		})
	}
}

func TestExplain_Stages(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		in   Input
		want Stage
	}{
		{"api", Input{APISector: "Healthcare"}, StageAPISector},
		{"activity", Input{Activity: "Education"}, StageActivity},
		{"tld", Input{Website: "x.mil"}, StageTLD},
		{"name", Input{VictimName: "Grand Hotel"}, StageName},
		{"description", Input{Description: "solar installer"}, StageDescription},
		{"website", Input{Website: "acme-pharma.io"}, StageWebsite},
		{"default", Input{VictimName: "Foo"}, StageDefault},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if got := Explain(tt.in).Stage; got != tt.want {
				t.Errorf("Explain(%+v).Stage = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestClassify_Deterministic(t *testing.T) {
	t.Parallel()

	in := Input{VictimName: "Northwind Logistics", Website: "northwind.com", Description: "freight"}
	first := Classify(in)
	for range 100 {
		if got := Classify(in); got != first {
			t.Fatalf("Classify changed result: %q then %q", first, got)
		}
	}
}

func TestShortKeywordsRequireWordBoundary(t *testing.T) {
	t.Parallel()

	for _, sk := range compiledKeywords {
		for _, kw := range sk.keywords {
			if len(kw.word) <= shortKeywordLen && kw.re == nil {
				t.Errorf("short keyword %q for %s has no boundary regexp", kw.word, sk.sector)
			}
			if len(kw.word) > shortKeywordLen && kw.re != nil {
				t.Errorf("long keyword %q for %s compiled as regexp", kw.word, sk.sector)
			}
		}
	}
}

func TestIsSentinel(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in   Sector
		want bool
	}{
		{Other, true},
		{Unknown, true},
		{"other", true},
		{" UNKNOWN ", true},
		{"", true},
		{Finance, false},
		{Healthcare, false},
	}
	for _, tt := range tests {
		if got := IsSentinel(tt.in); got != tt.want {
			t.Errorf("IsSentinel(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestShouldReplace(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		stored   Sector
		computed Sector
		want     bool
	}{
		{"upgrade from other", Other, Finance, true},
		{"upgrade from unknown", Unknown, Healthcare, true},
		{"never downgrade to other", Finance, Other, false},
		{"never downgrade to unknown", Finance, Unknown, false},
		{"same sector", Finance, Finance, false},
		{"specific to different specific", Retail, Hospitality, true},
		{"sentinel to sentinel", Other, Unknown, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if got := ShouldReplace(tt.stored, tt.computed); got != tt.want {
				t.Errorf("ShouldReplace(%q, %q) = %v, want %v", tt.stored, tt.computed, got, tt.want)
			}
		})
	}
}

func TestAllSectorsHaveKeywords(t *testing.T) {
	t.Parallel()

	seen := make(map[Sector]bool)
	for _, sk := range keywords {
		seen[sk.sector] = true
	}
	for _, s := range All {
		if !seen[s] {
			t.Errorf("sector %q has no keyword table", s)
		}
	}
}
