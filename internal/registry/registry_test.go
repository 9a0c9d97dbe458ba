package registry

import (
	"testing"

	"github.com/rotisserie/eris"
)

func TestDefaultRegistryRules(t *testing.T) {
	t.Parallel()

	reg := Default()

	cases := []struct {
		templateType TemplateType
		coBrand      bool
		property     bool
		multiple     bool
		seed         SlugSeed
	}{
		{BioLink, false, false, false, SeedFirstName},
		{PreQual, true, false, true, SeedCoBrandNames},
		{OpenHouse, true, true, true, SeedPropertyAddress},
		{MortgageLoanApp, false, false, false, SeedFirstName},
		{MortgageRateQuote, false, false, false, SeedFirstName},
		{Calculator, false, false, false, SeedFirstName},
		{Valuation, false, false, false, SeedFirstName},
		{PartnerPortal, false, false, true, SeedCompanyName},
	}

	for _, tc := range cases {
		tpl, err := reg.Lookup(tc.templateType)
		if err != nil {
			t.Fatalf("Lookup(%s) returned error: %v", tc.templateType, err)
		}
		if tpl.RequiresCoBrand != tc.coBrand {
			t.Errorf("%s: expected requiresCoBrand=%v", tc.templateType, tc.coBrand)
		}
		if tpl.RequiresPropertyData != tc.property {
			t.Errorf("%s: expected requiresPropertyData=%v", tc.templateType, tc.property)
		}
		if tpl.AllowMultiple != tc.multiple {
			t.Errorf("%s: expected allowMultiple=%v", tc.templateType, tc.multiple)
		}
		if tpl.SlugSeed != tc.seed {
			t.Errorf("%s: expected seed %s, got %s", tc.templateType, tc.seed, tpl.SlugSeed)
		}
	}

	if got := len(reg.All()); got != len(cases) {
		t.Fatalf("expected %d templates, got %d", len(cases), got)
	}
}

func TestLookupUnknownTemplate(t *testing.T) {
	t.Parallel()

	reg := Default()

	_, err := reg.Lookup("brochure")
	if !eris.Is(err, ErrUnknownTemplate) {
		t.Fatalf("expected ErrUnknownTemplate, got %v", err)
	}

	if reg.Valid("brochure") {
		t.Fatalf("expected brochure to be invalid")
	}
}

func TestAllReturnsCopyInDeclarationOrder(t *testing.T) {
	t.Parallel()

	reg := Default()

	all := reg.All()
	if all[0].Type != BioLink || all[len(all)-1].Type != PartnerPortal {
		t.Fatalf("unexpected order: first=%s last=%s", all[0].Type, all[len(all)-1].Type)
	}

	all[0].Type = "mutated"
	if reg.All()[0].Type != BioLink {
		t.Fatalf("expected All to return a copy")
	}
}

func TestParseRejectsInvalidDocuments(t *testing.T) {
	t.Parallel()

	documents := map[string]string{
		"empty":         "templates: []\n",
		"duplicate":     "templates:\n  - {type: a, path_prefix: /a, slug_seed: first_name}\n  - {type: a, path_prefix: /b, slug_seed: first_name}\n",
		"bad seed":      "templates:\n  - {type: a, path_prefix: /a, slug_seed: nickname}\n",
		"bad prefix":    "templates:\n  - {type: a, path_prefix: a, slug_seed: first_name}\n",
		"unknown key":   "templates:\n  - {type: a, path_prefix: /a, slug_seed: first_name, colour: red}\n",
		"property rule": "templates:\n  - {type: a, path_prefix: /a, slug_seed: first_name, requires_property_data: true}\n",
	}

	for name, doc := range documents {
		if _, err := Parse([]byte(doc)); err == nil {
			t.Errorf("%s: expected Parse to fail", name)
		}
	}
}

func TestPathPrefix(t *testing.T) {
	t.Parallel()

	reg := Default()
	if prefix := reg.PathPrefix(OpenHouse); prefix != "/open-house" {
		t.Fatalf("expected /open-house, got %q", prefix)
	}
}
