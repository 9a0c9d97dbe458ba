package registry

import (
	"bytes"
	_ "embed"
	"strings"

	"github.com/rotisserie/eris"
	"gopkg.in/yaml.v3"
)

// TemplateType identifies one of the fixed landing page templates.
type TemplateType string

const (
	BioLink           TemplateType = "biolink"
	PreQual           TemplateType = "prequal"
	OpenHouse         TemplateType = "openhouse"
	MortgageLoanApp   TemplateType = "mortgage_loan_app"
	MortgageRateQuote TemplateType = "mortgage_rate_quote"
	Calculator        TemplateType = "calculator"
	Valuation         TemplateType = "valuation"
	PartnerPortal     TemplateType = "partner_portal"
)

// SlugSeed names the request field a template derives its slug from.
type SlugSeed string

const (
	SeedFirstName       SlugSeed = "first_name"
	SeedCoBrandNames    SlugSeed = "co_brand_names"
	SeedCompanyName     SlugSeed = "company_name"
	SeedPropertyAddress SlugSeed = "property_address"
)

// ErrUnknownTemplate is returned when a template type is not registered.
var ErrUnknownTemplate = eris.New("unknown template type")

// Template describes the generation rules of a single template type.
type Template struct {
	Type                 TemplateType `yaml:"type"`
	Label                string       `yaml:"label"`
	PathPrefix           string       `yaml:"path_prefix"`
	SlugSeed             SlugSeed     `yaml:"slug_seed"`
	RequiredParams       []string     `yaml:"required_params"`
	RequiresCoBrand      bool         `yaml:"requires_co_brand"`
	RequiresPropertyData bool         `yaml:"requires_property_data"`
	AllowMultiple        bool         `yaml:"allow_multiple"`
}

// IsPortal reports whether the template is the partner company portal.
func (t Template) IsPortal() bool {
	return t.Type == PartnerPortal
}

// Registry is an immutable lookup table of templates.
type Registry struct {
	ordered []Template
	byType  map[TemplateType]Template
}

//go:embed templates.yaml
var builtinTemplates []byte

type document struct {
	Templates []Template `yaml:"templates"`
}

// Default returns the registry built from the embedded template table.
func Default() *Registry {
	reg, err := Parse(builtinTemplates)
	if err != nil {
		panic(eris.Wrap(err, "parsing embedded template registry"))
	}
	return reg
}

// Parse builds a registry from a YAML template document.
func Parse(raw []byte) (*Registry, error) {
	var doc document
	decoder := yaml.NewDecoder(bytes.NewReader(raw))
	decoder.KnownFields(true)
	if err := decoder.Decode(&doc); err != nil {
		return nil, eris.Wrap(err, "decoding template document")
	}

	if len(doc.Templates) == 0 {
		return nil, eris.New("template document is empty")
	}

	reg := &Registry{byType: make(map[TemplateType]Template, len(doc.Templates))}
	for _, tpl := range doc.Templates {
		tpl.Type = TemplateType(strings.TrimSpace(string(tpl.Type)))
		if tpl.Type == "" {
			return nil, eris.New("template type is required")
		}
		if _, exists := reg.byType[tpl.Type]; exists {
			return nil, eris.Errorf("template %s is declared twice", tpl.Type)
		}
		if !strings.HasPrefix(tpl.PathPrefix, "/") {
			return nil, eris.Errorf("template %s path prefix must start with /", tpl.Type)
		}
		switch tpl.SlugSeed {
		case SeedFirstName, SeedCoBrandNames, SeedCompanyName, SeedPropertyAddress:
		default:
			return nil, eris.Errorf("template %s has unknown slug seed %q", tpl.Type, tpl.SlugSeed)
		}
		if tpl.RequiresPropertyData && !tpl.RequiresCoBrand {
			return nil, eris.Errorf("template %s requires property data without a co-brand partner", tpl.Type)
		}

		reg.ordered = append(reg.ordered, tpl)
		reg.byType[tpl.Type] = tpl
	}

	return reg, nil
}

// Lookup returns the template registered for the given type.
func (r *Registry) Lookup(templateType TemplateType) (Template, error) {
	tpl, ok := r.byType[templateType]
	if !ok {
		return Template{}, eris.Wrapf(ErrUnknownTemplate, "template %q", string(templateType))
	}
	return tpl, nil
}

// Valid reports whether the template type is registered.
func (r *Registry) Valid(templateType TemplateType) bool {
	_, ok := r.byType[templateType]
	return ok
}

// All returns the templates in declaration order.
func (r *Registry) All() []Template {
	out := make([]Template, len(r.ordered))
	copy(out, r.ordered)
	return out
}

// PathPrefix returns the public URL prefix for a template.
func (r *Registry) PathPrefix(templateType TemplateType) string {
	if tpl, ok := r.byType[templateType]; ok {
		return tpl.PathPrefix
	}
	return "/p/" + string(templateType)
}
