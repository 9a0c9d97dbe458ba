package branding

import (
	"errors"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/rotisserie/eris"
)

// ButtonStyle selects how call-to-action buttons are drawn.
type ButtonStyle string

const (
	ButtonRounded  ButtonStyle = "rounded"
	ButtonSquare   ButtonStyle = "square"
	ButtonGradient ButtonStyle = "gradient"
)

// BackgroundKind tells the renderer how to draw the page background.
type BackgroundKind string

const (
	BackgroundImage    BackgroundKind = "image"
	BackgroundVideo    BackgroundKind = "video"
	BackgroundGradient BackgroundKind = "gradient"
)

// Overrides are the per-portal branding values. Empty fields fall back to the defaults.
type Overrides struct {
	PrimaryColor   string         `json:"primaryColor,omitempty" validate:"omitempty,hexcolor"`
	SecondaryColor string         `json:"secondaryColor,omitempty" validate:"omitempty,hexcolor"`
	LogoRef        string         `json:"logoRef,omitempty" validate:"omitempty,max=512"`
	BackgroundRef  string         `json:"backgroundRef,omitempty" validate:"omitempty,max=512"`
	BackgroundKind BackgroundKind `json:"backgroundKind,omitempty" validate:"omitempty,oneof=image video"`
	ButtonStyle    ButtonStyle    `json:"buttonStyle,omitempty" validate:"omitempty,oneof=rounded square gradient"`
}

// Defaults are the site-wide branding values injected from configuration.
type Defaults struct {
	PrimaryColor       string
	SecondaryColor     string
	LogoRef            string
	BackgroundVideoRef string
}

// Resolved is the effective branding of a portal.
type Resolved struct {
	PrimaryColor   string
	SecondaryColor string
	LogoRef        string
	BackgroundRef  string
	BackgroundKind BackgroundKind
	ButtonStyle    ButtonStyle
	ButtonRadius   string
	ButtonGradient bool
}

const (
	fallbackPrimary   = "#2563eb"
	fallbackSecondary = "#2dd4da"
)

// Resolve coalesces overrides over defaults field by field.
func Resolve(overrides *Overrides, defaults Defaults) Resolved {
	var o Overrides
	if overrides != nil {
		o = *overrides
	}

	resolved := Resolved{
		PrimaryColor:   coalesce(o.PrimaryColor, defaults.PrimaryColor, fallbackPrimary),
		SecondaryColor: coalesce(o.SecondaryColor, defaults.SecondaryColor, fallbackSecondary),
		LogoRef:        coalesce(o.LogoRef, defaults.LogoRef),
	}

	switch {
	case strings.TrimSpace(o.BackgroundRef) != "":
		resolved.BackgroundRef = strings.TrimSpace(o.BackgroundRef)
		resolved.BackgroundKind = o.BackgroundKind
		if resolved.BackgroundKind == "" {
			resolved.BackgroundKind = BackgroundImage
		}
	case strings.TrimSpace(defaults.BackgroundVideoRef) != "":
		resolved.BackgroundRef = strings.TrimSpace(defaults.BackgroundVideoRef)
		resolved.BackgroundKind = BackgroundVideo
	default:
		resolved.BackgroundKind = BackgroundGradient
	}

	resolved.ButtonStyle = o.ButtonStyle
	switch o.ButtonStyle {
	case ButtonSquare:
		resolved.ButtonRadius = "0"
	case ButtonGradient:
		resolved.ButtonRadius = "9999px"
		resolved.ButtonGradient = true
	default:
		resolved.ButtonStyle = ButtonRounded
		resolved.ButtonRadius = "8px"
	}

	return resolved
}

var validate = validator.New()

// Validate checks override values before they are stored.
func Validate(overrides Overrides) error {
	if err := validate.Struct(overrides); err != nil {
		var fieldErrs validator.ValidationErrors
		if errors.As(err, &fieldErrs) && len(fieldErrs) > 0 {
			first := fieldErrs[0]
			return eris.Errorf("%s failed %s validation", first.Field(), first.Tag())
		}
		return eris.Wrap(err, "validating branding overrides")
	}
	if overrides.BackgroundKind != "" && strings.TrimSpace(overrides.BackgroundRef) == "" {
		return eris.New("BackgroundKind requires BackgroundRef")
	}
	return nil
}

// Normalize trims whitespace and lowercases colors.
func Normalize(overrides Overrides) Overrides {
	overrides.PrimaryColor = strings.ToLower(strings.TrimSpace(overrides.PrimaryColor))
	overrides.SecondaryColor = strings.ToLower(strings.TrimSpace(overrides.SecondaryColor))
	overrides.LogoRef = strings.TrimSpace(overrides.LogoRef)
	overrides.BackgroundRef = strings.TrimSpace(overrides.BackgroundRef)
	return overrides
}

func coalesce(values ...string) string {
	for _, value := range values {
		if trimmed := strings.TrimSpace(value); trimmed != "" {
			return trimmed
		}
	}
	return ""
}
