package templates

// DefaultFooterNote is shown in the shared layout when a page does not supply custom text.
const DefaultFooterNote = "Equal Housing Opportunity. Rates and programs are subject to change without notice."

// BrandingView carries the resolved colors and media of a page.
type BrandingView struct {
	PrimaryColor   string
	SecondaryColor string
	LogoURL        string
	BackgroundURL  string
	// BackgroundKind is image, video or gradient.
	BackgroundKind string
	ButtonRadius   string
	ButtonGradient bool
}

// ContactView is a person shown on a landing page.
type ContactView struct {
	Name        string
	JobTitle    string
	Email       string
	Phone       string
	HeadshotURL string
}

// PropertyView describes the listing on an open house page.
type PropertyView struct {
	Address         string
	PriceLabel      string
	Facts           []string
	DescriptionHTML string
}

// LandingPageData contains the dynamic values of a rendered landing page.
type LandingPageData struct {
	PageID        string
	Title         string
	TemplateType  string
	TemplateLabel string
	CanonicalURL  string
	Draft         bool
	CompanyName   string
	Owner         ContactView
	Partner       *ContactView
	Team          []ContactView
	Property      *PropertyView
	Branding      BrandingView
	FooterNote    string
}

// ErrorPageData holds information for rendering an error view.
type ErrorPageData struct {
	Title       string
	StatusLabel string
	Message     string
	Branding    BrandingView
}
