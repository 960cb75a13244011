package models

// VisaType is a row of the visa-type lookup table.
type VisaType struct {
	ID       int    `json:"id"       yaml:"id"        validate:"required,gt=0"`
	Code     string `json:"code"     yaml:"code"      validate:"required"`
	Name     string `json:"name"     yaml:"name"`
	IsActive bool   `json:"is_active" yaml:"is_active"`
}

// CountryServiceMapping redirects a service lookup from one country to another,
// e.g. panel physicians for Andorra are served from Spain.
type CountryServiceMapping struct {
	Service     string `json:"service"      yaml:"service"      validate:"required"`
	FromCountry string `json:"from_country" yaml:"from_country" validate:"required,len=2"`
	ToCountry   string `json:"to_country"   yaml:"to_country"   validate:"required,len=2"`
	Notes       string `json:"notes,omitempty" yaml:"notes"`
}

// Reviewer is a digest recipient allowed to approve or reject drafts.
type Reviewer struct {
	ID    string `json:"id"    yaml:"id"    validate:"required"`
	Email string `json:"email" yaml:"email" validate:"omitempty,email"`
	Name  string `json:"name"  yaml:"name"`
}
