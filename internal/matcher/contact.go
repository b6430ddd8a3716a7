package matcher

import (
	"slices"
	"strings"

	"github.com/roach88/tally/internal/survey"
)

// Contact wire names.
const (
	FieldFullName       = "fullName"
	FieldCompanyName    = "companyName"
	FieldEmail          = "email"
	FieldPhone          = "phone"
	FieldInterest       = "interest"
	FieldMarketObstacle = "marketObstacle"
	FieldBusinessType   = "businessType"
)

// Contact is the payload a respondent submits to be linked to their
// earlier answers.
type Contact struct {
	FullName       string `json:"fullName"`
	CompanyName    string `json:"companyName,omitempty"`
	Email          string `json:"email,omitempty"`
	Phone          string `json:"phone,omitempty"`
	Interest       string `json:"interest"`
	MarketObstacle string `json:"marketObstacle"`
	BusinessType   string `json:"businessType,omitempty"`
}

// Normalize trims and NFC-normalizes every field and lower-cases the email.
func (c Contact) Normalize() Contact {
	return Contact{
		FullName:       survey.Normalize(c.FullName),
		CompanyName:    survey.Normalize(c.CompanyName),
		Email:          strings.ToLower(survey.Normalize(c.Email)),
		Phone:          survey.Normalize(c.Phone),
		Interest:       survey.Normalize(c.Interest),
		MarketObstacle: survey.Normalize(c.MarketObstacle),
		BusinessType:   survey.Normalize(c.BusinessType),
	}
}

// Validate checks a normalized contact. An empty result means valid.
func (c Contact) Validate() survey.Violations {
	var out survey.Violations
	add := func(field, rule string) {
		out = append(out, survey.Violation{Field: field, Rule: rule})
	}

	if c.FullName == "" {
		add(FieldFullName, survey.RuleRequired)
	}
	switch {
	case c.Email == "" && c.Phone == "":
		add(FieldEmail, survey.RuleRequired)
		add(FieldPhone, survey.RuleRequired)
	case c.Email != "" && !validEmail(c.Email):
		add(FieldEmail, survey.RuleFormat)
	}

	checkCategory := func(field, v string, categories []string) {
		switch {
		case v == "":
			add(field, survey.RuleRequired)
		case !slices.Contains(categories, v):
			add(field, survey.RuleOption)
		}
	}
	checkCategory(FieldInterest, c.Interest, survey.InterestCategories)
	checkCategory(FieldMarketObstacle, c.MarketObstacle, survey.MarketObstacleCategories)

	return out
}

// Identity returns the identity fields written onto a linked submission.
func (c Contact) Identity() survey.Identity {
	return survey.Identity{
		FullName:    c.FullName,
		CompanyName: c.CompanyName,
		Email:       c.Email,
		Phone:       c.Phone,
	}
}

// discriminators returns the store query selecting candidates.
func (c Contact) discriminators() map[string]string {
	return map[string]string{
		survey.FieldInterest:       c.Interest,
		survey.FieldMarketObstacle: c.MarketObstacle,
	}
}

func validEmail(s string) bool {
	at := strings.IndexByte(s, '@')
	return at > 0 && at < len(s)-1 && !strings.ContainsAny(s, " \t") && strings.Count(s, "@") == 1
}
