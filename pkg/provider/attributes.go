package provider

import (
	"fmt"

	"github.com/Ramsey-B/iris/pkg/expressions"
)

// AttributeConfig holds the JMESPath expressions used to read optional
// attributes from raw provider records.
type AttributeConfig struct {
	UserName       string
	UserDepartment string
	UserTitle      string
	AppWebsite     string
}

// DefaultAttributeConfig matches the stock Okta profile schema.
func DefaultAttributeConfig() AttributeConfig {
	return AttributeConfig{
		UserName:       "join(' ', [profile.firstName || '', profile.lastName || ''])",
		UserDepartment: "profile.department",
		UserTitle:      "profile.title",
		AppWebsite:     "settings.app.url",
	}
}

// Attributes extracts optional fields from raw records.
type Attributes struct {
	config    AttributeConfig
	evaluator *expressions.Evaluator
}

// NewAttributes compiles every configured expression up front so a bad
// expression fails at startup, not mid-run.
func NewAttributes(config AttributeConfig, evaluator *expressions.Evaluator) (*Attributes, error) {
	for name, expression := range map[string]string{
		"user name":       config.UserName,
		"user department": config.UserDepartment,
		"user title":      config.UserTitle,
		"app website":     config.AppWebsite,
	} {
		if expression == "" {
			continue
		}
		if err := evaluator.Validate(expression); err != nil {
			return nil, fmt.Errorf("invalid %s expression %q: %w", name, expression, err)
		}
	}
	return &Attributes{config: config, evaluator: evaluator}, nil
}

// UserName returns the display name, or "" when the expression yields nothing.
func (a *Attributes) UserName(user User) string {
	return a.eval(a.config.UserName, user.Raw)
}

func (a *Attributes) UserDepartment(user User) string {
	return a.eval(a.config.UserDepartment, user.Raw)
}

func (a *Attributes) UserTitle(user User) string {
	return a.eval(a.config.UserTitle, user.Raw)
}

func (a *Attributes) AppWebsite(app Application) string {
	return a.eval(a.config.AppWebsite, app.Raw)
}

// Expression failures on one record yield "" rather than failing the run.
func (a *Attributes) eval(expression string, raw map[string]any) string {
	if expression == "" || raw == nil {
		return ""
	}
	value, err := a.evaluator.EvaluateString(expression, raw)
	if err != nil {
		return ""
	}
	return value
}
