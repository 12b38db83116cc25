package provider

import (
	"strings"

	"github.com/Ramsey-B/iris/pkg/models"
)

type categoryRule struct {
	category models.AppCategory
	keywords []string
}

// Evaluated in order; the first rule with a matching keyword wins.
var categoryRules = []categoryRule{
	{models.AppCategoryCommunication, []string{"slack", "zoom", "teams", "webex", "meet", "discord", "ringcentral"}},
	{models.AppCategoryProductivity, []string{"google workspace", "office 365", "microsoft 365", "notion", "asana", "trello", "dropbox", "box", "monday", "airtable", "miro"}},
	{models.AppCategoryCRM, []string{"salesforce", "hubspot", "zendesk", "pipedrive", "intercom", "freshdesk"}},
	{models.AppCategoryInfrastructure, []string{"aws", "amazon web services", "azure", "gcp", "google cloud", "cloudflare", "datadog", "okta", "pagerduty"}},
	{models.AppCategoryDevelopment, []string{"github", "gitlab", "bitbucket", "jira", "confluence", "jenkins", "circleci", "vercel", "sentry"}},
}

// Categorize infers an application's category from its display name.
func Categorize(name string) models.AppCategory {
	lowered := strings.ToLower(name)
	for _, rule := range categoryRules {
		for _, keyword := range rule.keywords {
			if strings.Contains(lowered, keyword) {
				return rule.category
			}
		}
	}
	return models.AppCategoryOther
}
