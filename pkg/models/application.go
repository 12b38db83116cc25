package models

import (
	"time"

	"github.com/google/uuid"
)

type AppCategory string

const (
	AppCategoryCommunication  AppCategory = "communication"
	AppCategoryProductivity   AppCategory = "productivity"
	AppCategoryCRM            AppCategory = "crm"
	AppCategoryInfrastructure AppCategory = "infrastructure"
	AppCategoryDevelopment    AppCategory = "development"
	AppCategoryOther          AppCategory = "other"
)

// Application is a SaaS application, unique per (name, source).
type Application struct {
	ID         uuid.UUID   `db:"id" json:"id"`
	Name       string      `db:"name" json:"name"`
	Source     string      `db:"source" json:"source"`
	Category   AppCategory `db:"category" json:"category"`
	Status     string      `db:"status" json:"status"`
	ExternalID *string     `db:"external_id" json:"external_id,omitempty"`
	SignOnMode *string     `db:"sign_on_mode" json:"sign_on_mode,omitempty"`
	WebsiteURL *string     `db:"website_url" json:"website_url,omitempty"`
	CreatedAt  time.Time   `db:"created_at" json:"created_at"`
	UpdatedAt  time.Time   `db:"updated_at" json:"updated_at"`
}

// TableName returns the database table name
func (Application) TableName() string {
	return "applications"
}
