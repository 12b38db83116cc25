package provider

import (
	"strings"

	"github.com/Ramsey-B/iris/pkg/models"
)

var userStatuses = map[string]models.UserStatus{
	"ACTIVE":           models.UserStatusActive,
	"PASSWORD_EXPIRED": models.UserStatusActive,
	"RECOVERY":         models.UserStatusActive,
	"PROVISIONED":      models.UserStatusInactive,
	"STAGED":           models.UserStatusInactive,
	"SUSPENDED":        models.UserStatusSuspended,
	"LOCKED_OUT":       models.UserStatusSuspended,
	"DEPROVISIONED":    models.UserStatusOffboarding,
}

// MapUserStatus maps a provider lifecycle state to the internal vocabulary.
// Unknown states map to inactive.
func MapUserStatus(status string) models.UserStatus {
	if mapped, ok := userStatuses[strings.ToUpper(strings.TrimSpace(status))]; ok {
		return mapped
	}
	return models.UserStatusInactive
}

// MapAssignmentStatus maps an application assignment state. Only ACTIVE is active.
func MapAssignmentStatus(status string) models.AccessStatus {
	if strings.EqualFold(strings.TrimSpace(status), "ACTIVE") {
		return models.AccessStatusActive
	}
	return models.AccessStatusInactive
}
