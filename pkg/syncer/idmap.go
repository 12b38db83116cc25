package syncer

import (
	"github.com/google/uuid"
)

// IDMap correlates provider-issued ids with internal record ids. It lives for
// one run and is never persisted or shared.
type IDMap map[string]uuid.UUID

func (m IDMap) Put(providerID string, internalID uuid.UUID) {
	if providerID == "" {
		return
	}
	m[providerID] = internalID
}

// Resolve returns the internal id for providerID.
func (m IDMap) Resolve(providerID string) (uuid.UUID, bool) {
	id, ok := m[providerID]
	return id, ok
}
