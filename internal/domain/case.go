package domain

import (
	"time"

	"github.com/google/uuid"
)

// CaseRecord is one case entry as extracted from the report text.
// Every field except PostedDate may be absent.
type CaseRecord struct {
	// CaseNumber is the sequence number printed in the source ("#1,234").
	// It is a hint only and may collide or be missing.
	CaseNumber *int

	FacilityRaw   *string
	DepartmentRaw *string
	BuildingRaw   *string

	PostedDate   time.Time
	LastWorkDate *time.Time
	TestedDate   *time.Time

	// Text is the sanitized entry text the fields were extracted from.
	Text string
}

// RawName returns the raw name extracted for the given kind.
func (c CaseRecord) RawName(kind EntityKind) *string {
	switch kind {
	case EntityFacility:
		return c.FacilityRaw
	case EntityBuilding:
		return c.BuildingRaw
	case EntityDepartment:
		return c.DepartmentRaw
	}
	return nil
}

// IsBare reports whether nothing but the posting date was extracted.
func (c CaseRecord) IsBare() bool {
	return c.CaseNumber == nil && c.FacilityRaw == nil && c.DepartmentRaw == nil &&
		c.BuildingRaw == nil && c.LastWorkDate == nil && c.TestedDate == nil
}

// PersistedCase is the durable case row referencing canonical entity ids.
type PersistedCase struct {
	ID           int64
	CaseNumber   *int
	FacilityID   *int64
	BuildingID   *int64
	DepartmentID *int64
	PostedDate   time.Time
	LastWorkDate *time.Time
	TestedDate   *time.Time

	// Fingerprint identifies the logical case across re-ingestion.
	// Nil when case deduplication is disabled.
	Fingerprint *string
	PatternSet  string
	RunID       uuid.UUID
	CreatedAt   time.Time
}

// SetEntityID stores a resolved entity id on the field matching kind.
func (p *PersistedCase) SetEntityID(kind EntityKind, id *int64) {
	switch kind {
	case EntityFacility:
		p.FacilityID = id
	case EntityBuilding:
		p.BuildingID = id
	case EntityDepartment:
		p.DepartmentID = id
	}
}
