package domain

// EntityKind identifies a canonical entity type.
type EntityKind string

const (
	EntityFacility   EntityKind = "facility"
	EntityBuilding   EntityKind = "building"
	EntityDepartment EntityKind = "department"
)

// EntityKinds lists every kind in resolution order.
var EntityKinds = []EntityKind{EntityFacility, EntityBuilding, EntityDepartment}

func (k EntityKind) String() string { return string(k) }

func (k EntityKind) IsValid() bool {
	switch k {
	case EntityFacility, EntityBuilding, EntityDepartment:
		return true
	}
	return false
}

// Entity is a canonical facility, building or department.
// Name is unique within its kind.
type Entity struct {
	ID   int64
	Kind EntityKind
	Name string
}

// Alias binds a historically observed raw spelling to a canonical entity.
type Alias struct {
	Kind     EntityKind
	Raw      string
	EntityID int64
}
