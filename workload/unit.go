package workload

import (
	"strconv"

	"github.com/AntonStoeckl/snapshotting-entitystore-go/entitystore"
)

// Unit is one logical business transaction: two independent field updates of one entity.
type Unit struct {
	EntityID   entitystore.EntityID
	NameChange entitystore.Fields
	AgeChange  entitystore.Fields
}

// NewUnit builds a Unit that sets the name and the age of entityID.
func NewUnit(entityID entitystore.EntityID, name string, age int) Unit {
	return Unit{
		EntityID:   entityID,
		NameChange: entitystore.Fields{fieldName: name},
		AgeChange:  entitystore.Fields{fieldAge: strconv.Itoa(age)},
	}
}

// expectedUpdates is what the two most recent updates must be after both changes were applied.
func (u Unit) expectedUpdates() []entitystore.Fields {
	return []entitystore.Fields{u.NameChange, u.AgeChange}
}

// expectedState is the state the entity must fold to after both changes were applied.
func (u Unit) expectedState() entitystore.Fields {
	return entitystore.MergeFields(u.NameChange, u.AgeChange)
}
