package enums

import "fmt"

// MovementType classifies an inventory ledger entry.
type MovementType string

const (
	// MovementTypeImport is stock arriving from a supplier; carries a unit cost.
	MovementTypeImport MovementType = "import"
	// MovementTypeConsume is stock deducted by order settlement.
	MovementTypeConsume MovementType = "consume"
	// MovementTypeAudit is a manual correction against a physical count.
	MovementTypeAudit MovementType = "audit"
	// MovementTypeDamage is a write-off for spoiled or broken stock.
	MovementTypeDamage MovementType = "damage"
)

var validMovementTypes = []MovementType{
	MovementTypeImport,
	MovementTypeConsume,
	MovementTypeAudit,
	MovementTypeDamage,
}

// String implements fmt.Stringer.
func (m MovementType) String() string {
	return string(m)
}

// IsValid reports whether the value is a known MovementType.
func (m MovementType) IsValid() bool {
	for _, candidate := range validMovementTypes {
		if candidate == m {
			return true
		}
	}
	return false
}

// ParseMovementType converts raw input into a MovementType.
func ParseMovementType(value string) (MovementType, error) {
	for _, candidate := range validMovementTypes {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid movement type %q", value)
}
