package enums

import "fmt"

// ViolationType classifies the traffic offense on a citation.
type ViolationType string

const (
	ViolationTypeIllegalParking    ViolationType = "illegal_parking"
	ViolationTypeSpeeding          ViolationType = "speeding"
	ViolationTypeRecklessDriving   ViolationType = "reckless_driving"
	ViolationTypeNoLicense         ViolationType = "no_license"
	ViolationTypeNoRegistration    ViolationType = "no_registration"
	ViolationTypeNoHelmet          ViolationType = "no_helmet"
	ViolationTypeNoSeatbelt        ViolationType = "no_seatbelt"
	ViolationTypeInvalidPlate      ViolationType = "invalid_plate"
	ViolationTypeObstruction       ViolationType = "obstruction"
	ViolationTypeDisregardingSigns ViolationType = "disregarding_signs"
	ViolationTypeIllegalTurn       ViolationType = "illegal_turn"
	ViolationTypeCounterflow       ViolationType = "counterflow"
	ViolationTypeOverloading       ViolationType = "overloading"
	ViolationTypeSmokeBelching     ViolationType = "smoke_belching"
	ViolationTypeOther             ViolationType = "other"
)

var validViolationTypes = []ViolationType{
	ViolationTypeIllegalParking,
	ViolationTypeSpeeding,
	ViolationTypeRecklessDriving,
	ViolationTypeNoLicense,
	ViolationTypeNoRegistration,
	ViolationTypeNoHelmet,
	ViolationTypeNoSeatbelt,
	ViolationTypeInvalidPlate,
	ViolationTypeObstruction,
	ViolationTypeDisregardingSigns,
	ViolationTypeIllegalTurn,
	ViolationTypeCounterflow,
	ViolationTypeOverloading,
	ViolationTypeSmokeBelching,
	ViolationTypeOther,
}

// String implements fmt.Stringer.
func (v ViolationType) String() string {
	return string(v)
}

// IsValid reports whether the value is a known ViolationType.
func (v ViolationType) IsValid() bool {
	for _, candidate := range validViolationTypes {
		if candidate == v {
			return true
		}
	}
	return false
}

// ParseViolationType converts raw input into a ViolationType.
func ParseViolationType(value string) (ViolationType, error) {
	for _, candidate := range validViolationTypes {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid violation type %q", value)
}
