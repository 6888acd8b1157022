package enums

import "fmt"

// VehicleType classifies the cited vehicle.
type VehicleType string

const (
	VehicleTypeMotorcycle VehicleType = "motorcycle"
	VehicleTypeCar        VehicleType = "car"
	VehicleTypeSUV        VehicleType = "suv"
	VehicleTypeVan        VehicleType = "van"
	VehicleTypeTruck      VehicleType = "truck"
	VehicleTypeBus        VehicleType = "bus"
	VehicleTypeTricycle   VehicleType = "tricycle"
	VehicleTypeJeepney    VehicleType = "jeepney"
	VehicleTypeBicycle    VehicleType = "bicycle"
	VehicleTypeOther      VehicleType = "other"
)

var validVehicleTypes = []VehicleType{
	VehicleTypeMotorcycle,
	VehicleTypeCar,
	VehicleTypeSUV,
	VehicleTypeVan,
	VehicleTypeTruck,
	VehicleTypeBus,
	VehicleTypeTricycle,
	VehicleTypeJeepney,
	VehicleTypeBicycle,
	VehicleTypeOther,
}

// String implements fmt.Stringer.
func (v VehicleType) String() string {
	return string(v)
}

// IsValid reports whether the value is a known VehicleType.
func (v VehicleType) IsValid() bool {
	for _, candidate := range validVehicleTypes {
		if candidate == v {
			return true
		}
	}
	return false
}

// ParseVehicleType converts raw input into a VehicleType.
func ParseVehicleType(value string) (VehicleType, error) {
	for _, candidate := range validVehicleTypes {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid vehicle type %q", value)
}
