package physics

import "math"

// Reference describes the base level of a barometric altitude computation.
type Reference struct {
	// P0 is the pressure at the reference level, in the unit of the measured pressure.
	P0 float64
	// H0 is the altitude of the reference level in m.
	H0 float64
	// T0 is the temperature at the reference level in K.
	T0 float64
	// Latitude selects local instead of standard gravity when set.
	Latitude *float64
}

type ReferenceOption func(*Reference)

func WithP0(p0 float64) ReferenceOption {
	return func(r *Reference) {
		r.P0 = p0
	}
}

func WithH0(h0 float64) ReferenceOption {
	return func(r *Reference) {
		r.H0 = h0
	}
}

func WithT0(t0 float64) ReferenceOption {
	return func(r *Reference) {
		r.T0 = t0
	}
}

func WithLatitude(lat float64) ReferenceOption {
	return func(r *Reference) {
		r.Latitude = &lat
	}
}

// NewReference returns the ISA sea-level reference (101325 Pa, 0 m, 288.15 K)
// with opts applied.
func NewReference(opts ...ReferenceOption) Reference {
	r := Reference{
		P0: 101325.0,
		H0: 0,
		T0: 288.15,
	}
	for _, opt := range opts {
		opt(&r)
	}
	return r
}

func (r Reference) gravity() float64 {
	if r.Latitude != nil {
		return LatitudeGravity(*r.Latitude)
	}
	return StandardGravity
}

// BarometricAltitude in m for pressure p measured in the unit of r.P0.
func BarometricAltitude(p float64, r Reference) float64 {
	return r.H0 + r.T0/LapseRate*(1-math.Pow(p/r.P0, SpecificGasConstant*LapseRate/r.gravity()))
}

// AltitudePressure is the inverse of BarometricAltitude.
func AltitudePressure(altitude float64, r Reference) float64 {
	dh := altitude - r.H0
	return r.P0 * math.Pow(1-LapseRate*dh/r.T0, r.gravity()/(SpecificGasConstant*LapseRate))
}
