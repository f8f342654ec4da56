// Package physics holds the stateless conversions between station pressure,
// sea-level pressure and altitude. Pressures are in hPa unless noted.
package physics

import "math"

const (
	// MolarMassAir in kg/mol.
	MolarMassAir = 0.0289644
	// LapseRate of the standard atmosphere in K/m.
	LapseRate = 0.0065
	// GasConstant is the molar gas constant in J/(mol K).
	GasConstant = 8.314462618
	// StandardGravity in m/s².
	StandardGravity = 9.80665
	// SpecificGasConstant of dry air in J/(kg K).
	SpecificGasConstant = GasConstant / MolarMassAir

	// humidityCoefficient weighs the vapour pressure in the reduction formula, in K/hPa.
	humidityCoefficient = 0.12
	celsiusOffset       = 273.15
)

// SaturationVapourPressure over water at t degrees Celsius (WMO-No. 8, eq. 3a).
func SaturationVapourPressure(tCelsius float64) float64 {
	return 6.112 * math.Exp(17.62*tCelsius/(243.12+tCelsius))
}

// reduction is the exponent factor of the DWD barometric reduction to sea level.
// The pressure dependency of the vapour pressure is ignored.
func reduction(h, tCelsius, rhPercent float64) float64 {
	t := celsiusOffset + tCelsius
	e := rhPercent / 100 * SaturationVapourPressure(tCelsius)
	return math.Exp(h * StandardGravity / SpecificGasConstant / (t + e*humidityCoefficient + LapseRate*h/2))
}

// QFFFromQFE reduces station pressure qfe at geopotential height h (m) to sea level.
func QFFFromQFE(qfe, h, tCelsius, rhPercent float64) float64 {
	return qfe * reduction(h, tCelsius, rhPercent)
}

// QFEFromQFF is the inverse of QFFFromQFE.
func QFEFromQFF(qff, h, tCelsius, rhPercent float64) float64 {
	return qff / reduction(h, tCelsius, rhPercent)
}

// QNHFromQFE reduces qfe to sea level in the standard atmosphere (15 °C, dry air).
func QNHFromQFE(qfe, h float64) float64 {
	return QFFFromQFE(qfe, h, 15, 0)
}

// PressureAltitude in meters for pressure and reference p0, both in Pa.
func PressureAltitude(pressure, p0 float64) float64 {
	return 0.3048 * 145366.45 * (1 - math.Pow(pressure/p0, 0.190284))
}

// LatitudeGravity is the normal gravity on the WGS84 ellipsoid (Somigliana).
func LatitudeGravity(latitude float64) float64 {
	s := math.Sin(latitude * math.Pi / 180)
	sinSq := s * s
	return 9.7803253359 * (1 + 0.00193185265241*sinSq) / math.Sqrt(1-0.00669437999013*sinSq)
}

// GeopotentialHeight scales a geometric elevation by the local to standard gravity ratio.
func GeopotentialHeight(elevation, latitude float64) float64 {
	return elevation * LatitudeGravity(latitude) / StandardGravity
}
