// Package units provides shared constants and conversions between
// plotter units, paper millimetres and device resolutions.
package units

// Plotter unit constants. One HPGL plotter unit is 1/40 mm.
const (
	MMPerPlotterUnit  = 0.025
	PlotterUnitsPerMM = 40.0
	MMPerInch         = 25.4
	PointsPerInch     = 72.0
)

// Default character cell, in mm. These match the HP 7470/7475 power-on
// character size (0.285 cm wide, 0.375 cm tall).
const (
	DefaultCharWidthMM  = 2.85
	DefaultCharHeightMM = 3.75
)

// Character cell advance factors: the pen steps 1.5 character widths
// between characters and 2.0 character heights between lines.
const (
	CharStepX = 1.5
	CharStepY = 2.0
)

// Default paper size in mm (A4 landscape).
const (
	DefaultPaperWidthMM  = 297.0
	DefaultPaperHeightMM = 210.0
)

// MMFromPlotterUnits converts plotter units to millimetres.
func MMFromPlotterUnits(u float64) float64 {
	return u * MMPerPlotterUnit
}

// PlotterUnitsFromMM converts millimetres to plotter units.
func PlotterUnitsFromMM(mm float64) float64 {
	return mm * PlotterUnitsPerMM
}

// DotsFromMM converts millimetres to dots at the given resolution.
func DotsFromMM(mm, dpi float64) float64 {
	return mm / MMPerInch * dpi
}

// PointsFromMM converts millimetres to typographic points.
func PointsFromMM(mm float64) float64 {
	return mm / MMPerInch * PointsPerInch
}
