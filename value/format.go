package value

import "strconv"

// trimFloat renders f the way the console's built-in float type renders
// itself when coerced to a string: shortest round-trippable decimal, no
// forced exponent for ordinary magnitudes.
func trimFloat(f float64) string {
	return strconv.FormatFloat(f, 'g', -1, 64)
}
