package command

import (
	"math"
	"strconv"
)

// FormatNumber renders v rounded to four decimals without trailing zeros.
func FormatNumber(v float64) string {
	r := math.Round(v*1e4) / 1e4
	if r == 0 {
		r = 0 // normalise -0
	}

	return strconv.FormatFloat(r, 'f', -1, 64)
}
