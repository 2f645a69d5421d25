package parser

import (
	"fmt"
	"math"
)

var sizeUnits = []string{"b", "kb", "mb", "gb", "tb", "pb", "eb"}

// FormatFileSize renders a byte count with 1024-based units, one decimal
// digit and no space before the unit. Division stops at eb, so 1024^7
// bytes renders as "1024.0eb".
func FormatFileSize(num float64) string {
	unit := 0
	for math.Abs(num) >= 1024 && unit < len(sizeUnits)-1 {
		num /= 1024
		unit++
	}
	return fmt.Sprintf("%3.1f%s", num, sizeUnits[unit])
}
