package parser

import (
	"errors"
	"fmt"
	"regexp"
	"strconv"
)

// ErrPriceFormat is returned when price text holds no decimal number.
var ErrPriceFormat = errors.New("parser: price not found")

// The dot is unescaped and matches any character, so "1X2" is accepted by
// the pattern and then rejected by ParseFloat.
var pricePattern = regexp.MustCompile(`\d+.\d+`)

// ParsePrice extracts the first decimal number from text.
func ParsePrice(text string) (float64, error) {
	match := pricePattern.FindString(text)
	if match == "" {
		return 0, fmt.Errorf("%w in %q", ErrPriceFormat, text)
	}
	price, err := strconv.ParseFloat(match, 64)
	if err != nil {
		return 0, fmt.Errorf("parse price %q: %w", match, err)
	}
	return price, nil
}
