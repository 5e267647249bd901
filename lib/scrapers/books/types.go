package books

import (
	"fmt"
	"strconv"
	"strings"
)

type Book struct {
	Title string
	// as displayed, e.g. "£51.77"
	Price string
	// 1-5, 0 when the page does not say
	Rating    int
	InStock   bool
	DetailURL string

	// only set when details were fetched
	UPC         string
	Description string
}

type Page struct {
	URL   string
	Books []Book
	// empty on the last page
	NextURL string
}

type Detail struct {
	Title       string
	UPC         string
	Description string
}

var ratingWords = map[string]int{
	"one":   1,
	"two":   2,
	"three": 3,
	"four":  4,
	"five":  5,
}

// ParseRating maps the class list of a "star-rating" element to a number.
func ParseRating(class string) int {
	for _, field := range strings.Fields(class) {
		n, ok := ratingWords[strings.ToLower(field)]
		if ok {
			return n
		}
	}
	return 0
}

// ParsePrice strips the currency symbol off a displayed price.
func ParsePrice(price string) (float64, error) {
	trimmed := strings.TrimLeftFunc(strings.TrimSpace(price), func(r rune) bool {
		return (r < '0' || r > '9') && r != '.' && r != '-'
	})
	amount, err := strconv.ParseFloat(trimmed, 64)
	if err != nil {
		return 0, fmt.Errorf("parse price %q: %w", price, err)
	}
	return amount, nil
}
