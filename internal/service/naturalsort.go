package service

import (
	"sort"
	"strings"

	"github.com/cloo-solutions/kitguide/internal/storage"
)

// NaturalLess orders names so that digit runs compare by numeric value and
// everything else compares lexically: page2 sorts before page10.
func NaturalLess(a, b string) bool {
	ca, cb := naturalChunks(a), naturalChunks(b)
	for i := 0; i < len(ca) && i < len(cb); i++ {
		if c := compareChunk(ca[i], cb[i], i%2 == 1); c != 0 {
			return c < 0
		}
	}
	if len(ca) != len(cb) {
		return len(ca) < len(cb)
	}
	// Numerically equal names such as page01 and page1 still need a total order.
	return a < b
}

// SortPages sorts pages by name in natural order.
func SortPages(pages []storage.Page) {
	sort.SliceStable(pages, func(i, j int) bool {
		return NaturalLess(pages[i].Name, pages[j].Name)
	})
}

// naturalChunks splits s into alternating text and digit runs. The first
// chunk is always text (possibly empty), so equal indexes hold the same kind.
func naturalChunks(s string) []string {
	chunks := make([]string, 0, 4)
	start := 0
	inDigits := false
	for i := 0; i < len(s); i++ {
		digit := s[i] >= '0' && s[i] <= '9'
		if digit != inDigits {
			chunks = append(chunks, s[start:i])
			start = i
			inDigits = digit
		}
	}
	return append(chunks, s[start:])
}

func compareChunk(a, b string, digits bool) int {
	if !digits {
		return strings.Compare(a, b)
	}
	a = strings.TrimLeft(a, "0")
	b = strings.TrimLeft(b, "0")
	if len(a) != len(b) {
		if len(a) < len(b) {
			return -1
		}
		return 1
	}
	return strings.Compare(a, b)
}
