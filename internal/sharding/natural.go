package sharding

import (
	"slices"
	"strconv"
)

// naturalCompare orders strings with digit runs compared numerically.
func naturalCompare(a, b string) int {
	i, j := 0, 0
	for i < len(a) && j < len(b) {
		ca, cb := a[i], b[j]
		if isDigit(ca) && isDigit(cb) {
			si := i
			for i < len(a) && isDigit(a[i]) {
				i++
			}
			sj := j
			for j < len(b) && isDigit(b[j]) {
				j++
			}
			if c := compareDigits(a[si:i], b[sj:j]); c != 0 {
				return c
			}
			continue
		}
		if ca != cb {
			if ca < cb {
				return -1
			}
			return 1
		}
		i++
		j++
	}
	switch {
	case len(a)-i < len(b)-j:
		return -1
	case len(a)-i > len(b)-j:
		return 1
	}
	// Equal under natural order ("t_01" vs "t_1"): fall back to bytes.
	if a < b {
		return -1
	}
	if a > b {
		return 1
	}
	return 0
}

// compareDigits compares two digit runs by numeric value without parsing,
// so arbitrarily long runs cannot overflow.
func compareDigits(a, b string) int {
	a = trimZeros(a)
	b = trimZeros(b)
	if len(a) != len(b) {
		if len(a) < len(b) {
			return -1
		}
		return 1
	}
	if a < b {
		return -1
	}
	if a > b {
		return 1
	}
	return 0
}

func trimZeros(s string) string {
	for len(s) > 1 && s[0] == '0' {
		s = s[1:]
	}
	return s
}

func isDigit(c byte) bool { return c >= '0' && c <= '9' }

// naturalOrder returns a sorted copy of targets.
func naturalOrder(targets []string) []string {
	sorted := clone(targets)
	slices.SortStableFunc(sorted, naturalCompare)
	return sorted
}

// suffixNumber parses the trailing digit run of s.
func suffixNumber(s string) (int64, bool) {
	i := len(s)
	for i > 0 && isDigit(s[i-1]) {
		i--
	}
	if i == len(s) {
		return 0, false
	}
	n, err := strconv.ParseInt(s[i:], 10, 64)
	if err != nil {
		return 0, false
	}
	return n, true
}
