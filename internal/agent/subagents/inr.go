package subagents

import (
	"math"
	"strconv"
	"strings"
)

// FormatINR renders a rupee amount with Indian digit grouping, e.g. ₹23,23,400.
// Paise are shown only when non-zero.
func FormatINR(v float64) string {
	neg := v < 0
	v = math.Abs(v)
	rupees := math.Floor(v)
	paise := int(math.Round((v - rupees) * 100))
	if paise == 100 {
		rupees++
		paise = 0
	}

	digits := strconv.FormatFloat(rupees, 'f', 0, 64)
	var grouped string
	if len(digits) <= 3 {
		grouped = digits
	} else {
		head, tail := digits[:len(digits)-3], digits[len(digits)-3:]
		var parts []string
		for len(head) > 2 {
			parts = append([]string{head[len(head)-2:]}, parts...)
			head = head[:len(head)-2]
		}
		if head != "" {
			parts = append([]string{head}, parts...)
		}
		grouped = strings.Join(parts, ",") + "," + tail
	}

	out := "₹" + grouped
	if paise > 0 {
		out += "." + leftPad(strconv.Itoa(paise), 2)
	}
	if neg {
		out = "-" + out
	}
	return out
}

func leftPad(s string, n int) string {
	for len(s) < n {
		s = "0" + s
	}
	return s
}
