package subagents

import (
	"encoding/json"
	"math"
	"regexp"
	"strconv"
	"strings"
)

var (
	numberRe     = regexp.MustCompile(`[-+]?\d[\d,]*(?:\.\d+)?`)
	multiplierRe = regexp.MustCompile(`^\s*(k|thousand|lakhs?|lacs?|l|crores?|cr|million|mn|m)\b`)
)

var multipliers = map[string]float64{
	"k":        1e3,
	"thousand": 1e3,
	"l":        1e5,
	"lakh":     1e5,
	"lakhs":    1e5,
	"lac":      1e5,
	"lacs":     1e5,
	"cr":       1e7,
	"crore":    1e7,
	"crores":   1e7,
	"m":        1e6,
	"mn":       1e6,
	"million":  1e6,
}

// parseAmount reads the first number in s, honouring Indian and metric shorthands
// ("₹50,000", "5 lakh", "1.2cr", "20k").
func parseAmount(s string) (float64, bool) {
	lower := strings.ToLower(s)
	loc := numberRe.FindStringIndex(lower)
	if loc == nil {
		return 0, false
	}
	v, err := strconv.ParseFloat(strings.ReplaceAll(lower[loc[0]:loc[1]], ",", ""), 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, false
	}
	if m := multiplierRe.FindStringSubmatch(lower[loc[1]:]); m != nil {
		v *= multipliers[m[1]]
	}
	return v, true
}

func asFloat(v any) (float64, bool) {
	switch t := v.(type) {
	case float64:
		return t, true
	case float32:
		return float64(t), true
	case int:
		return float64(t), true
	case int64:
		return float64(t), true
	case json.Number:
		f, err := t.Float64()
		return f, err == nil
	case string:
		return parseAmount(t)
	}
	return 0, false
}

// asInt accepts whole numbers only; 30.0 is fine, 30.5 is not.
func asInt(v any) (int, bool) {
	f, ok := asFloat(v)
	if !ok || f != math.Trunc(f) || math.Abs(f) > math.MaxInt32 {
		return 0, false
	}
	return int(f), true
}

func asString(v any) (string, bool) {
	switch t := v.(type) {
	case string:
		t = strings.TrimSpace(t)
		return t, t != ""
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64), true
	case int:
		return strconv.Itoa(t), true
	case json.Number:
		return t.String(), true
	}
	return "", false
}

var (
	yesWords = []string{"yes", "y", "yeah", "yep", "sure", "ok", "okay", "true", "i agree", "agree", "go ahead", "proceed", "of course", "please do", "definitely", "absolutely"}
	noWords  = []string{"no", "n", "nope", "nah", "false", "not now", "no thanks", "don't", "do not", "decline", "never"}
)

func asBool(v any) (bool, bool) {
	switch t := v.(type) {
	case bool:
		return t, true
	case string:
		if IsAffirmative(t) {
			return true, true
		}
		if IsNegative(t) {
			return false, true
		}
	}
	return false, false
}

func normalizeText(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	return strings.Trim(s, ".!?, ")
}

// IsAffirmative reports whether s is a short yes-like answer.
func IsAffirmative(s string) bool {
	return matchesPhrase(normalizeText(s), yesWords) && !IsNegative(s)
}

// IsNegative reports whether s is a short no-like answer.
func IsNegative(s string) bool {
	return matchesPhrase(normalizeText(s), noWords)
}

// matchesPhrase is true when s equals a phrase or starts with one followed by a separator.
func matchesPhrase(s string, phrases []string) bool {
	for _, p := range phrases {
		if s == p {
			return true
		}
		if strings.HasPrefix(s, p) {
			next := s[len(p)]
			if next == ' ' || next == ',' || next == '!' || next == '.' {
				return true
			}
		}
	}
	return false
}

// containsAny reports whether the lower-cased s contains any of the needles.
func containsAny(s string, needles ...string) bool {
	s = strings.ToLower(s)
	for _, n := range needles {
		if strings.Contains(s, n) {
			return true
		}
	}
	return false
}

// matchEnum maps v onto one of allowed, case-insensitively, then via synonyms.
// Unknown values are returned trimmed so validation can reject them.
func matchEnum(v string, allowed []string, synonyms map[string]string) string {
	v = strings.TrimSpace(v)
	for _, a := range allowed {
		if strings.EqualFold(a, v) {
			return a
		}
	}
	if s, ok := synonyms[strings.ToLower(v)]; ok {
		return s
	}
	return v
}

func titleCase(s string) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + strings.ToLower(s[1:])
}
