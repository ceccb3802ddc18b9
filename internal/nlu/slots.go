package nlu

import (
	"strings"
	"unicode"
)

var prepositions = set("in", "for", "at")

var temporal = set(
	"today", "tomorrow", "tonight", "now", "right", "currently", "moment", "morning",
	"afternoon", "evening", "night", "week", "weekend", "later", "this", "next", "the", "please",
	"day", "days", "am", "pm", "oclock",
)

// extractLocation returns the first place named after in/for/at, with
// time words and punctuation dropped, or "" if there is none. Clock
// readings such as "at 5" are not places.
func extractLocation(raw string) string {
	if i := strings.IndexAny(raw, ".?!"); i >= 0 {
		raw = raw[:i]
	}
	words := strings.Fields(strings.NewReplacer(",", " ", ";", " ").Replace(raw))

	for i := 0; i < len(words); i++ {
		if !prepositions[strings.ToLower(words[i])] {
			continue
		}
		j := i + 1
		for j < len(words) && !prepositions[strings.ToLower(words[j])] {
			j++
		}
		if loc := cleanLocation(words[i+1 : j]); loc != "" {
			return loc
		}
		i = j - 1
	}
	return ""
}

func cleanLocation(words []string) string {
	for len(words) > 0 && temporal[strings.ToLower(words[len(words)-1])] {
		words = words[:len(words)-1]
	}
	for len(words) > 0 && strings.EqualFold(words[0], "the") {
		words = words[1:]
	}

	for _, w := range words {
		lw := strings.ToLower(w)
		if !temporal[lw] && !stopwords[lw] && !hasDigit(lw) {
			return titleCase(words)
		}
	}
	return ""
}

func titleCase(words []string) string {
	out := make([]string, len(words))
	for i, w := range words {
		r := []rune(w)
		if unicode.IsLower(r[0]) {
			r[0] = unicode.ToUpper(r[0])
		}
		out[i] = string(r)
	}
	return strings.Join(out, " ")
}
