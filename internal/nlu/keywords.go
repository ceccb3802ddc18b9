package nlu

import (
	"regexp"
	"strings"
	"unicode"
)

type pattern struct {
	re     *regexp.Regexp
	weight float64
}

func p(expr string, w float64) pattern {
	return pattern{re: regexp.MustCompile(`\b(?:` + expr + `)\b`), weight: w}
}

// Patterns run against normalized text (lowercase, no punctuation).
var keywords = map[Intent][]pattern{
	Weather: {
		p(`weather`, 0.95),
		p(`forecast`, 0.9),
		p(`temperature( outside)?|how (hot|cold|warm) is it`, 0.85),
		p(`(is it|will it|going to) (rain|snow|be sunny|be cloudy|be windy)`, 0.85),
		p(`rain|snow|sunny|cloudy|windy|humid|umbrella`, 0.6),
	},
	Time: {
		p(`what time|time is it|current time|the time`, 0.95),
		p(`clock|oclock`, 0.6),
	},
	Date: {
		p(`date|what day|which day|day is (it|today)`, 0.9),
		p(`what month|what year|month is it|year is it`, 0.9),
		p(`today is`, 0.6),
	},
}

// vocabulary extends what training saw for each builtin intent.
var vocabulary = map[Intent]map[string]bool{
	Weather: set("weather", "forecast", "temperature", "outside", "hot", "cold", "warm", "rain",
		"raining", "snow", "snowing", "sunny", "cloudy", "windy", "humid", "umbrella", "degrees", "going"),
	Time: set("time", "clock", "oclock", "hour", "current"),
	Date: set("date", "day", "month", "year", "todays", "which", "weekday"),
}

// coverage is the share of topical tokens that belong to the intent.
// Time words, numbers and skipped tokens are neutral; with nothing
// topical left the coverage is full.
func coverage(known func(string) bool, tokens []string, skip map[string]bool) float64 {
	var n, hit int
	for _, t := range tokens {
		if skip[t] || temporal[t] || hasDigit(t) {
			continue
		}
		n++
		if known(t) {
			hit++
		}
	}
	if n == 0 {
		return 1
	}
	return float64(hit) / float64(n)
}

func hasDigit(s string) bool {
	return strings.IndexFunc(s, unicode.IsDigit) >= 0
}

func keywordScore(in Intent, norm string) float64 {
	var s float64
	for _, pt := range keywords[in] {
		if pt.weight > s && pt.re.MatchString(norm) {
			s = pt.weight
		}
	}
	return s
}

func dateUnit(norm string) string {
	switch {
	case strings.Contains(norm, "year"):
		return "year"
	case strings.Contains(norm, "month"):
		return "month"
	case strings.Contains(norm, "day") && !strings.Contains(norm, "date"):
		return "day"
	}
	return "date"
}

// normalize lowercases, removes apostrophes and turns other punctuation into spaces.
func normalize(text string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(text) {
		switch {
		case r == '\'' || r == '’':
		case unicode.IsLetter(r) || unicode.IsDigit(r):
			b.WriteRune(r)
		default:
			b.WriteRune(' ')
		}
	}
	return strings.Join(strings.Fields(b.String()), " ")
}

var stopwords = set(
	"a", "an", "the", "is", "are", "was", "be", "it", "its", "i", "me", "my", "you", "your",
	"we", "to", "of", "and", "or", "in", "on", "at", "for", "with", "do", "does", "can",
	"could", "would", "will", "please", "what", "whats", "hows", "how", "tell", "this", "that",
	"there", "so", "just", "now", "like", "about", "hey", "ok", "okay",
)

var fillers = set("um", "uh", "erm", "hmm", "mm", "ah", "oh", "huh", "er", "eh")

func set(words ...string) map[string]bool {
	m := make(map[string]bool, len(words))
	for _, w := range words {
		m[w] = true
	}
	return m
}

func contentTokens(norm string) []string {
	var out []string
	for _, w := range strings.Fields(norm) {
		if !stopwords[w] && !fillers[w] {
			out = append(out, w)
		}
	}
	return out
}
