package nlu

import "math"

var examples = map[Intent][]string{
	Weather: {
		"what's the weather like",
		"how's the weather today",
		"is it going to rain",
		"what's the temperature outside",
		"will it be sunny tomorrow",
		"what's the forecast",
		"how hot is it today",
		"is it cold outside",
		"what's the weather in paris",
		"do i need an umbrella",
		"will it snow this weekend",
		"how windy is it",
	},
	Time: {
		"what time is it",
		"what's the current time",
		"tell me the time",
		"what time is it right now",
		"do you have the time",
		"current time please",
		"what hour is it",
	},
	Date: {
		"what's today's date",
		"what day is it",
		"what month is it",
		"what's the date today",
		"tell me today's date",
		"what year is it",
		"which day of the week is it",
		"what is the date",
	},
	GeneralQuery: {
		"tell me a joke",
		"who wrote hamlet",
		"explain how a rainbow forms",
		"what is the capital of france",
		"how do i cook rice",
		"write a short poem about the sea",
		"what's the meaning of life",
		"summarize the history of rome",
		"how far away is the moon",
		"recommend a good book",
		"translate hello into spanish",
		"why is the sky blue",
		"help me plan a trip",
		"what should i have for dinner",
	},
}

// bayes is a multinomial naive Bayes classifier with Laplace smoothing and
// uniform priors.
type bayes struct {
	classes []Intent
	counts  map[Intent]map[string]int
	totals  map[Intent]int
	vocab   map[string]bool
}

func trainBayes(data map[Intent][]string) *bayes {
	b := &bayes{
		counts: make(map[Intent]map[string]int),
		totals: make(map[Intent]int),
		vocab:  make(map[string]bool),
	}

	for _, in := range []Intent{Weather, Time, Date, GeneralQuery} {
		phrases, ok := data[in]
		if !ok {
			continue
		}
		b.classes = append(b.classes, in)
		b.counts[in] = make(map[string]int)
		for _, ph := range phrases {
			for _, tok := range contentTokens(normalize(ph)) {
				b.counts[in][tok]++
				b.totals[in]++
				b.vocab[tok] = true
			}
		}
	}
	return b
}

func (b *bayes) seen(in Intent, tok string) bool {
	return b.counts[in][tok] > 0
}

// posterior returns P(class | tokens). Tokens never seen in training are
// ignored; if none are known the result is uniform.
func (b *bayes) posterior(tokens []string) map[Intent]float64 {
	logp := make(map[Intent]float64, len(b.classes))
	v := float64(len(b.vocab))

	for _, c := range b.classes {
		var lp float64
		for _, tok := range tokens {
			if !b.vocab[tok] {
				continue
			}
			lp += math.Log((float64(b.counts[c][tok]) + 1) / (float64(b.totals[c]) + v))
		}
		logp[c] = lp
	}

	top := math.Inf(-1)
	for _, lp := range logp {
		top = max(top, lp)
	}

	var sum float64
	out := make(map[Intent]float64, len(logp))
	for c, lp := range logp {
		out[c] = math.Exp(lp - top)
		sum += out[c]
	}
	for c := range out {
		out[c] /= sum
	}
	return out
}
