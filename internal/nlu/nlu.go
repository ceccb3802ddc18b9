// Package nlu classifies transcripts into the assistant's intents.
package nlu

import (
	"fmt"
	log "log/slog"
	"math"
	"strings"
)

type Intent int

const (
	Unknown Intent = iota
	Weather
	Time
	Date
	GeneralQuery
)

var intentNames = map[Intent]string{
	Unknown:      "unknown",
	Weather:      "weather",
	Time:         "time",
	Date:         "date",
	GeneralQuery: "general",
}

func (i Intent) String() string {
	if s, ok := intentNames[i]; ok {
		return s
	}
	return fmt.Sprintf("intent(%d)", int(i))
}

// Builtin reports whether a local handler serves the intent.
func (i Intent) Builtin() bool {
	return i == Weather || i == Time || i == Date
}

func ParseIntent(s string) (Intent, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	for i, name := range intentNames {
		if name == s {
			return i, nil
		}
	}
	return Unknown, fmt.Errorf("unknown intent %q", s)
}

const (
	SlotLocation       = "location"
	SlotLocationSource = "location_source"
	SlotUnit           = "unit"

	SourceUtterance = "utterance"
	SourceDefault   = "default"
)

type Result struct {
	Intent     Intent
	Confidence float64
	Slots      map[string]string
}

func DefaultPriority() []Intent {
	return []Intent{Weather, Time, Date, GeneralQuery}
}

const DefaultThreshold = 0.70

type Config struct {
	Threshold    float64
	Priority     []Intent // tie order, highest first
	HomeLocation string
	Ignore       []string // words dropped before scoring, such as the wake phrase
}

type Router struct {
	cfg    Config
	bayes  *bayes
	ignore map[string]bool
}

func NewRouter(cfg Config) (*Router, error) {
	if cfg.Threshold <= 0 || cfg.Threshold > 1 {
		return nil, fmt.Errorf("threshold %v out of (0, 1]", cfg.Threshold)
	}
	if cfg.Priority == nil {
		cfg.Priority = DefaultPriority()
	}
	if err := checkPriority(cfg.Priority); err != nil {
		return nil, err
	}
	if strings.TrimSpace(cfg.HomeLocation) == "" {
		return nil, fmt.Errorf("home location is empty")
	}

	ignore := map[string]bool{}
	for _, w := range cfg.Ignore {
		for _, tok := range strings.Fields(normalize(w)) {
			ignore[tok] = true
		}
	}

	return &Router{cfg: cfg, bayes: trainBayes(examples), ignore: ignore}, nil
}

func checkPriority(p []Intent) error {
	want := map[Intent]bool{Weather: true, Time: true, Date: true, GeneralQuery: true}
	if len(p) != len(want) {
		return fmt.Errorf("priority must list %d intents, got %d", len(want), len(p))
	}
	for _, i := range p {
		if !want[i] {
			return fmt.Errorf("priority: unexpected or repeated intent %s", i)
		}
		delete(want, i)
	}
	return nil
}

func (r *Router) Threshold() float64 {
	return r.cfg.Threshold
}

// Route never fails: text without content words is Unknown with zero confidence.
//
// A builtin intent scores its best keyword or Bayes evidence, scaled by how
// much of the rest of the utterance it explains. Time and date questions
// naming a place score half.
func (r *Router) Route(transcript string) Result {
	norm := normalize(transcript)
	var tokens []string
	for _, tok := range contentTokens(norm) {
		if !r.ignore[tok] {
			tokens = append(tokens, tok)
		}
	}
	if len(tokens) == 0 {
		return Result{Intent: Unknown, Confidence: 0, Slots: map[string]string{}}
	}

	loc := extractLocation(transcript)
	place := set(contentTokens(normalize(loc))...)

	post := r.bayes.posterior(tokens)
	scores := make(map[Intent]float64, 4)

	best := 0.0
	for _, in := range []Intent{Weather, Time, Date} {
		known := func(tok string) bool { return vocabulary[in][tok] || r.bayes.seen(in, tok) }
		var skip map[string]bool
		if in == Weather {
			skip = place
		}
		s := max(keywordScore(in, norm), post[in]) * math.Sqrt(coverage(known, tokens, skip))
		if in != Weather && loc != "" {
			s /= 2
		}
		scores[in] = s
		best = max(best, s)
	}
	scores[GeneralQuery] = max(post[GeneralQuery], 1-best)

	intent, conf := pick(scores, r.cfg.Priority)
	res := Result{Intent: intent, Confidence: clamp(conf), Slots: r.slots(intent, loc, norm)}

	log.Debug("Routed", "text", transcript, "intent", res.Intent, "confidence", res.Confidence, "scores", scores)
	return res
}

// pick returns the best scoring intent. Equal scores go to the intent
// listed first in priority.
func pick(scores map[Intent]float64, priority []Intent) (Intent, float64) {
	best, bestScore := Unknown, -1.0
	for _, in := range priority {
		if s, ok := scores[in]; ok && s > bestScore {
			best, bestScore = in, s
		}
	}
	if best == Unknown {
		return Unknown, 0
	}
	return best, bestScore
}

func clamp(v float64) float64 {
	return max(0, min(1, v))
}

func (r *Router) slots(in Intent, loc, norm string) map[string]string {
	slots := map[string]string{}
	switch in {
	case Weather:
		if loc != "" {
			slots[SlotLocation] = loc
			slots[SlotLocationSource] = SourceUtterance
		} else {
			slots[SlotLocation] = r.cfg.HomeLocation
			slots[SlotLocationSource] = SourceDefault
		}
	case Time:
		slots[SlotUnit] = "time"
	case Date:
		slots[SlotUnit] = dateUnit(norm)
	}
	return slots
}
