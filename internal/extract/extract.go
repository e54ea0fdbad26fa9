// Package extract implements the lexical heuristics used across the engine:
// sentence splitting, negation detection, coarse entity extraction and query
// term normalisation.
//
// These are deliberately simple pattern matches, not an NLP pipeline. They
// are kept in one small package so a proper NER or negation-scope model can
// replace them without touching retrieval orchestration.
package extract

import (
	"strings"
	"unicode"
)

// negationMarkers is the fixed lexicon of markers that flag a chunk as
// expressing absence or termination of a fact. Matching is done on
// whitespace-split lowercased words, so multi-word markers are checked
// against the joined text.
var negationMarkers = []string{
	"not",
	"never",
	"no longer",
	"no more",
	"doesn't",
	"don't",
	"didn't",
	"isn't",
	"wasn't",
	"left",
	"leaves",
	"leaving",
	"stopped",
	"stops",
	"stopping",
	"quit",
	"quits",
	"resigned",
	"resigns",
}

// negationSensitiveTerms are query words that signal the caller is asking
// about the current validity of a fact, where contradicting (negated)
// memories must not be drowned out by affirmative ones.
var negationSensitiveTerms = []string{
	"still", "anymore", "any more", "yet", "currently", "now",
}

// typoFixes maps common misspellings to corrections before term
// extraction. Small and static on purpose.
var typoFixes = map[string]string{
	"fidn":   "friend",
	"frnd":   "friend",
	"fren":   "friend",
	"wrk":    "work",
	"wrking": "working",
}

// Sentences splits text on terminal punctuation (. ! ?) into trimmed,
// non-empty sentences. It never splits on other characters, so abbreviation
// dots produce extra short sentences; the chunker tolerates that.
func Sentences(text string) []string {
	var sentences []string
	var current strings.Builder

	for _, r := range text {
		if r == '.' || r == '!' || r == '?' {
			if s := strings.TrimSpace(current.String()); s != "" {
				sentences = append(sentences, s)
			}
			current.Reset()
			continue
		}
		current.WriteRune(r)
	}

	if s := strings.TrimSpace(current.String()); s != "" {
		sentences = append(sentences, s)
	}

	return sentences
}

// HasNegation reports whether the text contains any lexicon negation
// marker. This is a lexical check only: a marker that does not semantically
// negate the main claim still flags the text.
func HasNegation(text string) bool {
	return containsAny(text, negationMarkers)
}

// IsNegationSensitive reports whether a query asks about the current
// validity of a fact ("is he still there", "does she work there anymore").
func IsNegationSensitive(query string) bool {
	return containsAny(query, negationSensitiveTerms)
}

// containsAny does word-boundary matching of lowercased markers against
// lowercased text. Multi-word markers match as substrings of the joined
// word sequence.
func containsAny(text string, markers []string) bool {
	words := strings.Fields(strings.ToLower(text))
	if len(words) == 0 {
		return false
	}
	for i, w := range words {
		words[i] = strings.Trim(w, ".,;:!?\"'()")
	}
	joined := " " + strings.Join(words, " ") + " "

	for _, marker := range markers {
		if strings.Contains(joined, " "+marker+" ") {
			return true
		}
	}
	return false
}

// Entities extracts capitalised multi-word spans as candidate entity names.
// "Raju works at DRC Systems" yields ["Raju", "DRC Systems"]. A heuristic
// substitute for named-entity recognition: sentence-initial words are
// included, which over-matches, and that is accepted.
func Entities(text string) []string {
	words := strings.Fields(text)

	var entities []string
	seen := make(map[string]bool)
	var span []string

	flush := func() {
		if len(span) == 0 {
			return
		}
		name := strings.Join(span, " ")
		if !seen[name] {
			seen[name] = true
			entities = append(entities, name)
		}
		span = nil
	}

	for _, w := range words {
		trimmed := strings.Trim(w, ".,;:!?\"'()")
		if trimmed == "" {
			flush()
			continue
		}
		r := []rune(trimmed)[0]
		if unicode.IsUpper(r) {
			span = append(span, trimmed)
		} else {
			flush()
		}
		// Terminal punctuation ends a span even mid-capitalised run.
		if strings.ContainsAny(w, ".!?") {
			flush()
		}
	}
	flush()

	return entities
}

// stopWords are short function words that carry no entity signal.
var stopWords = map[string]bool{
	"the": true, "and": true, "are": true, "was": true, "who": true,
	"what": true, "does": true, "did": true, "has": true, "had": true,
	"his": true, "her": true, "this": true, "that": true, "with": true,
	"still": true, "anymore": true, "good": true,
}

// QueryTerms normalises a query for entity/relationship matching: typo
// correction, lowercasing, punctuation stripping, and filtering of short
// words and stop words.
func QueryTerms(query string) []string {
	words := strings.Fields(strings.ToLower(query))

	var terms []string
	seen := make(map[string]bool)
	for _, w := range words {
		w = strings.Trim(w, ".,;:!?\"'()")
		if fix, ok := typoFixes[w]; ok {
			w = fix
		}
		if len(w) < 3 || stopWords[w] || seen[w] {
			continue
		}
		seen[w] = true
		terms = append(terms, w)
	}
	return terms
}
