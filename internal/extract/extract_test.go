package extract

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSentences(t *testing.T) {
	tests := []struct {
		name string
		text string
		want []string
	}{
		{
			name: "terminal punctuation",
			text: "Raju works at DRC Systems. Raju left DRC Systems in 2024! Did he return?",
			want: []string{
				"Raju works at DRC Systems",
				"Raju left DRC Systems in 2024",
				"Did he return",
			},
		},
		{
			name: "trailing text without terminator",
			text: "First sentence. trailing fragment",
			want: []string{"First sentence", "trailing fragment"},
		},
		{
			name: "empty",
			text: "",
			want: nil,
		},
		{
			name: "whitespace only",
			text: "   \n\t  ",
			want: nil,
		},
		{
			name: "repeated terminators",
			text: "Really?! Yes.",
			want: []string{"Really", "Yes"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Sentences(tt.text))
		})
	}
}

func TestHasNegation(t *testing.T) {
	tests := []struct {
		text string
		want bool
	}{
		{"Raju left DRC Systems in 2024", true},
		{"He is not happy with the outcome", true},
		{"She no longer works there", true},
		{"He doesn't attend the meetings", true},
		{"Parth stopped drinking coffee", true},
		{"Maya resigned from her position", true},
		{"Raju works at DRC Systems", false},
		{"Adil is Parth's good friend", false},
		{"", false},
		// Marker must be a whole word: "quit" inside "quite" is no match.
		{"The results were quite good", false},
		// But "leftover" must not trigger on "left".
		{"We ate the leftover pizza", false},
		// Markers still match with sentence-final punctuation attached.
		{"He quit.", true},
		{"Did she resign? No, she stopped!", true},
		{"User: where is Raju\nAssistant: Raju left.", true},
	}

	for _, tt := range tests {
		t.Run(tt.text, func(t *testing.T) {
			assert.Equal(t, tt.want, HasNegation(tt.text), "text: %q", tt.text)
		})
	}
}

func TestIsNegationSensitive(t *testing.T) {
	assert.True(t, IsNegationSensitive("Is Raju still at DRC?"))
	assert.True(t, IsNegationSensitive("does he work there anymore"))
	assert.True(t, IsNegationSensitive("Does he work there anymore?"))
	assert.False(t, IsNegationSensitive("who are Parth's good friends?"))
	assert.False(t, IsNegationSensitive(""))
}

func TestEntities(t *testing.T) {
	tests := []struct {
		name string
		text string
		want []string
	}{
		{
			name: "multi-word span",
			text: "Raju works at DRC Systems.",
			want: []string{"Raju", "DRC Systems"},
		},
		{
			name: "span broken by sentence end",
			text: "He joined DRC. Systems engineering is his field.",
			want: []string{"He", "DRC", "Systems"},
		},
		{
			name: "possessive",
			text: "Adil is Parth's good friend.",
			want: []string{"Adil", "Parth's"},
		},
		{
			name: "no capitals",
			text: "nothing capitalised here.",
			want: nil,
		},
		{
			name: "deduplicated",
			text: "Raju met Raju.",
			want: []string{"Raju"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Entities(tt.text))
		})
	}
}

func TestQueryTerms(t *testing.T) {
	tests := []struct {
		name  string
		query string
		want  []string
	}{
		{
			name:  "stop words and short words dropped",
			query: "Is Raju still at DRC?",
			want:  []string{"raju", "drc"},
		},
		{
			name:  "typo correction",
			query: "who is my best frnd",
			want:  []string{"best", "friend"},
		},
		{
			name:  "deduplication",
			query: "raju raju raju",
			want:  []string{"raju"},
		},
		{
			name:  "empty",
			query: "",
			want:  nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, QueryTerms(tt.query))
		})
	}
}
