package analysis

import (
	"strings"
	"unicode/utf8"
)

// Category names a keyword vocabulary.
type Category string

const (
	CategoryUrgent   Category = "urgent"
	CategoryPolite   Category = "polite"
	CategoryGreeting Category = "greeting"
)

var (
	urgentKeywords   = []string{"urgent", "immediately", "asap", "important", "critical"}
	politeKeywords   = []string{"please", "thank you", "appreciate", "grateful", "excuse me", "kindly"}
	greetingKeywords = []string{"hello", "hi", "hey", "good morning", "good afternoon", "good evening"}
)

// Match records a vocabulary hit.
type Match struct {
	Category Category `json:"category"`
	Keyword  string   `json:"keyword"`
}

// Classification holds the lexical statistics and flags for one message.
type Classification struct {
	WordCount   int     `json:"word_count"`
	CharCount   int     `json:"char_count"`
	HasQuestion bool    `json:"has_question"`
	IsUrgent    bool    `json:"is_urgent"`
	IsPolite    bool    `json:"is_polite"`
	IsGreeting  bool    `json:"is_greeting"`
	Matches     []Match `json:"matches,omitempty"`
}

// Flags names the raised flags: urgent, polite, greeting, then question.
func (c Classification) Flags() []string {
	var flags []string
	if c.IsUrgent {
		flags = append(flags, string(CategoryUrgent))
	}
	if c.IsPolite {
		flags = append(flags, string(CategoryPolite))
	}
	if c.IsGreeting {
		flags = append(flags, string(CategoryGreeting))
	}
	if c.HasQuestion {
		flags = append(flags, "question")
	}
	return flags
}

type vocabulary struct {
	category Category
	keywords []string
}

// Classifier scans text for fixed keyword vocabularies.
//
// Matching lower-cases the text and tests substring containment, so "URGENT"
// matches "urgent" and "this" matches "hi". Keywords must be lower case.
type Classifier struct {
	vocabularies []vocabulary
}

// NewClassifier returns a classifier with the urgency, politeness and greeting vocabularies.
func NewClassifier() *Classifier {
	return &Classifier{
		vocabularies: []vocabulary{
			{category: CategoryUrgent, keywords: urgentKeywords},
			{category: CategoryPolite, keywords: politeKeywords},
			{category: CategoryGreeting, keywords: greetingKeywords},
		},
	}
}

// Keywords returns a copy of the vocabulary for category.
func (c *Classifier) Keywords(category Category) []string {
	for _, v := range c.vocabularies {
		if v.category == category {
			return append([]string(nil), v.keywords...)
		}
	}
	return nil
}

// Classify computes statistics and flags for text. The text must already be
// validated; Classify does not re-check it.
func (c *Classifier) Classify(text string) Classification {
	result := Classification{
		WordCount:   len(strings.Fields(text)),
		CharCount:   utf8.RuneCountInString(text),
		HasQuestion: strings.Contains(text, "?"),
	}

	lowered := strings.ToLower(text)
	for _, v := range c.vocabularies {
		for _, kw := range v.keywords {
			if !strings.Contains(lowered, kw) {
				continue
			}
			result.Matches = append(result.Matches, Match{Category: v.category, Keyword: kw})
			switch v.category {
			case CategoryUrgent:
				result.IsUrgent = true
			case CategoryPolite:
				result.IsPolite = true
			case CategoryGreeting:
				result.IsGreeting = true
			}
		}
	}

	return result
}
