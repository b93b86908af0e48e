package audio

import (
	"fmt"
	"os"
	"sort"
	"strings"
	"unicode"
)

// #region stop-words
// stopWords drops filler words longer than three letters; shorter words
// are discarded by length anyway.
var stopWords = map[string]bool{
	"about": true, "above": true, "after": true, "again": true, "against": true,
	"because": true, "been": true, "before": true, "being": true, "below": true,
	"between": true, "both": true, "does": true, "doing": true, "down": true,
	"during": true, "each": true, "from": true, "further": true, "have": true,
	"having": true, "here": true, "hers": true, "herself": true, "himself": true,
	"into": true, "itself": true, "just": true, "more": true, "most": true,
	"myself": true, "once": true, "only": true, "other": true, "ours": true,
	"ourselves": true, "over": true, "same": true, "should": true, "some": true,
	"such": true, "than": true, "that": true, "their": true, "theirs": true,
	"them": true, "themselves": true, "then": true, "there": true, "these": true,
	"they": true, "this": true, "those": true, "through": true, "under": true,
	"until": true, "very": true, "were": true, "what": true, "when": true,
	"where": true, "which": true, "while": true, "whom": true, "will": true,
	"with": true, "would": true, "your": true, "yours": true, "yourself": true,
	"yourselves": true,
}
// #endregion stop-words

// #region question-paper
// QuestionPaper holds the distinctive words of an exam paper.
type QuestionPaper struct {
	words map[string]bool
}

// LoadQuestionPaper reads and indexes a plain-text question paper.
func LoadQuestionPaper(path string) (*QuestionPaper, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read question paper: %w", err)
	}
	return ParseQuestionPaper(string(data)), nil
}

// ParseQuestionPaper indexes text, keeping words longer than three
// letters that are not stop words.
func ParseQuestionPaper(text string) *QuestionPaper {
	q := &QuestionPaper{words: map[string]bool{}}
	for _, w := range tokenize(text) {
		q.words[w] = true
	}
	return q
}

// Len returns the number of indexed words.
func (q *QuestionPaper) Len() int {
	if q == nil {
		return 0
	}
	return len(q.words)
}

// Matches returns "question:<word>" for each distinct transcript word found
// in the paper, sorted, when more than minMatches words are shared.
// Otherwise it returns nil.
func (q *QuestionPaper) Matches(transcript string, minMatches int) []string {
	if q.Len() == 0 {
		return nil
	}
	seen := map[string]bool{}
	var common []string
	for _, w := range tokenize(transcript) {
		if q.words[w] && !seen[w] {
			seen[w] = true
			common = append(common, w)
		}
	}
	if len(common) <= minMatches {
		return nil
	}
	sort.Strings(common)
	out := make([]string, len(common))
	for i, w := range common {
		out[i] = "question:" + w
	}
	return out
}

func tokenize(text string) []string {
	fields := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	out := fields[:0]
	for _, f := range fields {
		if len([]rune(f)) <= 3 || stopWords[f] {
			continue
		}
		out = append(out, f)
	}
	return out
}
// #endregion question-paper
