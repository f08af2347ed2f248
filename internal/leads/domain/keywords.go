package domain

import "strings"

// Keyword is a global policy command recognized in any conversation phase.
// Keywords are checked before phase-specific handling and can force a
// transition regardless of phase.
type Keyword int

const (
	KeywordNone Keyword = iota
	// KeywordStop opts the lead out of all further messaging.
	KeywordStop
	// KeywordStart resumes a previously opted-out or parked conversation.
	KeywordStart
	// KeywordHandover asks for a human instead of the bot.
	KeywordHandover
)

var stopWords = map[string]struct{}{
	"stop":        {},
	"unsubscribe": {},
	"optout":      {},
	"opt-out":     {},
}

var startWords = map[string]struct{}{
	"start":    {},
	"resume":   {},
	"continue": {},
}

var handoverWords = map[string]struct{}{
	"human":    {},
	"agent":    {},
	"operator": {},
	"help":     {},
}

// MatchKeyword classifies an inbound message as a global policy command.
// Only messages that consist of nothing but the command word match, so a
// sentence that happens to contain "stop" is not an opt-out.
func MatchKeyword(text string) Keyword {
	normalized := strings.ToLower(strings.TrimSpace(text))
	normalized = strings.TrimRight(normalized, ".!")

	if _, ok := stopWords[normalized]; ok {
		return KeywordStop
	}
	if _, ok := startWords[normalized]; ok {
		return KeywordStart
	}
	if _, ok := handoverWords[normalized]; ok {
		return KeywordHandover
	}
	return KeywordNone
}
