package domain

import "testing"

func TestMatchKeyword(t *testing.T) {
	tests := []struct {
		text string
		want Keyword
	}{
		{"STOP", KeywordStop},
		{"stop", KeywordStop},
		{" stop ", KeywordStop},
		{"Stop!", KeywordStop},
		{"unsubscribe", KeywordStop},
		{"OPT-OUT", KeywordStop},
		{"START", KeywordStart},
		{"resume", KeywordStart},
		{"Continue", KeywordStart},
		{"human", KeywordHandover},
		{"AGENT", KeywordHandover},
		{"help", KeywordHandover},
		{"", KeywordNone},
		{"please stop sending me forms", KeywordNone},
		{"I want to start a sleeve piece", KeywordNone},
		{"hello", KeywordNone},
	}

	for _, tc := range tests {
		if got := MatchKeyword(tc.text); got != tc.want {
			t.Errorf("MatchKeyword(%q) = %v, want %v", tc.text, got, tc.want)
		}
	}
}
