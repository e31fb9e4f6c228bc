package like

import "testing"

// TestMatch checks the LIKE semantics against representative patterns
func TestMatch(t *testing.T) {
	cases := []struct {
		pattern string
		value   string
		want    bool
	}{
		// empty pattern and bare % match anything
		{"", "anything", true},
		{"", "", true},
		{"%", "anything", true},
		{"%", "", true},

		// single-char wildcard
		{"a_c", "abc", true},
		{"a_c", "ac", false},
		{"a_c", "abbc", false},

		// runs
		{"a%c", "ac", true},
		{"a%c", "abc", true},
		{"a%c", "axxxc", true},
		{"a%c", "ab", false},
		{"%miss%", "near-miss-hit", true},
		{"%miss%", "nothing", false},

		// literal wildcard characters get escaped during translation
		{"a*b", "a*b", true},
		{"a*b", "axb", false},
		{"a*b", "ab", false},
		{"a?b", "a?b", true},
		{"a?b", "axb", false},

		// anchoring
		{"abc", "abc", true},
		{"abc", "abcd", false},
		{"abc", "xabc", false},
	}

	for _, c := range cases {
		m := NewMatcher(c.pattern)
		if got := m.Match(c.value); got != c.want {
			t.Errorf("pattern %q against %q: got %v, want %v", c.pattern, c.value, got, c.want)
		}
	}
}

// TestVector checks filtered collection and the formatted variant
func TestVector(t *testing.T) {
	v := NewVector("query_%")

	if v.ColKey != "Variable_name" || v.ColValue != "Value" {
		t.Errorf("unexpected column labels: %q / %q", v.ColKey, v.ColValue)
	}

	if !v.MatchAdd("query_time") {
		t.Error("query_time should match query_%")
	}
	if v.MatchAdd("uptime") {
		t.Error("uptime should not match query_%")
	}
	if !v.MatchAddf("query_%s", "count") {
		t.Error("formatted value should match")
	}

	if len(v.Values) != 2 || v.Values[0] != "query_time" || v.Values[1] != "query_count" {
		t.Errorf("unexpected collected values: %v", v.Values)
	}
}
