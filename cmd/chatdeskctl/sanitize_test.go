package main

import "testing"

func TestTerminalSafe(t *testing.T) {
	cases := []struct {
		name, in, want string
	}{
		{"plain", "hello team", "hello team"},
		{"line breaks", "one\ntwo\r\nthree", "one two  three"},
		{"escape sequence", "\x1b[2Jboom", "[2Jboom"},
		{"skin tone", "👍🏻", "👍"},
		{"joiner", "👩‍💻", "👩💻"},
		{"variation selector", "❤️", "❤"},
		{"call log", "📞 Missed Audio call from Alice", "📞 Missed Audio call from Alice"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := terminalSafe(tc.in); got != tc.want {
				t.Errorf("terminalSafe(%q) = %q, want %q", tc.in, got, tc.want)
			}
		})
	}
}
