package pinexec

import "testing"

func TestParseBlockers(t *testing.T) {
	cases := []struct {
		name   string
		stderr string
		want   []string
	}{
		{
			name:   "single blocker",
			stderr: "error: failed to select a version\nbecause foo requires bar ^2\n",
			want:   []string{"foo"},
		},
		{
			name:   "multiple distinct blockers",
			stderr: "because foo requires bar ^2\nbecause baz requires qux ~1\n",
			want:   []string{"foo", "baz"},
		},
		{
			name:   "duplicate blockers deduped",
			stderr: "because foo requires bar ^2\nbecause foo requires quux ^1\n",
			want:   []string{"foo"},
		},
		{
			name:   "no recognizable blocker",
			stderr: "error: some other unrelated failure\n",
			want:   nil,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := parseBlockers(tc.stderr)
			if len(got) != len(tc.want) {
				t.Fatalf("got %v, want %v", got, tc.want)
			}
			for i := range tc.want {
				if got[i] != tc.want[i] {
					t.Errorf("position %d: got %s, want %s", i, got[i], tc.want[i])
				}
			}
		})
	}
}
