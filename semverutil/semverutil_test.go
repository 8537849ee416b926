package semverutil

import "testing"

func TestVersionInRange(t *testing.T) {
	cases := []struct {
		name       string
		version    string
		constraint string
		want       bool
	}{
		{"empty constraint matches always", "1.2.3", "", true},
		{"exact bare version matches", "1.2.3", "1.2.3", true},
		{"exact bare version mismatch", "1.2.4", "1.2.3", false},
		{"caret range within", "1.5.0", "^1.2.3", true},
		{"caret range outside", "2.0.0", "^1.2.3", false},
		{"tilde range within", "1.2.9", "~1.2.3", true},
		{"unparsable constraint matches never", "1.2.3", "not a constraint!!", false},
		{"unparsable version matches never", "not-a-version", "^1.0.0", false},
		{"comparison operator", "2.0.0", ">=1.0.0", true},
		{"partial-version wildcard constraint does not match", "1.2.3", "2", false},
		{"garbage constraint matches never", "1.2.3", "%^&%^&%", false},
	}

	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			if got := VersionInRange(c.version, c.constraint); got != c.want {
				t.Errorf("VersionInRange(%q, %q) = %v, want %v", c.version, c.constraint, got, c.want)
			}
		})
	}
}
