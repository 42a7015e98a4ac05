package classify

import (
	"strings"
	"testing"

	"pgregory.net/rapid"
)

func TestMatchKnownArtifacts(t *testing.T) {
	cases := []struct {
		name     string
		url      string
		filename string
		want     bool
	}{
		{"gzipped demo url", "https://demos-us-east.backblazeb2.com/cs2/1-abc.dem.gz?sig=xyz", "", true},
		{"demo word in url", "https://cdn.example.com/demo/match-123", "", true},
		{"replay word in filename", "https://cdn.example.com/dl/4711", "match_replay.gz", true},
		{"dem extension in filename", "https://cdn.example.com/dl/4711", "1-abc-def.dem", true},
		{"uppercase markers", "https://CDN.EXAMPLE.COM/DEMOS/1.DEM", "", true},
		{"unrelated image", "https://cdn.example.com/avatars/a.png", "a.png", false},
		{"unrelated archive", "https://cdn.example.com/files/report.tar.gz", "report.tar.gz", false},
		{"empty pair", "", "", false},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := Match(tc.url, tc.filename); got != tc.want {
				t.Fatalf("Match(%q, %q) = %v; want %v", tc.url, tc.filename, got, tc.want)
			}
		})
	}
}

// Property: any pair where one field contains a marker matches, regardless of
// surrounding noise or letter case.
func TestMatchMarkerContainment(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		marker := rapid.SampledFrom(markers).Draw(rt, "marker")
		prefix := rapid.StringMatching(`[a-z0-9/:._-]{0,40}`).Draw(rt, "prefix")
		suffix := rapid.StringMatching(`[a-z0-9/:._-]{0,40}`).Draw(rt, "suffix")

		field := prefix + strings.ToUpper(marker) + suffix
		inURL := rapid.Bool().Draw(rt, "inURL")

		var url, filename string
		if inURL {
			url = field
		} else {
			filename = field
		}

		if !Match(url, filename) {
			rt.Fatalf("Match(%q, %q) = false; field contains marker %q", url, filename, marker)
		}
	})
}

// Property: pairs built from an alphabet that cannot spell any marker never match.
func TestMatchNoMarkerNoMatch(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		// No 'd', 'm', 'e', 'o', 'r', 'p', 'l', 'a', 'y' or '.' means no
		// marker can occur as a substring.
		url := rapid.StringMatching(`[bcfghijknqstuvwxz0-9/_-]{0,60}`).Draw(rt, "url")
		filename := rapid.StringMatching(`[bcfghijknqstuvwxz0-9_-]{0,60}`).Draw(rt, "filename")

		if Match(url, filename) {
			rt.Fatalf("Match(%q, %q) = true; want false", url, filename)
		}
	})
}
