package gate

import (
	"strings"

	"github.com/bmatcuk/doublestar/v4"
	mapset "github.com/deckarep/golang-set/v2"
)

// NormalizePrefixes trims entries, splits comma separated values, drops
// empties, appends a trailing "/" and removes duplicates keeping the first.
func NormalizePrefixes(raw []string) []string {
	seen := mapset.NewThreadUnsafeSet[string]()
	out := make([]string, 0, len(raw))

	for _, entry := range raw {
		for p := range strings.SplitSeq(entry, ",") {
			p = strings.TrimSpace(p)
			if p == "" {
				continue
			}
			if !strings.HasSuffix(p, "/") {
				p += "/"
			}
			if seen.Add(p) {
				out = append(out, p)
			}
		}
	}
	return out
}

// MatchPrefix returns the first prefix name starts with
func MatchPrefix(prefixes []string, name string) (string, bool) {
	for _, p := range prefixes {
		if strings.HasPrefix(name, p) {
			return p, true
		}
	}
	return "", false
}

// FolderKey drops the last "/" segment of an object path.
// "Prebind/2024/10/20/a.csv" gives "Prebind/2024/10/20"; a name without a
// directory gives "".
func FolderKey(name string) string {
	idx := strings.LastIndex(name, "/")
	if idx <= 0 {
		return ""
	}
	return name[:idx]
}

func matchExclude(patterns []string, name string) (string, bool) {
	for _, p := range patterns {
		if ok, _ := doublestar.Match(p, name); ok {
			return p, true
		}
	}
	return "", false
}
