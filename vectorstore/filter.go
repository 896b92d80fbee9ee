package vectorstore

import "fmt"

// MatchesFilter reports whether metadata satisfies every filter entry by
// equality. Values are compared by their string rendering so that numbers
// survive a JSON round trip (int vs float64) without surprising misses.
func MatchesFilter(metadata, filter map[string]any) bool {
	for key, want := range filter {
		got, ok := metadata[key]
		if !ok {
			return false
		}
		if fmt.Sprint(got) != fmt.Sprint(want) {
			return false
		}
	}
	return true
}
