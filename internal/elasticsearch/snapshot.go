package elasticsearch

import (
	"sort"
	"strings"
)

const (
	// StateSuccess is the only snapshot state that can be restored from
	StateSuccess = "SUCCESS"
	// DefaultRecentSnapshots is how many snapshots the listing shows
	DefaultRecentSnapshots = 5
)

// Successful returns the snapshots in SUCCESS state, preserving order
func Successful(snapshots []Snapshot) []Snapshot {
	var result []Snapshot
	for _, s := range snapshots {
		if s.State == StateSuccess {
			result = append(result, s)
		}
	}
	return result
}

// LatestSuccessful keeps the last n successful snapshots in repository order
// and returns them sorted by name, descending.
func LatestSuccessful(snapshots []Snapshot, n int) []Snapshot {
	successful := Successful(snapshots)
	if n >= 0 && len(successful) > n {
		successful = successful[len(successful)-n:]
	}

	latest := make([]Snapshot, len(successful))
	copy(latest, successful)
	sort.SliceStable(latest, func(i, j int) bool {
		return latest[i].Snapshot > latest[j].Snapshot
	})
	return latest
}

// JoinIndices renders the snapshot's indices in the order they were returned
func (s Snapshot) JoinIndices() string {
	return strings.Join(s.Indices, ", ")
}
