package task

import "math/rand/v2"

// assignRandom draws an independent, uniformly random member for each task id.
// The same member may receive zero, one, or many tasks. intn is injectable so
// tests can fix the draws; pass nil for the default source.
func assignRandom(taskIDs, memberIDs []string, intn func(int) int) map[string]string {
	if intn == nil {
		intn = rand.IntN
	}
	assignments := make(map[string]string, len(taskIDs))
	for _, id := range taskIDs {
		assignments[id] = memberIDs[intn(len(memberIDs))]
	}
	return assignments
}
