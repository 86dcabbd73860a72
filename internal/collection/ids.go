package collection

// NextID returns max(ids)+1, or 1 for an empty set. It is a pure function of
// the snapshot it is given: two calls against the same ids return the same
// value, so a caller must persist an allocation before allocating again.
func NextID(ids ...[]int64) int64 {
	var max int64
	for _, set := range ids {
		for _, id := range set {
			if id > max {
				max = id
			}
		}
	}
	return max + 1
}

// IDs extracts the ids of a slice of records.
func IDs[T any](records []T, id func(T) int64) []int64 {
	out := make([]int64, 0, len(records))
	for _, r := range records {
		out = append(out, id(r))
	}
	return out
}
