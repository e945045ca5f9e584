package trendline

// Pair is an unordered pair of pivot positions, stored with A < B.
type Pair struct {
	A, B int
}

// NewPair orders i and j into a Pair.
func NewPair(i, j int) Pair {
	if i > j {
		i, j = j, i
	}
	return Pair{A: i, B: j}
}

// PairSet records seed pairs already claimed by an emitted trendline.
type PairSet map[Pair]struct{}

// NewPairSet returns an empty set.
func NewPairSet() PairSet {
	return make(PairSet)
}

// Has reports whether the pair (i, j) is consumed.
func (s PairSet) Has(i, j int) bool {
	_, ok := s[NewPair(i, j)]
	return ok
}

// Add marks the pair (i, j) consumed.
func (s PairSet) Add(i, j int) {
	s[NewPair(i, j)] = struct{}{}
}

// AddAll marks every pairwise combination of members consumed.
func (s PairSet) AddAll(members []int) {
	for a := 0; a < len(members); a++ {
		for b := a + 1; b < len(members); b++ {
			s.Add(members[a], members[b])
		}
	}
}

// Clone returns an independent copy. A nil set clones to an empty one.
func (s PairSet) Clone() PairSet {
	out := make(PairSet, len(s))
	for k := range s {
		out[k] = struct{}{}
	}
	return out
}
