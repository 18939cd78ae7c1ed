package heuristics

// Scored is a candidate path with its calculated score
type Scored struct {
	Path  string
	Score int
}
