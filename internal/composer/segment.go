package composer

// TagPrediction marks a segment that was synthesized by the prediction
// engine rather than typed by the user.
const TagPrediction = "prediction"

// SegmentStatus describes how far a segment has progressed toward commit.
type SegmentStatus int

const (
	// StatusVoid is an empty segment with no conversion result yet.
	StatusVoid SegmentStatus = iota
	// StatusGuess has a tentative candidate menu attached.
	StatusGuess
	// StatusSelected has a candidate picked but not yet confirmed.
	StatusSelected
	// StatusConfirmed is final; the selected candidate will be committed.
	StatusConfirmed
)

// Candidate is one conversion choice for a segment.
type Candidate struct {
	// Text is the output text produced if this candidate is committed.
	Text string

	// Type classifies the candidate for commit-history purposes
	// ("prediction", "punct", "raw", "thru", or an ordinary word type).
	Type string
}

// Segment is one contiguous span [Start, End) of the input buffer, together
// with its conversion state. Segments form the ordered Composition; only the
// trailing segment is ever mutated by the prediction controller.
type Segment struct {
	Start         int
	End           int
	Status        SegmentStatus
	SelectedIndex int

	tags       map[string]struct{}
	candidates []Candidate
}

// NewSegment creates a void segment spanning [start, end).
func NewSegment(start, end int) *Segment {
	return &Segment{Start: start, End: end}
}

// HasTag reports whether the segment carries the named tag.
func (s *Segment) HasTag(tag string) bool {
	_, ok := s.tags[tag]
	return ok
}

// AddTag attaches a tag to the segment.
func (s *Segment) AddTag(tag string) {
	if s.tags == nil {
		s.tags = make(map[string]struct{})
	}
	s.tags[tag] = struct{}{}
}

// RemoveTag detaches a tag from the segment.
func (s *Segment) RemoveTag(tag string) {
	delete(s.tags, tag)
}

// SetCandidates replaces the segment's candidate menu and marks the segment
// as a guess with the first candidate selected.
func (s *Segment) SetCandidates(cands []Candidate) {
	s.candidates = cands
	s.SelectedIndex = 0
	if len(cands) > 0 {
		s.Status = StatusGuess
	}
}

// CandidateAt returns the candidate at index, or nil if out of range.
func (s *Segment) CandidateAt(index int) *Candidate {
	if index < 0 || index >= len(s.candidates) {
		return nil
	}
	return &s.candidates[index]
}

// SelectedCandidate returns the currently selected candidate, or nil if the
// segment has no menu.
func (s *Segment) SelectedCandidate() *Candidate {
	return s.CandidateAt(s.SelectedIndex)
}

// CandidateCount returns the number of candidates in the segment's menu.
func (s *Segment) CandidateCount() int {
	return len(s.candidates)
}

// Clear resets the segment's conversion state: the menu is dropped and the
// status returns to void. Tags and the span are kept.
func (s *Segment) Clear() {
	s.Status = StatusVoid
	s.SelectedIndex = 0
	s.candidates = nil
}
