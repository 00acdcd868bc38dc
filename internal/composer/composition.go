package composer

// Composition is the ordered sequence of segments covering the in-progress
// input. It deliberately exposes only tail-oriented mutation: callers may
// push, pop, or clear the trailing segment, and read the last two segments,
// but never rewrite arbitrary interior segments. That keeps the
// one-prediction-segment-at-the-tail invariant enforceable by construction.
type Composition struct {
	segments []*Segment
}

// Empty reports whether the composition has no segments.
func (c *Composition) Empty() bool {
	return len(c.segments) == 0
}

// Len returns the number of segments.
func (c *Composition) Len() int {
	return len(c.segments)
}

// Back returns the trailing segment, or nil if the composition is empty.
func (c *Composition) Back() *Segment {
	if len(c.segments) == 0 {
		return nil
	}
	return c.segments[len(c.segments)-1]
}

// NextToBack returns the segment immediately before the trailing one, or nil
// if there are fewer than two segments.
func (c *Composition) NextToBack() *Segment {
	if len(c.segments) < 2 {
		return nil
	}
	return c.segments[len(c.segments)-2]
}

// PushBack appends a segment at the tail.
func (c *Composition) PushBack(seg *Segment) {
	c.segments = append(c.segments, seg)
}

// PopBack removes the trailing segment. No-op on an empty composition.
func (c *Composition) PopBack() {
	if len(c.segments) == 0 {
		return
	}
	c.segments = c.segments[:len(c.segments)-1]
}

// Clear removes all segments.
func (c *Composition) Clear() {
	c.segments = nil
}

// forEach visits segments in order. Used by Context when assembling the
// commit text; not exported so external packages stay tail-only.
func (c *Composition) forEach(fn func(*Segment)) {
	for _, seg := range c.segments {
		fn(seg)
	}
}
