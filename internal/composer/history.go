package composer

// Commit record types with fixed meaning to the prediction controller.
// Ordinary word commits carry the candidate's own type instead.
const (
	CommitTypePunct      = "punct"
	CommitTypeRaw        = "raw"
	CommitTypeThru       = "thru"
	CommitTypePrediction = "prediction"
)

// historyCap bounds the commit history; older records are discarded.
const historyCap = 20

// CommitRecord is one piece of text that has left the composition.
type CommitRecord struct {
	Text string
	Type string
}

// CommitHistory is the append-only log of committed text. Only the most
// recent record is ever inspected by the prediction controller; frontends
// drain newly committed text through Total and Recent.
type CommitHistory struct {
	records []CommitRecord
	total   uint64
}

// Empty reports whether no commits have been recorded.
func (h *CommitHistory) Empty() bool {
	return len(h.records) == 0
}

// Len returns the number of retained records.
func (h *CommitHistory) Len() int {
	return len(h.records)
}

// Push appends a record, discarding the oldest once the cap is reached.
func (h *CommitHistory) Push(rec CommitRecord) {
	h.records = append(h.records, rec)
	h.total++
	if len(h.records) > historyCap {
		h.records = h.records[len(h.records)-historyCap:]
	}
}

// Total returns the number of records ever pushed, including discarded ones.
func (h *CommitHistory) Total() uint64 {
	return h.total
}

// Recent returns up to n of the most recent records, oldest first.
func (h *CommitHistory) Recent(n int) []CommitRecord {
	if n > len(h.records) {
		n = len(h.records)
	}
	if n <= 0 {
		return nil
	}
	return h.records[len(h.records)-n:]
}

// Back returns the most recent record, or nil if the history is empty.
func (h *CommitHistory) Back() *CommitRecord {
	if len(h.records) == 0 {
		return nil
	}
	return &h.records[len(h.records)-1]
}
