package composer

import "testing"

func TestNotifierOrderAndCancel(t *testing.T) {
	ctx := New()
	var order []int

	sub1 := ctx.UpdateNotifier().Subscribe(func(*Context) { order = append(order, 1) })
	sub2 := ctx.UpdateNotifier().Subscribe(func(*Context) { order = append(order, 2) })
	sub3 := ctx.UpdateNotifier().Subscribe(func(*Context) { order = append(order, 3) })

	ctx.NotifyUpdate()
	if len(order) != 3 || order[0] != 1 || order[1] != 2 || order[2] != 3 {
		t.Fatalf("registration order not respected: %v", order)
	}

	order = nil
	sub2.Cancel()
	ctx.NotifyUpdate()
	if len(order) != 2 || order[0] != 1 || order[1] != 3 {
		t.Fatalf("cancel did not remove handler: %v", order)
	}

	// Cancel is idempotent.
	sub2.Cancel()
	sub1.Cancel()
	sub3.Cancel()
	order = nil
	ctx.NotifyUpdate()
	if len(order) != 0 {
		t.Fatalf("handlers ran after cancellation: %v", order)
	}
}

func TestNotifierReentrantCancel(t *testing.T) {
	ctx := New()
	var calls int
	var sub Subscription
	sub = ctx.UpdateNotifier().Subscribe(func(*Context) {
		calls++
		sub.Cancel()
	})

	// The in-flight delivery completes; later deliveries skip the handler.
	ctx.NotifyUpdate()
	ctx.NotifyUpdate()
	if calls != 1 {
		t.Fatalf("calls = %d, want 1", calls)
	}
}

func TestSelectConfirmsAndNotifies(t *testing.T) {
	ctx := New()
	seg := NewSegment(0, 0)
	seg.SetCandidates([]Candidate{{Text: "a"}, {Text: "b"}})
	ctx.Composition().PushBack(seg)

	var notified int
	ctx.SelectNotifier().Subscribe(func(*Context) { notified++ })

	if !ctx.Select(1) {
		t.Fatal("Select(1) failed")
	}
	if seg.SelectedIndex != 1 || seg.Status != StatusConfirmed {
		t.Errorf("segment not confirmed: index=%d status=%v", seg.SelectedIndex, seg.Status)
	}
	if notified != 1 {
		t.Errorf("select notifier fired %d times, want 1", notified)
	}

	if ctx.Select(5) {
		t.Error("out-of-range select should fail")
	}
	if notified != 1 {
		t.Error("failed select must not notify")
	}
}

func TestSelectOnEmptyComposition(t *testing.T) {
	ctx := New()
	if ctx.Select(0) {
		t.Error("select on empty composition should fail")
	}
}

func TestCommitRecordsSelectedText(t *testing.T) {
	ctx := New()
	ctx.SetInput("nihao")

	first := NewSegment(0, 2)
	first.SetCandidates([]Candidate{{Text: "你", Type: "table"}})
	first.Status = StatusConfirmed
	ctx.Composition().PushBack(first)

	second := NewSegment(2, 5)
	second.SetCandidates([]Candidate{{Text: "好", Type: "table"}})
	second.Status = StatusConfirmed
	ctx.Composition().PushBack(second)

	ctx.Commit()

	if ctx.Input() != "" || !ctx.Composition().Empty() {
		t.Error("commit must empty the context")
	}
	rec := ctx.History().Back()
	if rec == nil || rec.Text != "你好" || rec.Type != "table" {
		t.Fatalf("unexpected commit record: %+v", rec)
	}
}

func TestCommitRawInput(t *testing.T) {
	ctx := New()
	ctx.SetInput("abc")
	ctx.Composition().PushBack(NewSegment(0, 3))

	ctx.Commit()

	rec := ctx.History().Back()
	if rec == nil || rec.Text != "abc" || rec.Type != CommitTypeRaw {
		t.Fatalf("unexpected commit record: %+v", rec)
	}
}

func TestCommitEmptyContextRecordsNothing(t *testing.T) {
	ctx := New()
	ctx.Commit()
	if !ctx.History().Empty() {
		t.Error("empty commit must not append a record")
	}
}

func TestHistoryCap(t *testing.T) {
	var h CommitHistory
	for i := 0; i < historyCap+7; i++ {
		h.Push(CommitRecord{Text: "x", Type: CommitTypeRaw})
	}
	if h.Len() != historyCap {
		t.Errorf("history length %d, want %d", h.Len(), historyCap)
	}
	if h.Total() != historyCap+7 {
		t.Errorf("history total %d, want %d", h.Total(), historyCap+7)
	}
}

func TestHistoryRecent(t *testing.T) {
	var h CommitHistory
	if h.Recent(3) != nil {
		t.Error("empty history must return no recent records")
	}
	h.Push(CommitRecord{Text: "a", Type: CommitTypeRaw})
	h.Push(CommitRecord{Text: "b", Type: CommitTypePrediction})

	recent := h.Recent(5)
	if len(recent) != 2 || recent[0].Text != "a" || recent[1].Text != "b" {
		t.Fatalf("unexpected recent records: %+v", recent)
	}
	recent = h.Recent(1)
	if len(recent) != 1 || recent[0].Text != "b" {
		t.Fatalf("unexpected recent records: %+v", recent)
	}
}

func TestCompositionTailAccess(t *testing.T) {
	var c Composition
	if c.Back() != nil || c.NextToBack() != nil {
		t.Error("empty composition must return nil segments")
	}
	c.PopBack() // no-op

	a, b := NewSegment(0, 1), NewSegment(1, 2)
	c.PushBack(a)
	if c.NextToBack() != nil {
		t.Error("single segment has no next-to-back")
	}
	c.PushBack(b)
	if c.Back() != b || c.NextToBack() != a {
		t.Error("tail accessors wrong")
	}
	c.PopBack()
	if c.Back() != a {
		t.Error("pop removed wrong segment")
	}
}

func TestSegmentTagsAndClear(t *testing.T) {
	seg := NewSegment(3, 3)
	seg.AddTag(TagPrediction)
	seg.SetCandidates([]Candidate{{Text: "x", Type: CommitTypePrediction}})

	if !seg.HasTag(TagPrediction) {
		t.Fatal("tag missing")
	}
	if seg.Status != StatusGuess {
		t.Errorf("status %v, want guess", seg.Status)
	}

	seg.Clear()
	if seg.Status != StatusVoid || seg.CandidateCount() != 0 || seg.SelectedIndex != 0 {
		t.Error("clear did not reset conversion state")
	}
	if !seg.HasTag(TagPrediction) {
		t.Error("clear must keep tags")
	}

	seg.RemoveTag(TagPrediction)
	if seg.HasTag(TagPrediction) {
		t.Error("tag not removed")
	}
}

func TestOptions(t *testing.T) {
	ctx := New()
	if ctx.GetOption(OptionPrediction) {
		t.Error("unset option must read false")
	}

	var got []string
	ctx.OptionNotifier().Subscribe(func(_ *Context, name string) {
		got = append(got, name)
	})
	ctx.SetOption(OptionPrediction, true)
	ctx.SetOption(OptionASCIIMode, false)

	if !ctx.GetOption(OptionPrediction) {
		t.Error("option not stored")
	}
	if len(got) != 2 || got[0] != OptionPrediction || got[1] != OptionASCIIMode {
		t.Errorf("option notifications: %v", got)
	}
}
