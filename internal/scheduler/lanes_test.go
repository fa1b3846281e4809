package scheduler

import "testing"

func TestLanePriorityOrdering(t *testing.T) {
	ls := NewLaneScheduler()
	ls.Submit(LaneTask{ID: "d1", Lane: LaneDelegate})
	ls.Submit(LaneTask{ID: "m1", Lane: LaneMain})

	next, ok := ls.Next()
	if !ok || next.ID != "m1" {
		t.Fatalf("expected m1 first, got %+v ok=%v", next, ok)
	}
	ls.Complete(LaneMain)

	next, ok = ls.Next()
	if !ok || next.ID != "d1" {
		t.Fatalf("expected d1 second, got %+v ok=%v", next, ok)
	}
	ls.Complete(LaneDelegate)
}

func TestLaneConcurrencyLimits(t *testing.T) {
	ls := NewLaneScheduler()
	ls.Submit(LaneTask{ID: "d1", Lane: LaneDelegate})
	ls.Submit(LaneTask{ID: "d2", Lane: LaneDelegate})
	ls.Submit(LaneTask{ID: "d3", Lane: LaneDelegate})

	if _, ok := ls.Next(); !ok {
		t.Fatal("expected d1 to dequeue")
	}
	if _, ok := ls.Next(); !ok {
		t.Fatal("expected d2 to dequeue")
	}
	if _, ok := ls.Next(); ok {
		t.Fatal("expected delegate lane at capacity (2)")
	}

	ls.Complete(LaneDelegate)
	if _, ok := ls.Next(); !ok {
		t.Fatal("expected d3 to dequeue after a completion frees a slot")
	}
}

func TestLaneFairnessFourLanes(t *testing.T) {
	ls := NewLaneScheduler()
	for i := 0; i < 5; i++ {
		ls.Submit(LaneTask{ID: "delegate", Lane: LaneDelegate})
	}
	ls.Submit(LaneTask{ID: "main", Lane: LaneMain})

	first, ok := ls.Next()
	if !ok || first.Lane != LaneMain {
		t.Fatalf("expected Main dequeued first, got %+v", first)
	}
	ls.Complete(LaneMain)

	for i := 0; i < 2; i++ {
		next, ok := ls.Next()
		if !ok || next.Lane != LaneDelegate {
			t.Fatalf("expected Delegate dequeue %d, got %+v ok=%v", i, next, ok)
		}
	}
	if _, ok := ls.Next(); ok {
		t.Fatal("expected delegate lane exhausted at capacity 2")
	}
	ls.Complete(LaneDelegate)
	ls.Complete(LaneDelegate)
	for i := 0; i < 2; i++ {
		if _, ok := ls.Next(); !ok {
			t.Fatalf("expected further delegate dequeue %d after completions", i)
		}
	}
}

func TestLaneStats(t *testing.T) {
	ls := NewLaneScheduler()
	ls.Submit(LaneTask{ID: "m1", Lane: LaneMain})
	ls.Submit(LaneTask{ID: "c1", Lane: LaneCron})

	stats := ls.Stats()
	if len(stats) != 4 {
		t.Fatalf("expected 4 lanes, got %d", len(stats))
	}
	if stats[LaneMain].Queued != 1 || stats[LaneCron].Queued != 1 {
		t.Fatalf("unexpected queue depths: %+v", stats)
	}
	if stats[LaneSubagent].Queued != 0 || stats[LaneDelegate].Queued != 0 {
		t.Fatalf("expected empty lanes, got %+v", stats)
	}
}
