package bus

import (
	"testing"
	"time"
)

func TestPublishAndReplayOrder(t *testing.T) {
	b := New()
	execID := "exec-1"

	b.Publish(execID, ExecutionStart(execID, "wf-1"))
	b.Publish(execID, NodeStart(execID, "n1", "Input"))
	b.Publish(execID, NodeComplete(execID, "n1", "hello"))
	b.Publish(execID, ExecutionComplete(execID, "hello"))

	all := b.Replay(execID, nil)
	if len(all) != 4 {
		t.Fatalf("expected 4 events, got %d", len(all))
	}
	if all[0].Kind != EventExecutionStart || all[len(all)-1].Kind != EventExecutionComplete {
		t.Fatalf("unexpected envelope ordering: %+v", all)
	}
	for i, ev := range all {
		if ev.Sequence != int64(i+1) {
			t.Fatalf("expected monotonic sequence, event %d has seq %d", i, ev.Sequence)
		}
	}
}

func TestReplayAfterTimestampFiltersPrefix(t *testing.T) {
	b := New()
	execID := "exec-1"

	b.Publish(execID, NodeStart(execID, "n1", "Input"))
	cut := time.Now()
	time.Sleep(2 * time.Millisecond)
	b.Publish(execID, NodeComplete(execID, "n1", "hello"))

	after := b.Replay(execID, &cut)
	if len(after) != 1 {
		t.Fatalf("expected 1 event strictly after cut, got %d", len(after))
	}
	if after[0].Kind != EventNodeComplete {
		t.Fatalf("unexpected event: %+v", after[0])
	}
}

func TestSubscribeLiveDeliversPublishedEvents(t *testing.T) {
	b := New()
	execID := "exec-1"

	sub := b.Subscribe(execID, nil)
	defer sub.Unsubscribe()

	go b.Publish(execID, ExecutionStart(execID, "wf-1"))

	select {
	case ev := <-sub.Events:
		if ev.Kind != EventExecutionStart {
			t.Fatalf("unexpected event: %+v", ev)
		}
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for live event")
	}
}

func TestSubscribeWithNoAfterReplaysFromBeginning(t *testing.T) {
	b := New()
	execID := "exec-1"

	b.Publish(execID, ExecutionStart(execID, "wf-1"))
	b.Publish(execID, NodeStart(execID, "n1", "Input"))

	sub := b.Subscribe(execID, nil)
	defer sub.Unsubscribe()

	first := <-sub.Events
	second := <-sub.Events
	if first.Kind != EventExecutionStart || second.Kind != EventNodeStart {
		t.Fatalf("expected full replay from the beginning, got %+v then %+v", first, second)
	}
}

// I3: a subscriber joining with afterTimestamp=t, concatenated with the
// journal entries at-or-before t, reproduces a prefix of the full stream.
func TestSubscribeCatchUpThenLiveIsOrderedWithNoDuplicates(t *testing.T) {
	b := New()
	execID := "exec-1"

	b.Publish(execID, ExecutionStart(execID, "wf-1"))
	mid := time.Now()
	time.Sleep(2 * time.Millisecond)
	b.Publish(execID, NodeStart(execID, "n1", "Input"))

	sub := b.Subscribe(execID, &mid)
	defer sub.Unsubscribe()

	// Catch-up replay should only carry the post-mid event ...
	catchUp := <-sub.Events
	if catchUp.Kind != EventNodeStart {
		t.Fatalf("expected catch-up replay of NodeStart, got %+v", catchUp)
	}

	// ... then live events continue seamlessly in order.
	go b.Publish(execID, NodeComplete(execID, "n1", "done"))
	live := <-sub.Events
	if live.Kind != EventNodeComplete {
		t.Fatalf("expected live NodeComplete after catch-up, got %+v", live)
	}
}

func TestSubscribeAfterNowSkipsPriorEvents(t *testing.T) {
	b := New()
	execID := "exec-1"

	b.Publish(execID, ExecutionStart(execID, "wf-1"))
	now := time.Now()

	sub := b.Subscribe(execID, &now)
	defer sub.Unsubscribe()

	select {
	case ev := <-sub.Events:
		t.Fatalf("expected no catch-up backlog, got %+v", ev)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestCloseDisconnectsSubscribers(t *testing.T) {
	b := New()
	execID := "exec-1"

	sub := b.Subscribe(execID, nil)
	b.Close(execID)

	select {
	case _, ok := <-sub.Events:
		if ok {
			t.Fatal("expected channel to be closed")
		}
	case <-time.After(time.Second):
		t.Fatal("expected channel to close promptly")
	}
}

func TestUnsubscribeIsIdempotent(t *testing.T) {
	b := New()
	sub := b.Subscribe("exec-1", nil)
	sub.Unsubscribe()
	sub.Unsubscribe() // must not panic
}

func TestSeparateExecutionsHaveIndependentJournals(t *testing.T) {
	b := New()
	b.Publish("exec-a", ExecutionStart("exec-a", "wf-a"))
	b.Publish("exec-b", ExecutionStart("exec-b", "wf-b"))

	a := b.Replay("exec-a", nil)
	bb := b.Replay("exec-b", nil)
	if len(a) != 1 || len(bb) != 1 {
		t.Fatalf("expected isolated single-event journals, got %d and %d", len(a), len(bb))
	}
	if a[0].WorkflowID != "wf-a" || bb[0].WorkflowID != "wf-b" {
		t.Fatalf("journals leaked across executions: %+v / %+v", a[0], bb[0])
	}
}

func TestExistsDoesNotCreateJournal(t *testing.T) {
	b := New()
	if b.Exists("exec-1") {
		t.Fatal("Exists must not report a journal that was never written")
	}
	if b.Exists("exec-1") {
		t.Fatal("Exists must not have created a journal as a side effect")
	}

	b.Publish("exec-1", ExecutionStart("exec-1", "wf-1"))
	if !b.Exists("exec-1") {
		t.Fatal("expected a journal after the first publish")
	}

	b.Close("exec-1")
	if b.Exists("exec-1") {
		t.Fatal("expected no journal after an explicit Close")
	}
}

// A journal must survive the execution reaching its terminal event: late
// subscribers replay completed executions in full until Close is called
// explicitly.
func TestJournalSurvivesTerminalEventForLateSubscribers(t *testing.T) {
	b := New()
	execID := "exec-1"
	b.Publish(execID, ExecutionStart(execID, "wf-1"))
	b.Publish(execID, ExecutionComplete(execID, "done"))

	sub := b.Subscribe(execID, nil)
	defer sub.Unsubscribe()

	first := <-sub.Events
	second := <-sub.Events
	if first.Kind != EventExecutionStart || second.Kind != EventExecutionComplete {
		t.Fatalf("expected full replay of the completed run, got %+v then %+v", first, second)
	}
}
