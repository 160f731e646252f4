package connlog

import "testing"

func TestLogDisconnect_SuppressedWithoutName(t *testing.T) {
	l := New(10)
	l.LogDisconnect("", "1.2.3.4", "reset")
	if len(l.All()) != 0 {
		t.Fatalf("expected disconnect with no name to be dropped")
	}
}

func TestLogConnectAndDisconnect(t *testing.T) {
	l := New(10)
	l.LogConnect("cam1", "1.2.3.4")
	l.LogDisconnect("cam1", "1.2.3.4", "peer gone")

	entries := l.All()
	if len(entries) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(entries))
	}
	if entries[0].Event != Connect || entries[1].Event != Disconnect {
		t.Fatalf("expected CONNECT then DISCONNECT, got %v then %v", entries[0].Event, entries[1].Event)
	}
	if entries[1].Reason != "peer gone" {
		t.Fatalf("expected reason to be preserved, got %q", entries[1].Reason)
	}
}

func TestRing_OverflowDropsOldest(t *testing.T) {
	l := New(3)
	l.LogConnect("a", "1.1.1.1")
	l.LogConnect("b", "1.1.1.2")
	l.LogConnect("c", "1.1.1.3")
	l.LogConnect("d", "1.1.1.4")

	entries := l.All()
	if len(entries) != 3 {
		t.Fatalf("expected ring capped at 3, got %d", len(entries))
	}
	if entries[0].ClientName != "b" || entries[2].ClientName != "d" {
		t.Fatalf("expected oldest entry dropped, got order %+v", entries)
	}
}

func TestFilter_ByEventTypeAndName(t *testing.T) {
	l := New(10)
	l.LogConnect("cam1", "1.1.1.1")
	l.LogConnect("cam2", "1.1.1.2")
	l.LogDisconnect("cam1", "1.1.1.1", "eof")

	connects := l.Filter(Connect, "", 0)
	if len(connects) != 2 {
		t.Fatalf("expected 2 connects, got %d", len(connects))
	}

	cam1Only := l.Filter("", "cam1", 0)
	if len(cam1Only) != 2 {
		t.Fatalf("expected 2 entries for cam1, got %d", len(cam1Only))
	}
}

func TestFilter_Limit(t *testing.T) {
	l := New(10)
	for i := 0; i < 5; i++ {
		l.LogConnect("cam1", "1.1.1.1")
	}
	limited := l.Filter("", "", 2)
	if len(limited) != 2 {
		t.Fatalf("expected limit to cap results at 2, got %d", len(limited))
	}
}

func TestStatistics(t *testing.T) {
	l := New(10)
	l.LogConnect("cam1", "1.1.1.1")
	l.LogConnect("cam2", "1.1.1.2")
	l.LogDisconnect("cam1", "1.1.1.1", "eof")
	l.LogDisconnect("", "1.1.1.9", "scan") // suppressed

	stats := l.Statistics()
	if stats.Total != 3 {
		t.Fatalf("expected 3 total entries, got %d", stats.Total)
	}
	if stats.Connects != 2 || stats.Disconnects != 1 {
		t.Fatalf("expected 2 connects / 1 disconnect, got %+v", stats)
	}
	if stats.UniqueNames != 2 {
		t.Fatalf("expected 2 unique names, got %d", stats.UniqueNames)
	}
}

func TestClear(t *testing.T) {
	l := New(10)
	l.LogConnect("cam1", "1.1.1.1")
	l.Clear()

	if len(l.All()) != 0 {
		t.Fatalf("expected empty ring after Clear")
	}
	stats := l.Statistics()
	if stats.Total != 0 {
		t.Fatalf("expected stats to reset after Clear, got %+v", stats)
	}
}
