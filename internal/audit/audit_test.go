package audit

import "testing"

func TestOpenMigratesAndRecords(t *testing.T) {
	s, err := Open(":memory:")
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer s.Close()

	s.RecordSessionOpen("session-1", "127.0.0.1:1234", 1000)
	s.RecordSessionOpen("session-2", "127.0.0.1:5678", 2000)
	s.RecordSessionClose("session-1", 3000)

	opens, closes, err := s.SessionEventCounts()
	if err != nil {
		t.Fatalf("SessionEventCounts: %v", err)
	}
	if opens != 2 {
		t.Errorf("opens = %d, want 2", opens)
	}
	if closes != 1 {
		t.Errorf("closes = %d, want 1", closes)
	}
}

func TestRecordTaskEvent(t *testing.T) {
	s, err := Open(":memory:")
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer s.Close()

	s.RecordTaskEvent("session-1", "moment", "start", "", 1000)
	s.RecordTaskEvent("session-1", "moment", "finish", "2 moments", 1500)

	var count int
	if err := s.db.QueryRow("SELECT COUNT(*) FROM task_events WHERE session_id = ?", "session-1").Scan(&count); err != nil {
		t.Fatalf("query: %v", err)
	}
	if count != 2 {
		t.Errorf("task event count = %d, want 2", count)
	}
}
