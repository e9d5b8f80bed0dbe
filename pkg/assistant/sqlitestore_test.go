package assistant

import (
	"context"
	"database/sql"
	"path/filepath"
	"testing"
	"time"

	_ "modernc.org/sqlite"
)

func newTestStore(t *testing.T) *SQLiteMessageStore {
	t.Helper()
	db, err := sql.Open("sqlite", filepath.Join(t.TempDir(), "chat.db"))
	if err != nil {
		t.Fatal(err)
	}
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { db.Close() })

	s := NewSQLiteMessageStore(db)
	if err := s.EnsureTable(context.Background()); err != nil {
		t.Fatalf("EnsureTable: %v", err)
	}
	return s
}

func TestSQLiteHistory(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	base := time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)

	for i, c := range []string{"a", "b", "c", "d"} {
		sender := SenderUser
		if i%2 == 1 {
			sender = SenderAI
		}
		// identical timestamps must still come back in insertion order
		if _, err := s.Append(ctx, &Message{SessionID: "s1", Sender: sender, Content: c, Timestamp: base}); err != nil {
			t.Fatalf("Append: %v", err)
		}
	}
	if _, err := s.Append(ctx, &Message{SessionID: "s2", Sender: SenderUser, Content: "x"}); err != nil {
		t.Fatal(err)
	}

	msgs, err := s.History(ctx, "s1", 3)
	if err != nil {
		t.Fatalf("History: %v", err)
	}
	var got string
	for _, m := range msgs {
		got += m.Content
	}
	if got != "bcd" {
		t.Errorf("history = %q, want %q", got, "bcd")
	}
	if !msgs[0].Timestamp.Equal(base) || msgs[0].Sender != SenderAI {
		t.Errorf("first = %+v", msgs[0])
	}

	empty, err := s.History(ctx, "nobody", 10)
	if err != nil || empty == nil || len(empty) != 0 {
		t.Errorf("empty history = %v, %v", empty, err)
	}
}
