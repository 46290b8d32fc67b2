package flow

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/BTreeMap/AgentMint/internal/models"
)

func TestSessionStore_CreatesOnFirstContact(t *testing.T) {
	st := NewSessionStore(10, time.Hour)

	if _, ok := st.Snapshot("42"); ok {
		t.Fatal("expected no session before first contact")
	}

	err := st.WithSession("42", func(s *models.Session) error {
		if s.ParticipantID != "42" {
			t.Errorf("expected participant 42, got %q", s.ParticipantID)
		}
		if s.Phase != models.PhaseCollecting {
			t.Errorf("expected phase %s, got %s", models.PhaseCollecting, s.Phase)
		}
		s.Answers = append(s.Answers, "pen")
		return nil
	})
	if err != nil {
		t.Fatalf("WithSession returned error: %v", err)
	}

	snap, ok := st.Snapshot("42")
	if !ok {
		t.Fatal("expected session after WithSession")
	}
	if len(snap.Answers) != 1 || snap.Answers[0] != "pen" {
		t.Errorf("unexpected answers: %v", snap.Answers)
	}
	if st.Len() != 1 {
		t.Errorf("expected 1 session, got %d", st.Len())
	}
}

func TestSessionStore_SnapshotIsCopy(t *testing.T) {
	st := NewSessionStore(10, time.Hour)
	_ = st.WithSession("1", func(s *models.Session) error {
		s.Answers = append(s.Answers, "a")
		return nil
	})

	snap, _ := st.Snapshot("1")
	snap.Answers[0] = "mutated"

	again, _ := st.Snapshot("1")
	if again.Answers[0] != "a" {
		t.Errorf("snapshot mutation leaked into store: %v", again.Answers)
	}
}

func TestSessionStore_PropagatesError(t *testing.T) {
	st := NewSessionStore(10, time.Hour)
	sentinel := errors.New("boom")
	if err := st.WithSession("1", func(*models.Session) error { return sentinel }); !errors.Is(err, sentinel) {
		t.Errorf("expected sentinel error, got %v", err)
	}
}

func TestSessionStore_EvictsOldest(t *testing.T) {
	st := NewSessionStore(2, time.Hour)
	for _, id := range []string{"a", "b", "c"} {
		_ = st.WithSession(id, func(*models.Session) error { return nil })
	}
	if st.Len() != 2 {
		t.Fatalf("expected 2 sessions, got %d", st.Len())
	}
	if _, ok := st.Snapshot("a"); ok {
		t.Error("expected oldest session to be evicted")
	}
}

func TestSessionStore_Expires(t *testing.T) {
	st := NewSessionStore(10, 20*time.Millisecond)
	_ = st.WithSession("a", func(s *models.Session) error {
		s.GenerationCount = 3
		return nil
	})

	time.Sleep(60 * time.Millisecond)

	if _, ok := st.Snapshot("a"); ok {
		t.Fatal("expected session to expire")
	}
	_ = st.WithSession("a", func(s *models.Session) error {
		if s.GenerationCount != 0 {
			t.Errorf("expected fresh session, got count %d", s.GenerationCount)
		}
		return nil
	})
}

func TestSessionStore_SerializesPerParticipant(t *testing.T) {
	st := NewSessionStore(10, time.Hour)
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = st.WithSession("same", func(s *models.Session) error {
				n := s.GenerationCount
				time.Sleep(time.Microsecond)
				s.GenerationCount = n + 1
				return nil
			})
		}()
	}
	wg.Wait()

	snap, _ := st.Snapshot("same")
	if snap.GenerationCount != 50 {
		t.Errorf("expected 50 serialized updates, got %d", snap.GenerationCount)
	}
}
