package mesh

import (
	"bufio"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"go.uber.org/zap"
)

func TestRecoveryJournalLogAppendsLine(t *testing.T) {
	path := filepath.Join(t.TempDir(), "journal.jsonl")
	j := NewRecoveryJournal(path, zap.NewNop())

	j.Log("tool-a", "register", Heartbeat{ServiceName: "tool-a", Port: 9000})
	j.Log("tool-a", "evict", map[string]string{"reason": "timeout"})

	f, err := os.Open(path)
	if err != nil {
		t.Fatalf("os.Open() error = %v", err)
	}
	defer f.Close()

	var entries []journalEntry
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		var entry journalEntry
		if err := json.Unmarshal(scanner.Bytes(), &entry); err != nil {
			t.Fatalf("json.Unmarshal() error = %v", err)
		}
		entries = append(entries, entry)
	}

	if len(entries) != 2 {
		t.Fatalf("len(entries) = %d, want 2", len(entries))
	}
	if entries[0].Event != "register" || entries[0].Service != "tool-a" {
		t.Errorf("entries[0] = %+v, want event=register service=tool-a", entries[0])
	}
	if entries[1].Event != "evict" {
		t.Errorf("entries[1].Event = %q, want %q", entries[1].Event, "evict")
	}
}

func TestRecoveryJournalSwallowsOpenFailure(t *testing.T) {
	// A directory that does not exist: OpenFile will fail. Log must not
	// panic and must not propagate anything to the caller.
	path := filepath.Join(t.TempDir(), "missing-dir", "journal.jsonl")
	j := NewRecoveryJournal(path, zap.NewNop())

	j.Log("tool-a", "register", nil)
}
