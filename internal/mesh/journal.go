package mesh

import (
	"encoding/json"
	"os"
	"time"

	"go.uber.org/zap"
)

// journalEntry is one line of the recovery journal file.
type journalEntry struct {
	Timestamp string `json:"timestamp"`
	Service   string `json:"service"`
	Event     string `json:"event"`
	Metadata  any    `json:"metadata"`
}

// RecoveryJournal is an append-only, line-delimited JSON event log used for
// forensic replay. It is not the source of truth — the in-memory node table
// is — so every failure here is logged and swallowed, never propagated to
// the caller.
//
// No long-lived file handle is kept: the file is opened in append mode on
// every call. Volume is bounded by registrations plus evictions, so the
// per-call open cost is not worth the complexity of keeping a handle live.
type RecoveryJournal struct {
	path   string
	logger *zap.Logger
}

// NewRecoveryJournal creates a journal writing to path. The file is created
// lazily on first Log call.
func NewRecoveryJournal(path string, logger *zap.Logger) *RecoveryJournal {
	return &RecoveryJournal{
		path:   path,
		logger: logger.Named("mesh_journal"),
	}
}

// Log appends one entry to the journal file. Failures to open or write are
// logged and discarded — the journal is a recovery aid, not a correctness
// dependency.
func (j *RecoveryJournal) Log(service, event string, metadata any) {
	entry := journalEntry{
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Service:   service,
		Event:     event,
		Metadata:  metadata,
	}

	line, err := json.Marshal(entry)
	if err != nil {
		j.logger.Error("failed to marshal journal entry",
			zap.String("service", service),
			zap.String("event", event),
			zap.Error(err),
		)
		return
	}

	f, err := os.OpenFile(j.path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		j.logger.Error("failed to open journal file",
			zap.String("path", j.path),
			zap.Error(err),
		)
		return
	}
	defer f.Close()

	if _, err := f.Write(append(line, '\n')); err != nil {
		j.logger.Error("failed to write journal entry",
			zap.String("path", j.path),
			zap.Error(err),
		)
	}
}
