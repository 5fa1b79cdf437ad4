package internal

import (
	"strings"
	"sync"
)

// maxDebugBytes caps the log kept for the Logs screen.
const maxDebugBytes = 1 << 20

// DebugBuffer collects log output for the Logs screen. Background jobs log
// concurrently, so writes are serialised.
type DebugBuffer struct {
	mu      sync.Mutex
	content strings.Builder
}

func (db *DebugBuffer) Write(p []byte) (int, error) {
	db.mu.Lock()
	defer db.mu.Unlock()
	if db.content.Len()+len(p) > maxDebugBytes {
		keep := db.content.String()
		keep = keep[len(keep)/2:]
		if i := strings.IndexByte(keep, '\n'); i >= 0 {
			keep = keep[i+1:]
		}
		db.content.Reset()
		db.content.WriteString(keep)
	}
	return db.content.Write(p)
}

func (db *DebugBuffer) String() string {
	db.mu.Lock()
	defer db.mu.Unlock()
	return db.content.String()
}
