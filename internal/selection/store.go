package selection

import (
	"sort"
	"time"
)

// SelectionStore holds the current selection per (whiteboard, user).
// Admission replaces the previous record atomically; a record with no
// element ids is treated as a removal.
type SelectionStore struct {
	boards map[string]map[string]*SelectionRecord
}

func NewSelectionStore() *SelectionStore {
	return &SelectionStore{boards: make(map[string]map[string]*SelectionRecord)}
}

// Admit stores or replaces the record for its user. An inactive record or
// one whose element ids normalize to empty removes any prior record
// instead; that is not an error. Returns true when a record was stored.
func (s *SelectionStore) Admit(rec SelectionRecord) bool {
	if s == nil || rec.UserID == "" || rec.WhiteboardID == "" {
		return false
	}
	rec.ElementIDs = normalizeIDs(rec.ElementIDs)
	if len(rec.ElementIDs) == 0 || !rec.IsActive {
		s.Remove(rec.WhiteboardID, rec.UserID)
		return false
	}
	if rec.LastSeen.IsZero() {
		rec.LastSeen = rec.Timestamp
	}
	board, ok := s.boards[rec.WhiteboardID]
	if !ok {
		board = make(map[string]*SelectionRecord)
		s.boards[rec.WhiteboardID] = board
	}
	stored := rec
	board[rec.UserID] = &stored
	return true
}

// Remove drops the user's record. Returns true if a record existed.
func (s *SelectionStore) Remove(whiteboardID, userID string) bool {
	if s == nil {
		return false
	}
	board, ok := s.boards[whiteboardID]
	if !ok {
		return false
	}
	if _, exists := board[userID]; !exists {
		return false
	}
	delete(board, userID)
	if len(board) == 0 {
		delete(s.boards, whiteboardID)
	}
	return true
}

// Get returns a copy of the user's record.
func (s *SelectionStore) Get(whiteboardID, userID string) (SelectionRecord, bool) {
	if s == nil {
		return SelectionRecord{}, false
	}
	board, ok := s.boards[whiteboardID]
	if !ok {
		return SelectionRecord{}, false
	}
	rec, ok := board[userID]
	if !ok {
		return SelectionRecord{}, false
	}
	return *rec, true
}

// Touch refreshes the liveness timestamp for the user's record.
func (s *SelectionStore) Touch(whiteboardID, userID string, now time.Time) bool {
	if s == nil {
		return false
	}
	board, ok := s.boards[whiteboardID]
	if !ok {
		return false
	}
	rec, ok := board[userID]
	if !ok {
		return false
	}
	rec.LastSeen = now
	return true
}

// ExpireStale removes every record on the whiteboard whose LastSeen is
// older than the timeout and returns the affected user ids. Only the named
// whiteboard is scanned.
func (s *SelectionStore) ExpireStale(whiteboardID string, now time.Time, timeout time.Duration) []string {
	if s == nil || timeout <= 0 {
		return nil
	}
	board, ok := s.boards[whiteboardID]
	if !ok {
		return nil
	}
	var expired []string
	cutoff := now.Add(-timeout)
	for userID, rec := range board {
		if rec.LastSeen.Before(cutoff) {
			expired = append(expired, userID)
		}
	}
	for _, userID := range expired {
		delete(board, userID)
	}
	if len(board) == 0 {
		delete(s.boards, whiteboardID)
	}
	sort.Strings(expired)
	return expired
}

// StripElement removes the element from every selection on the whiteboard
// except keepUserID's, deleting records that end up empty. Returns the
// affected user ids.
func (s *SelectionStore) StripElement(whiteboardID, elementID, keepUserID string) []string {
	if s == nil || elementID == "" {
		return nil
	}
	board, ok := s.boards[whiteboardID]
	if !ok {
		return nil
	}
	var affected []string
	for userID, rec := range board {
		if userID == keepUserID {
			continue
		}
		trimmed := rec.ElementIDs[:0]
		found := false
		for _, id := range rec.ElementIDs {
			if id == elementID {
				found = true
				continue
			}
			trimmed = append(trimmed, id)
		}
		if !found {
			continue
		}
		rec.ElementIDs = trimmed
		affected = append(affected, userID)
	}
	for _, userID := range affected {
		if len(board[userID].ElementIDs) == 0 {
			delete(board, userID)
		}
	}
	if len(board) == 0 {
		delete(s.boards, whiteboardID)
	}
	sort.Strings(affected)
	return affected
}

// ActiveFor returns the whiteboard's records sorted by priority descending,
// then newest timestamp. The viewer's own record, when present, is always
// surfaced first so the local cursor never waits behind remote state.
func (s *SelectionStore) ActiveFor(whiteboardID, viewerID string) []SelectionRecord {
	if s == nil {
		return nil
	}
	board, ok := s.boards[whiteboardID]
	if !ok {
		return nil
	}
	records := make([]SelectionRecord, 0, len(board))
	for _, rec := range board {
		copied := *rec
		copied.ElementIDs = append([]string(nil), rec.ElementIDs...)
		records = append(records, copied)
	}
	sort.Slice(records, func(i, j int) bool {
		a, b := records[i], records[j]
		if viewerID != "" && (a.UserID == viewerID) != (b.UserID == viewerID) {
			return a.UserID == viewerID
		}
		if a.Priority != b.Priority {
			return a.Priority > b.Priority
		}
		if !a.Timestamp.Equal(b.Timestamp) {
			return a.Timestamp.After(b.Timestamp)
		}
		return a.UserID < b.UserID
	})
	return records
}

// Count reports the number of records on the whiteboard.
func (s *SelectionStore) Count(whiteboardID string) int {
	if s == nil {
		return 0
	}
	return len(s.boards[whiteboardID])
}

// normalizeIDs deduplicates ids preserving first occurrence and drops
// empties.
func normalizeIDs(ids []string) []string {
	if len(ids) == 0 {
		return nil
	}
	normalized := make([]string, 0, len(ids))
	seen := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		if id == "" {
			continue
		}
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		normalized = append(normalized, id)
	}
	return normalized
}
