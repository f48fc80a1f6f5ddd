package selection

import (
	"sort"
	"strings"

	"github.com/google/uuid"
)

// ConflictResolver derives the conflict set from the active selections.
// Recompute rebuilds every record from scratch rather than patching, so the
// output can never hold stale contender lists. The resolver keeps only two
// pieces of state between calls: a stable id per contested element, and any
// sticky "shared" resolution that survives until the contender set changes.
type ConflictResolver struct {
	ids    map[string]string
	shared map[string]string // elementID -> contender-set key the mode was agreed under
}

func NewConflictResolver() *ConflictResolver {
	return &ConflictResolver{
		ids:    make(map[string]string),
		shared: make(map[string]string),
	}
}

// Recompute maps every element selected by two or more participants to a
// ConflictRecord. Calling it twice on the same input yields identical
// output.
func (r *ConflictResolver) Recompute(active []SelectionRecord) []ConflictRecord {
	if r == nil {
		return nil
	}
	contenders := make(map[string][]Contender)
	for _, rec := range active {
		for _, elementID := range rec.ElementIDs {
			contenders[elementID] = append(contenders[elementID], Contender{
				UserID:    rec.UserID,
				Priority:  rec.Priority,
				Timestamp: rec.Timestamp,
			})
		}
	}

	contested := make(map[string]struct{}, len(contenders))
	records := make([]ConflictRecord, 0)
	for elementID, list := range contenders {
		if len(list) < 2 {
			continue
		}
		contested[elementID] = struct{}{}
		sort.Slice(list, func(i, j int) bool {
			return contenderLess(list[i], list[j])
		})
		records = append(records, ConflictRecord{
			ID:         r.conflictID(elementID),
			ElementID:  elementID,
			Contenders: list,
			Mode:       r.modeFor(elementID, list),
		})
	}

	for elementID := range r.ids {
		if _, still := contested[elementID]; !still {
			delete(r.ids, elementID)
			delete(r.shared, elementID)
		}
	}

	sort.Slice(records, func(i, j int) bool {
		return records[i].ElementID < records[j].ElementID
	})
	return records
}

// MarkShared records that the conflict's element stays multiply-selected by
// agreement. The mode holds until the contender set changes, after which a
// fresh conflict reverts to manual.
func (r *ConflictResolver) MarkShared(records []ConflictRecord, conflictID string) bool {
	if r == nil {
		return false
	}
	for _, rec := range records {
		if rec.ID != conflictID {
			continue
		}
		r.shared[rec.ElementID] = contenderSetKey(rec.Contenders)
		return true
	}
	return false
}

func (r *ConflictResolver) conflictID(elementID string) string {
	if id, ok := r.ids[elementID]; ok {
		return id
	}
	id := uuid.NewString()
	r.ids[elementID] = id
	return id
}

func (r *ConflictResolver) modeFor(elementID string, list []Contender) ResolutionMode {
	key, ok := r.shared[elementID]
	if ok && key == contenderSetKey(list) {
		return ModeShared
	}
	if ok {
		delete(r.shared, elementID)
	}
	return ModeManual
}

// contenderLess orders contenders by priority descending, earlier timestamp
// breaking ties (first claim wins), user id as the final deterministic
// tiebreak. This single function encodes the resolution-precedence policy.
func contenderLess(a, b Contender) bool {
	if a.Priority != b.Priority {
		return a.Priority > b.Priority
	}
	if !a.Timestamp.Equal(b.Timestamp) {
		return a.Timestamp.Before(b.Timestamp)
	}
	return a.UserID < b.UserID
}

func contenderSetKey(list []Contender) string {
	ids := make([]string, 0, len(list))
	for _, c := range list {
		ids = append(ids, c.UserID)
	}
	sort.Strings(ids)
	return strings.Join(ids, "|")
}
