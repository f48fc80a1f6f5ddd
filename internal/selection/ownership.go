package selection

import (
	"sort"
	"time"
)

// OwnershipManager grants, renews, and expires exclusive time-limited locks
// on elements. TTL bookkeeping is centralized in ExpireAll: one periodic
// sweep driven by the session tick, never one timer per lock.
type OwnershipManager struct {
	defaultTTL time.Duration
	records    map[string]*OwnershipRecord
}

// AcquireRequest carries the parameters of one acquisition attempt.
type AcquireRequest struct {
	ElementID string
	OwnerID   string
	TTL       time.Duration
	Reason    LockReason
	Locked    bool
	Priority  int
}

func NewOwnershipManager(defaultTTL time.Duration) *OwnershipManager {
	if defaultTTL <= 0 {
		defaultTTL = defaultOwnershipTTL
	}
	return &OwnershipManager{
		defaultTTL: defaultTTL,
		records:    make(map[string]*OwnershipRecord),
	}
}

// Acquire attempts to take the element. A live hard lock held by a
// different owner rejects the request; a live soft hold yields only to a
// higher-priority request. The current owner re-acquiring refreshes the
// record in place. Rejection is a normal outcome, not an error.
func (m *OwnershipManager) Acquire(req AcquireRequest, now time.Time) (OwnershipRecord, bool) {
	if m == nil || req.ElementID == "" || req.OwnerID == "" {
		return OwnershipRecord{}, false
	}
	ttl := req.TTL
	if ttl <= 0 {
		ttl = m.defaultTTL
	}
	if req.Reason == "" {
		req.Reason = ReasonManual
	}

	if existing, ok := m.records[req.ElementID]; ok && !existing.Expired(now) {
		if existing.OwnerID != req.OwnerID {
			if existing.Locked {
				return OwnershipRecord{}, false
			}
			if req.Priority <= existing.Priority {
				return OwnershipRecord{}, false
			}
			// Higher-priority preemption of a soft hold.
		}
	}

	rec := &OwnershipRecord{
		ElementID:  req.ElementID,
		OwnerID:    req.OwnerID,
		AcquiredAt: now,
		ExpiresAt:  now.Add(ttl),
		Locked:     req.Locked,
		Reason:     req.Reason,
		Priority:   req.Priority,
	}
	m.records[req.ElementID] = rec
	return *rec, true
}

// Renew extends the lock for its current owner. Any other caller gets
// false, so a stale client can never stretch somebody else's lock.
func (m *OwnershipManager) Renew(elementID, ownerID string, ttl time.Duration, now time.Time) bool {
	if m == nil {
		return false
	}
	rec, ok := m.records[elementID]
	if !ok || rec.Expired(now) || rec.OwnerID != ownerID {
		return false
	}
	if ttl <= 0 {
		ttl = m.defaultTTL
	}
	rec.ExpiresAt = now.Add(ttl)
	return true
}

// Release drops the lock if the caller owns it.
func (m *OwnershipManager) Release(elementID, ownerID string) bool {
	if m == nil {
		return false
	}
	rec, ok := m.records[elementID]
	if !ok || rec.OwnerID != ownerID {
		return false
	}
	delete(m.records, elementID)
	return true
}

// Get returns the live record for the element. Expired records are treated
// as absent even before the next sweep collects them.
func (m *OwnershipManager) Get(elementID string, now time.Time) (OwnershipRecord, bool) {
	if m == nil {
		return OwnershipRecord{}, false
	}
	rec, ok := m.records[elementID]
	if !ok || rec.Expired(now) {
		return OwnershipRecord{}, false
	}
	return *rec, true
}

// ExpireAll removes every record whose TTL has passed and returns them,
// sorted by element id. Callers run this on a fixed interval.
func (m *OwnershipManager) ExpireAll(now time.Time) []OwnershipRecord {
	if m == nil {
		return nil
	}
	var expired []OwnershipRecord
	for elementID, rec := range m.records {
		if rec.Expired(now) {
			expired = append(expired, *rec)
			delete(m.records, elementID)
		}
	}
	sort.Slice(expired, func(i, j int) bool {
		return expired[i].ElementID < expired[j].ElementID
	})
	return expired
}

// Active returns every live record sorted by element id.
func (m *OwnershipManager) Active(now time.Time) []OwnershipRecord {
	if m == nil {
		return nil
	}
	records := make([]OwnershipRecord, 0, len(m.records))
	for _, rec := range m.records {
		if rec.Expired(now) {
			continue
		}
		records = append(records, *rec)
	}
	sort.Slice(records, func(i, j int) bool {
		return records[i].ElementID < records[j].ElementID
	})
	return records
}

// Count reports the number of live records.
func (m *OwnershipManager) Count(now time.Time) int {
	if m == nil {
		return 0
	}
	count := 0
	for _, rec := range m.records {
		if !rec.Expired(now) {
			count++
		}
	}
	return count
}
