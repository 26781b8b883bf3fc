package attendance

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/cmlabs-hris/attendance-tracker/internal/domain/attendance"
	"github.com/google/uuid"
)

// memoryStore implements every attendance repository in memory.
type memoryStore struct {
	mu       sync.Mutex
	records  map[string]attendance.Record
	breaks   map[string]attendance.Break
	idle     map[string]attendance.IdlePeriod
	settings map[string]attendance.Settings

	// hook runs inside GetOpenSession, before the lookup
	onGetOpenSession func()
}

func newMemoryStore() *memoryStore {
	return &memoryStore{
		records:  make(map[string]attendance.Record),
		breaks:   make(map[string]attendance.Break),
		idle:     make(map[string]attendance.IdlePeriod),
		settings: make(map[string]attendance.Settings),
	}
}

func sameDay(a, b time.Time) bool {
	return a.Format("2006-01-02") == b.Format("2006-01-02")
}

func (m *memoryStore) WithinTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	return fn(ctx)
}

func (m *memoryStore) Create(ctx context.Context, record attendance.Record) (attendance.Record, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, r := range m.records {
		if r.EmployeeID == record.EmployeeID && sameDay(r.Date, record.Date) {
			return attendance.Record{}, fmt.Errorf("duplicate record for %s on %s", record.EmployeeID, record.Date.Format("2006-01-02"))
		}
	}
	record.ID = uuid.NewString()
	record.CreatedAt = time.Now()
	record.UpdatedAt = record.CreatedAt
	m.records[record.ID] = record
	return record, nil
}

func (m *memoryStore) GetByID(ctx context.Context, id string) (attendance.Record, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.records[id]
	if !ok {
		return attendance.Record{}, attendance.ErrRecordNotFound
	}
	return r, nil
}

func (m *memoryStore) GetByEmployeeAndDate(ctx context.Context, employeeID string, date time.Time) (*attendance.Record, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, r := range m.records {
		if r.EmployeeID == employeeID && sameDay(r.Date, date) {
			return &r, nil
		}
	}
	return nil, nil
}

func (m *memoryStore) GetOpenSession(ctx context.Context, employeeID string) (*attendance.Record, error) {
	if m.onGetOpenSession != nil {
		m.onGetOpenSession()
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, r := range m.records {
		if r.EmployeeID == employeeID && r.IsOpen() {
			return &r, nil
		}
	}
	return nil, nil
}

func (m *memoryStore) Update(ctx context.Context, record attendance.Record) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.records[record.ID]; !ok {
		return attendance.ErrRecordNotFound
	}
	record.UpdatedAt = time.Now()
	m.records[record.ID] = record
	return nil
}

func (m *memoryStore) List(ctx context.Context, filter attendance.RecordFilter) ([]attendance.Record, int64, error) {
	m.mu.Lock()
	var all []attendance.Record
	for _, r := range m.records {
		if filter.EmployeeID != nil && r.EmployeeID != *filter.EmployeeID {
			continue
		}
		if filter.Status != nil && string(r.Status) != *filter.Status {
			continue
		}
		all = append(all, r)
	}
	m.mu.Unlock()

	sort.Slice(all, func(i, j int) bool { return all[i].Date.After(all[j].Date) })
	total := int64(len(all))
	from := (filter.Page - 1) * filter.Limit
	if from > len(all) {
		from = len(all)
	}
	to := min(from+filter.Limit, len(all))
	return all[from:to], total, nil
}

func (m *memoryStore) ListByEmployeeAndRange(ctx context.Context, employeeID string, start, end time.Time) ([]attendance.Record, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	startKey, endKey := start.Format("2006-01-02"), end.Format("2006-01-02")
	var out []attendance.Record
	for _, r := range m.records {
		key := r.Date.Format("2006-01-02")
		if r.EmployeeID == employeeID && key >= startKey && key <= endKey {
			out = append(out, r)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Date.Before(out[j].Date) })
	return out, nil
}

func (m *memoryStore) ListOpenSessions(ctx context.Context) ([]attendance.Record, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []attendance.Record
	for _, r := range m.records {
		if r.IsOpen() {
			out = append(out, r)
		}
	}
	return out, nil
}

func (m *memoryStore) CreateBreak(ctx context.Context, b attendance.Break) (attendance.Break, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	b.ID = uuid.NewString()
	b.CreatedAt = time.Now()
	m.breaks[b.ID] = b
	return b, nil
}

func (m *memoryStore) GetOpenBreak(ctx context.Context, recordID string) (*attendance.Break, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, b := range m.breaks {
		if b.RecordID == recordID && b.EndTime == nil {
			return &b, nil
		}
	}
	return nil, nil
}

func (m *memoryStore) GetLastBreak(ctx context.Context, recordID string) (*attendance.Break, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var last *attendance.Break
	for _, b := range m.breaks {
		if b.RecordID != recordID {
			continue
		}
		if last == nil || b.StartTime.After(last.StartTime) {
			last = &b
		}
	}
	return last, nil
}

func (m *memoryStore) UpdateBreak(ctx context.Context, b attendance.Break) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.breaks[b.ID] = b
	return nil
}

func (m *memoryStore) ListBreaks(ctx context.Context, recordID string) ([]attendance.Break, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []attendance.Break
	for _, b := range m.breaks {
		if b.RecordID == recordID {
			out = append(out, b)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].StartTime.Before(out[j].StartTime) })
	return out, nil
}

func (m *memoryStore) ListIdlePeriods(ctx context.Context, recordID string) ([]attendance.IdlePeriod, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []attendance.IdlePeriod
	for _, p := range m.idle {
		if p.RecordID == recordID {
			out = append(out, p)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].StartTime.Before(out[j].StartTime) })
	return out, nil
}

func (m *memoryStore) CreateIdlePeriod(ctx context.Context, p attendance.IdlePeriod) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, existing := range m.idle {
		if existing.RecordID == p.RecordID && existing.StartTime.Equal(p.StartTime) {
			return false, nil
		}
	}
	p.ID = uuid.NewString()
	m.idle[p.ID] = p
	return true, nil
}

func (m *memoryStore) GetByEmployeeID(ctx context.Context, employeeID string) (attendance.Settings, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.settings[employeeID]
	if !ok {
		return attendance.Settings{}, attendance.ErrSettingsNotFound
	}
	return s, nil
}

func (m *memoryStore) Upsert(ctx context.Context, settings attendance.Settings) (attendance.Settings, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	settings.UpdatedAt = time.Now()
	m.settings[settings.EmployeeID] = settings
	return settings, nil
}

func (m *memoryStore) ListAll(ctx context.Context) ([]attendance.Settings, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]attendance.Settings, 0, len(m.settings))
	for _, s := range m.settings {
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].EmployeeID < out[j].EmployeeID })
	return out, nil
}

func (m *memoryStore) openCount(employeeID string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, r := range m.records {
		if r.EmployeeID == employeeID && r.IsOpen() {
			n++
		}
	}
	return n
}

// clock is a settable time source.
type clock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *clock) Set(t time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = t
}
