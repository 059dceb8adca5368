package quota

import "time"

// Clock injection hooks for tests.

func (t *Tracker) SetNow(now func() time.Time)     { t.now = now }
func (m *MemoryStore) SetNow(now func() time.Time) { m.now = now }
