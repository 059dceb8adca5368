package monitor

import "time"

func (m *Monitor) SetNow(now func() time.Time) { m.now = now }
