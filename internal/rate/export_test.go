package rate

import "time"

func (g *Governor) SetNow(now func() time.Time) { g.now = now }
