package dispatch

import "field-controller/internal/model"

// ring keeps the most recent alerts for the status surface.
type ring struct {
	items []model.Alert
	max   int
}

func newRing(capacity int) *ring {
	return &ring{
		items: make([]model.Alert, 0, capacity),
		max:   capacity,
	}
}

func (r *ring) push(a model.Alert) {
	if len(r.items) >= r.max {
		copy(r.items, r.items[1:])
		r.items[len(r.items)-1] = a
		return
	}
	r.items = append(r.items, a)
}

// snapshot returns the stored alerts newest-first.
func (r *ring) snapshot() []model.Alert {
	out := make([]model.Alert, len(r.items))
	for i, a := range r.items {
		out[len(r.items)-1-i] = a
	}
	return out
}
