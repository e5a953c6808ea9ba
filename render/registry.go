package render

// Renderable is one live scene object owned by a family. Update methods are
// family-typed; the registry only needs the shared lifecycle.
type Renderable interface {
	// Key returns the registry key.
	Key() Key

	// PickID returns the identity color id, stable for the renderable's
	// lifetime. Zero means unpickable.
	PickID() uint32

	// StartFrame resolves the transform and visibility for the frame at
	// currentTime and reports whether the renderable is visible.
	StartFrame(currentTime int64) bool

	// AppendDrawItems appends this renderable's draw items. Only called
	// when the last StartFrame reported visible.
	AppendDrawItems(items []DrawItem) []DrawItem

	// Dispose releases resources. Called exactly once.
	Dispose()
}

// registry stores renderables keyed by (topic, namespace, id), preserving
// insertion order for deterministic draw lists.
type registry struct {
	items map[Key]Renderable
	order []Key
}

func newRegistry() *registry {
	return &registry{items: make(map[Key]Renderable)}
}

func (r *registry) get(k Key) (Renderable, bool) {
	v, ok := r.items[k]
	return v, ok
}

// put inserts v under its key, disposing any entry it evicts, and reports
// whether a new entry was created.
func (r *registry) put(v Renderable) bool {
	k := v.Key()
	if old, ok := r.items[k]; ok {
		old.Dispose()
		r.items[k] = v
		return false
	}
	r.items[k] = v
	r.order = append(r.order, k)
	return true
}

// remove disposes and deletes the entry under k if present.
func (r *registry) remove(k Key) bool {
	v, ok := r.items[k]
	if !ok {
		return false
	}
	v.Dispose()
	delete(r.items, k)
	for i, existing := range r.order {
		if existing == k {
			r.order = append(r.order[:i:i], r.order[i+1:]...)
			break
		}
	}
	return true
}

// removeIf disposes and deletes every entry matching pred.
func (r *registry) removeIf(pred func(Key) bool) int {
	removed := 0
	kept := r.order[:0]
	for _, k := range r.order {
		if pred(k) {
			r.items[k].Dispose()
			delete(r.items, k)
			removed++
			continue
		}
		kept = append(kept, k)
	}
	r.order = kept
	return removed
}

// each visits entries in insertion order.
func (r *registry) each(fn func(Renderable)) {
	for _, k := range r.order {
		fn(r.items[k])
	}
}

func (r *registry) len() int {
	return len(r.items)
}

// clear disposes everything and empties the registry.
func (r *registry) clear() {
	for _, k := range r.order {
		r.items[k].Dispose()
	}
	r.items = make(map[Key]Renderable)
	r.order = nil
}
