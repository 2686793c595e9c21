package scene

// State is the persisted portion of the scene model: the object map and
// the operator's focus flag. Human state and identity are never
// persisted; they are re-derived from live frames.
type State struct {
	Objects   []ObjectRecord `json:"objects"`
	FocusMode bool           `json:"focus_mode"`
}

// Store is the persistence boundary for scene state.
// Implementations: sqlite (SDK-provided), or any external state service.
//
// Load on a missing or corrupt backing file must degrade to an empty
// State with a logged warning, never fail the process.
type Store interface {
	// Save persists the given state, replacing whatever was stored.
	Save(state State) error

	// Load reads the persisted state, or an empty State if none exists.
	Load() (State, error)

	// Close releases resources.
	Close() error
}

// Export captures the persistable state. Called under the owning loop's
// lock; the actual store write happens outside it.
func (m *Memory) Export() State {
	objects := make([]ObjectRecord, 0, len(m.objects))
	for _, rec := range m.objects {
		objects = append(objects, rec)
	}
	return State{Objects: objects, FocusMode: m.focusMode}
}

// Hydrate replaces the object map and focus flag from persisted state.
// Records without a label are skipped, not fatal.
func (m *Memory) Hydrate(state State) {
	m.objects = make(map[string]ObjectRecord, len(state.Objects))
	for _, rec := range state.Objects {
		if rec.Label == "" {
			m.log.Warn("skipping persisted record without a label")
			continue
		}
		m.objects[rec.Label] = rec
	}
	m.focusMode = state.FocusMode
}
