package manager

import (
	"time"

	"github.com/arthur-debert/appsweep/pkg/types"
)

// state is only touched by the owner goroutine.
type state struct {
	updates  map[types.Source][]types.UpdateableApp
	scanning bool
	lastScan time.Time
}

func newState() *state {
	return &state{updates: emptyResult()}
}

func emptyResult() map[types.Source][]types.UpdateableApp {
	out := make(map[types.Source][]types.UpdateableApp, len(types.Sources))
	for _, src := range types.Sources {
		out[src] = []types.UpdateableApp{}
	}
	return out
}

func (s *state) entry(id string) *types.UpdateableApp {
	for _, src := range types.Sources {
		list := s.updates[src]
		for i := range list {
			if list[i].ID == id {
				return &list[i]
			}
		}
	}
	return nil
}

func (s *state) remove(id string) bool {
	for _, src := range types.Sources {
		list := s.updates[src]
		for i := range list {
			if list[i].ID == id {
				s.updates[src] = append(list[:i:i], list[i+1:]...)
				return true
			}
		}
	}
	return false
}

// replace installs a fresh scan result. Selections carry over by id, and
// entries with an apply in flight keep their status and progress; an
// in-flight entry missing from the new result stays listed until its
// apply finishes.
func (s *state) replace(result map[types.Source][]types.UpdateableApp) {
	next := emptyResult()
	for _, src := range types.Sources {
		old := make(map[string]types.UpdateableApp)
		for _, e := range s.updates[src] {
			old[e.ID] = e
		}
		for _, e := range result[src] {
			if prev, ok := old[e.ID]; ok {
				e.Selected = prev.Selected
				if prev.Status.IsActive() {
					e.Status = prev.Status
					e.Progress = prev.Progress
				}
				delete(old, e.ID)
			}
			next[src] = append(next[src], e)
		}
		for _, e := range s.updates[src] {
			if _, missing := old[e.ID]; missing && e.Status.IsActive() {
				next[src] = append(next[src], e)
			}
		}
	}
	s.updates = next
}

func (s *state) snapshot() map[types.Source][]types.UpdateableApp {
	out := make(map[types.Source][]types.UpdateableApp, len(types.Sources))
	for _, src := range types.Sources {
		out[src] = append([]types.UpdateableApp{}, s.updates[src]...)
	}
	return out
}
