package scene

// EventKind identifies the mutation that changed a scene.
type EventKind int

const (
	// EventDataSet follows SetData.
	EventDataSet EventKind = iota
	// EventTranslated follows Translate.
	EventTranslated
	// EventRotated follows Rotate.
	EventRotated
	// EventScaled follows Scale.
	EventScaled
	// EventClipped follows LimitBox.
	EventClipped
	// EventBaked follows BakeView.
	EventBaked
)

func (k EventKind) String() string {
	switch k {
	case EventDataSet:
		return "data-set"
	case EventTranslated:
		return "translated"
	case EventRotated:
		return "rotated"
	case EventScaled:
		return "scaled"
	case EventClipped:
		return "clipped"
	case EventBaked:
		return "baked"
	default:
		return "unknown"
	}
}

// Event describes a change to a scene. Consumers re-upload GPU state when they see one.
type Event struct {
	Kind EventKind

	// Count is the splat count after the change.
	Count int

	// Removed is the number of splats dropped by a clip.
	Removed int
}

type listener struct {
	id uint64
	fn func(Event)
}

func (s *scene) OnChange(fn func(Event)) (cancel func()) {
	s.listenersMu.Lock()
	defer s.listenersMu.Unlock()

	s.nextListener++
	id := s.nextListener
	s.listeners = append(s.listeners, listener{id: id, fn: fn})

	return func() {
		s.listenersMu.Lock()
		defer s.listenersMu.Unlock()
		for i, l := range s.listeners {
			if l.id == id {
				s.listeners = append(s.listeners[:i], s.listeners[i+1:]...)
				return
			}
		}
	}
}

// emit calls every registered listener in registration order. Listeners may cancel
// themselves or register others; changes apply from the next event.
func (s *scene) emit(e Event) {
	s.listenersMu.Lock()
	snapshot := make([]listener, len(s.listeners))
	copy(snapshot, s.listeners)
	s.listenersMu.Unlock()

	for _, l := range snapshot {
		l.fn(e)
	}
}
