package app

// EventType identifies service events.
type EventType int

const (
	EventUploaded EventType = iota
	EventSegmented
	EventLabelSaved
	EventLabelRemoved
)

func (e EventType) String() string {
	switch e {
	case EventUploaded:
		return "uploaded"
	case EventSegmented:
		return "segmented"
	case EventLabelSaved:
		return "label_saved"
	case EventLabelRemoved:
		return "label_removed"
	}
	return "unknown"
}

// EventListener is called when an event occurs. Data is a project.Upload,
// *SegmentResult, labelstore.Record or LabelRequest depending on the event.
type EventListener func(data interface{})

// On registers listener for event.
func (s *Service) On(event EventType, listener EventListener) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.listeners[event] = append(s.listeners[event], listener)
}

// Emit calls the listeners of event in registration order.
func (s *Service) Emit(event EventType, data interface{}) {
	s.mu.RLock()
	listeners := s.listeners[event]
	s.mu.RUnlock()

	for _, listener := range listeners {
		listener(data)
	}
}
