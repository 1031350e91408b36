package metrics

// MultiObserver fans one event out to several observers.
type MultiObserver struct {
	observers []Observer
}

func NewMultiObserver(observers ...Observer) *MultiObserver {
	out := make([]Observer, 0, len(observers))
	for _, o := range observers {
		if o != nil {
			out = append(out, o)
		}
	}
	return &MultiObserver{observers: out}
}

func (m *MultiObserver) RecordEvent(ev MetricsEvent) {
	for _, o := range m.observers {
		o.RecordEvent(ev)
	}
}
