package signals

import (
	"reflect"

	"github.com/hashicorp/go-multierror"

	"github.com/krew-solutions/objectquel-go/objectquel/disposable"
)

type entry[E any] struct {
	id       any
	observer Observer[E]
}

type SignalImp[E any] struct {
	observers []entry[E]
}

func NewSignal[E any]() *SignalImp[E] {
	return &SignalImp[E]{}
}

func (s *SignalImp[E]) Attach(observer Observer[E], observerId ...any) disposable.Disposable {
	id := resolveId(observer, observerId)
	detach := disposable.NewDisposable(func() {
		s.Detach(observer, id)
	})
	for _, e := range s.observers {
		if e.id == id {
			return detach
		}
	}
	s.observers = append(s.observers, entry[E]{id: id, observer: observer})
	return detach
}

func (s *SignalImp[E]) Detach(observer Observer[E], observerId ...any) {
	id := resolveId(observer, observerId)
	for i, e := range s.observers {
		if e.id == id {
			s.observers = append(s.observers[:i], s.observers[i+1:]...)
			return
		}
	}
}

// Notify delivers the event to every observer, even after one of them fails.
// Observer errors are collected into a single multierror.
func (s *SignalImp[E]) Notify(event E) error {
	var result error
	observers := append([]entry[E](nil), s.observers...)
	for _, e := range observers {
		if err := e.observer(event); err != nil {
			result = multierror.Append(result, err)
		}
	}
	return result
}

func resolveId[E any](observer Observer[E], observerId []any) any {
	if len(observerId) > 0 {
		return observerId[0]
	}
	return makeId(observer)
}

func makeId[E any](observer Observer[E]) uintptr {
	return reflect.ValueOf(observer).Pointer()
}
