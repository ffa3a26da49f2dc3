package signals

import (
	"github.com/krew-solutions/objectquel-go/objectquel/disposable"
)

type Observer[E any] func(E) error

type Signal[E any] interface {
	Attach(observer Observer[E], observerId ...any) disposable.Disposable
	Detach(observer Observer[E], observerId ...any)
	Notify(event E) error
}
