package disposable

type Disposable interface {
	Dispose()
}

type DisposableImp struct {
	callback func()
	disposed bool
}

func NewDisposable(callback func()) *DisposableImp {
	return &DisposableImp{callback: callback}
}

// Dispose runs the callback once; later calls are no-ops.
func (d *DisposableImp) Dispose() {
	if d.disposed {
		return
	}
	d.disposed = true
	d.callback()
}

type CompositeDisposable struct {
	delegates []Disposable
}

func NewCompositeDisposable(delegates ...Disposable) *CompositeDisposable {
	return &CompositeDisposable{delegates: delegates}
}

func (d *CompositeDisposable) Add(delegate Disposable) {
	d.delegates = append(d.delegates, delegate)
}

func (d *CompositeDisposable) Dispose() {
	for _, delegate := range d.delegates {
		delegate.Dispose()
	}
	d.delegates = nil
}
