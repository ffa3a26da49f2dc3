package unitofwork

import (
	"context"

	"go.uber.org/zap"

	"github.com/krew-solutions/objectquel-go/objectquel/persister"
	"github.com/krew-solutions/objectquel-go/objectquel/property"
	"github.com/krew-solutions/objectquel-go/objectquel/signals"
)

// DependentFinder loads the entities matching criteria, tracked by the same
// unit of work. Cascade delete uses it to find dependent rows.
type DependentFinder interface {
	FindBy(ctx context.Context, entityName string, criteria map[string]any) ([]any, error)
}

type Option func(*UnitOfWork)

func WithAccessor(accessor property.Accessor) Option {
	return func(u *UnitOfWork) {
		u.accessor = accessor
	}
}

func WithPersister(p persister.Persister) Option {
	return func(u *UnitOfWork) {
		u.persister = p
	}
}

// WithPublisher replaces the signal lifecycle events are published on.
func WithPublisher(publisher signals.Signal[LifecycleEvent]) Option {
	return func(u *UnitOfWork) {
		u.events = publisher
	}
}

func WithDependentFinder(finder DependentFinder) Option {
	return func(u *UnitOfWork) {
		u.finder = finder
	}
}

func WithLogger(logger *zap.Logger) Option {
	return func(u *UnitOfWork) {
		u.baseLogger = logger
	}
}
