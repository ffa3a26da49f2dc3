package entitymanager

import (
	"go.uber.org/zap"

	"github.com/krew-solutions/objectquel-go/objectquel/condition"
	"github.com/krew-solutions/objectquel-go/objectquel/unitofwork"
)

type options struct {
	unitOfWork []unitofwork.Option
	evaluator  *condition.Evaluator
	logger     *zap.Logger
}

type Option func(*options)

// WithUnitOfWorkOptions configures the unit of work the manager creates.
func WithUnitOfWorkOptions(opts ...unitofwork.Option) Option {
	return func(o *options) {
		o.unitOfWork = append(o.unitOfWork, opts...)
	}
}

func WithEvaluator(evaluator *condition.Evaluator) Option {
	return func(o *options) {
		o.evaluator = evaluator
	}
}

// WithLogger sets the logger of the manager and of its unit of work.
func WithLogger(logger *zap.Logger) Option {
	return func(o *options) {
		o.logger = logger
	}
}
