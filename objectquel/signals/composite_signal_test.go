package signals

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCompositeSignal_NotifyPropagatesToAllDelegates(t *testing.T) {
	s1 := NewSignal[sampleEvent]()
	s2 := NewSignal[sampleEvent]()
	composite := NewCompositeSignal[sampleEvent](s1, s2)
	callCount := 0
	composite.Attach(func(e sampleEvent) error { callCount++; return nil }, "obs")
	assert.NoError(t, composite.Notify(sampleEvent{1}))
	assert.Equal(t, 2, callCount)
}

func TestCompositeSignal_DisposableDetachesFromAllDelegates(t *testing.T) {
	s1 := NewSignal[sampleEvent]()
	s2 := NewSignal[sampleEvent]()
	composite := NewCompositeSignal[sampleEvent](s1, s2)
	called := false
	d := composite.Attach(func(e sampleEvent) error { called = true; return nil }, "obs")
	d.Dispose()
	assert.NoError(t, s1.Notify(sampleEvent{1}))
	assert.NoError(t, s2.Notify(sampleEvent{1}))
	assert.False(t, called)
}

func TestCompositeSignal_NotifyCollectsErrors(t *testing.T) {
	s1 := NewSignal[sampleEvent]()
	s2 := NewSignal[sampleEvent]()
	failure := errors.New("boom")
	s1.Attach(func(e sampleEvent) error { return failure }, "obs")
	composite := NewCompositeSignal[sampleEvent](s1, s2)
	assert.ErrorIs(t, composite.Notify(sampleEvent{1}), failure)
}

func TestCompositeSignal_NotifyNoDelegates(t *testing.T) {
	composite := NewCompositeSignal[sampleEvent]()
	assert.NoError(t, composite.Notify(sampleEvent{1}))
}
