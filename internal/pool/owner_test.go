package pool

import (
	"runtime"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestWeakOwnerResolvesWhileAlive(t *testing.T) {
	o := NewOwner()
	w := newWeakOwner(o)
	assert.Same(t, o, w.resolve())
	runtime.KeepAlive(o)
}

func TestWeakOwnerNilAfterCollection(t *testing.T) {
	var w weakOwner
	func() {
		o := NewOwner()
		w = newWeakOwner(o)
	}()

	for i := 0; i < 10 && w.resolve() != nil; i++ {
		runtime.GC()
	}
	assert.Nil(t, w.resolve())
}
