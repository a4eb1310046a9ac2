package pool

import (
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestWorkerPoolRunsEveryTask(t *testing.T) {
	p := New(4, 8)
	var done atomic.Int32
	for i := 0; i < 100; i++ {
		p.Submit(func() { done.Add(1) })
	}
	p.Stop()
	assert.Equal(t, int32(100), done.Load())
}

func TestWorkerPoolClampsSizes(t *testing.T) {
	p := New(0, -1)
	var done atomic.Int32
	p.Submit(func() { done.Add(1) })
	p.Stop()
	assert.Equal(t, int32(1), done.Load())
}
