package pool

import "sync"

// WorkerPool runs submitted tasks on a fixed number of goroutines.
type WorkerPool struct {
	tasks chan func()
	wg    sync.WaitGroup
}

// New creates a worker pool. At least one worker is always started.
func New(numWorkers int, taskQueueSize int) *WorkerPool {
	if numWorkers < 1 {
		numWorkers = 1
	}
	if taskQueueSize < 0 {
		taskQueueSize = 0
	}
	p := &WorkerPool{
		tasks: make(chan func(), taskQueueSize),
	}
	p.wg.Add(numWorkers)
	for i := 0; i < numWorkers; i++ {
		go p.worker()
	}
	return p
}

func (p *WorkerPool) worker() {
	defer p.wg.Done()
	for task := range p.tasks {
		task()
	}
}

// Submit queues a task, blocking while the queue is full.
func (p *WorkerPool) Submit(task func()) {
	p.tasks <- task
}

// Stop closes the queue and waits for every queued task to finish.
func (p *WorkerPool) Stop() {
	close(p.tasks)
	p.wg.Wait()
}
