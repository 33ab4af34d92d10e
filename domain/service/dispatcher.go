package service

import "sync"

// pathDispatcher runs jobs in submission order per key while different keys
// proceed concurrently. Each busy key owns one goroutine that exits when its
// queue drains.
type pathDispatcher struct {
	mu     sync.Mutex
	queues map[string][]func()
	wg     sync.WaitGroup
}

func newPathDispatcher() *pathDispatcher {
	return &pathDispatcher{
		queues: make(map[string][]func()),
	}
}

func (d *pathDispatcher) Submit(key string, job func()) {
	d.mu.Lock()
	d.wg.Add(1)
	queue, busy := d.queues[key]
	d.queues[key] = append(queue, job)
	d.mu.Unlock()

	if !busy {
		go d.drain(key)
	}
}

func (d *pathDispatcher) drain(key string) {
	for {
		d.mu.Lock()
		queue := d.queues[key]
		if len(queue) == 0 {
			delete(d.queues, key)
			d.mu.Unlock()
			return
		}
		job := queue[0]
		queue[0] = nil
		d.queues[key] = queue[1:]
		d.mu.Unlock()

		job()
		d.wg.Done()
	}
}

// Busy reports the number of keys with queued or running jobs.
func (d *pathDispatcher) Busy() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.queues)
}

// Wait blocks until every submitted job has run.
func (d *pathDispatcher) Wait() {
	d.wg.Wait()
}
