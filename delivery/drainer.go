package delivery

import (
	"sync"
	"time"

	"github.com/KaspaPulse/KaspaGateway-sub000/entities"
)

// Drainer polls a Queue at a fixed cadence and hands each drained batch
// to a callback on its own goroutine. It replaces a blocking receive so
// that display-style consumers keep their own schedule; the producer is
// never slowed down by it.
type Drainer struct {
	stop chan struct{}
	done chan struct{}
	once sync.Once
}

// StartDrainer begins polling q every interval, invoking handle for
// each batch in FIFO order. The drainer exits on Stop or once the queue
// has been closed and fully drained.
func StartDrainer(q *Queue, interval time.Duration, handle func([]entities.Transaction)) *Drainer {
	d := &Drainer{
		stop: make(chan struct{}),
		done: make(chan struct{}),
	}

	go func() {
		defer close(d.done)

		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-d.stop:
				drainAll(q, handle)
				return
			case <-ticker.C:
				drainAll(q, handle)
				if q.Closed() && q.Len() == 0 {
					return
				}
			}
		}
	}()

	return d
}

// Stop terminates polling after one final drain, so batches pushed
// before the sentinel are not lost. Blocks until the goroutine exits.
func (d *Drainer) Stop() {
	d.once.Do(func() { close(d.stop) })
	<-d.done
}

// Done is closed once the drainer goroutine has finished, whether via
// Stop or because the queue reached its sentinel.
func (d *Drainer) Done() <-chan struct{} {
	return d.done
}

func drainAll(q *Queue, handle func([]entities.Transaction)) {
	for {
		batch, ok := q.TryPop()
		if !ok {
			return
		}
		handle(batch)
	}
}
