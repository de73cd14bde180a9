package worker

import (
	"sync"
)

type task func()

// Pool runs detached side effects (reward dispatch, audit writes) off the
// request path. Depth, if set, is updated as jobs enter and leave the
// queue.
type Pool struct {
	wg    sync.WaitGroup
	jobs  chan task
	Depth func(delta float64)
}

func NewPool(n int) *Pool {
	p := &Pool{jobs: make(chan task, 1024)}
	for i := 0; i < n; i++ {
		p.wg.Add(1)
		go func() {
			defer p.wg.Done()
			for job := range p.jobs {
				if p.Depth != nil {
					p.Depth(-1)
				}
				job()
			}
		}()
	}
	return p
}

func (p *Pool) Submit(f task) {
	if p.Depth != nil {
		p.Depth(1)
	}
	p.jobs <- f
}

func (p *Pool) Stop() { close(p.jobs); p.wg.Wait() }
