package dispatch

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/ome-contrib/omebatch/internal/worker"
	"github.com/ome-contrib/omebatch/pkg/feature"
)

// LocalPool runs the worker contract on N goroutines in this process. Each
// goroutine builds its own Deps (and so its own gateway connection) from the
// factory, mirroring the one-connection-per-worker rule of the process pool.
type LocalPool struct {
	Workers int

	// NewDeps is called once per pool goroutine. The returned close func
	// releases the goroutine's gateway connection.
	NewDeps func(ctx context.Context) (worker.Deps, func(), error)
}

func (p *LocalPool) Run(ctx context.Context, keys []feature.PlaneKey, emit func(worker.Outcome)) error {
	n := p.Workers
	if n < 1 {
		n = 1
	}

	tasks := make(chan feature.PlaneKey, len(keys))
	for _, k := range keys {
		tasks <- k
	}
	close(tasks)

	outcomes := make(chan worker.Outcome, len(keys))
	var started atomic.Int32
	var setupErr error
	var setupOnce sync.Once

	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			deps, closeDeps, err := p.NewDeps(ctx)
			if err != nil {
				setupOnce.Do(func() { setupErr = err })
				return
			}
			defer closeDeps()
			started.Add(1)
			for key := range tasks {
				outcomes <- worker.Run(ctx, deps, key)
			}
		}()
	}
	wg.Wait()
	close(outcomes)

	// Pool-setup failure with no surviving worker aborts the run; if any
	// worker came up, it drained the queue and the run stands.
	if started.Load() == 0 {
		if setupErr != nil {
			return fmt.Errorf("no worker could start: %w", setupErr)
		}
		return fmt.Errorf("no worker could start")
	}

	for o := range outcomes {
		emit(o)
	}
	return nil
}
