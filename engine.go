package certfhe

import (
	"runtime"
	"sync"
	"sync/atomic"

	"github.com/certfhe/certfhe/config"
	"github.com/certfhe/certfhe/internal/workerpool"
)

var defaultConfig atomic.Pointer[config.Config]

func init() {
	c := config.DefaultConfig()
	defaultConfig.Store(&c)
}

// CurrentConfig returns the process-wide default policy configuration
// threaded through every kernel and DAG-merge entry point.
func CurrentConfig() config.Config {
	return *defaultConfig.Load()
}

// SetConfig replaces the process-wide default policy configuration.
func SetConfig(c config.Config) {
	defaultConfig.Store(&c)
}

var (
	poolOnce sync.Once
	pool     *workerpool.Pool
)

// engineWorkerPool returns the process-global worker pool, creating it
// lazily on first use and sizing it to GOMAXPROCS, the Go-idiomatic
// stand-in for the original scheme's std::thread::hardware_concurrency.
func engineWorkerPool() *workerpool.Pool {
	poolOnce.Do(func() {
		pool = workerpool.New(runtime.GOMAXPROCS(0))
	})
	return pool
}

// ShutdownWorkerPool stops the process-global worker pool and waits for
// its goroutines to exit. Intended for use by tests that want a clean
// process exit; ordinary callers never need to call it.
func ShutdownWorkerPool() {
	if pool != nil {
		pool.Close()
	}
}

// parallelRange partitions n output units across the engine's worker
// pool when n is at least threshold, otherwise runs fn once inline.
func parallelRange(n int, threshold uint64, fn func(start, end int)) {
	if uint64(n) < threshold {
		fn(0, n)
		return
	}
	engineWorkerPool().ParallelRange(n, 0, fn)
}
