// Package task manages the goroutines of a controller session: the transport
// reader, the line sender and the status poller.
package task

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/arloliu/go-gsender/logger"
)

// ErrStopped is returned when a task is started on a stopped manager.
var ErrStopped = errors.New("task: manager already stopped")

// Func is one iteration of a looping task. It returns false to stop the task.
type Func func(ctx context.Context) bool

// Manager runs named goroutines bound to a shared context.
//
// Stop cancels the context of every running task; Wait blocks until all of
// them returned and re-arms the manager so a new session can start tasks again.
//
//	mgr := task.NewManager(ctx, logger)
//	_ = mgr.Start("reader", func(ctx context.Context) bool {
//	    return readOneLine(ctx)
//	})
//	mgr.Stop()
//	mgr.Wait()
type Manager struct {
	pctx    context.Context
	ctx     context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	logger  logger.Logger
	count   atomic.Int32
	tickers sync.Map     // map[string]*time.Ticker
	mu      sync.RWMutex // protect ctx and cancel
	taskMu  sync.RWMutex // protect task creation during Wait()
}

// NewManager creates a Manager using ctx as the parent of every task context.
func NewManager(ctx context.Context, l logger.Logger) *Manager {
	mgr := &Manager{pctx: ctx, logger: l}
	mgr.ctx, mgr.cancel = context.WithCancel(ctx)

	return mgr
}

// Context returns the context shared by the currently running tasks.
func (mgr *Manager) Context() context.Context {
	mgr.mu.RLock()
	defer mgr.mu.RUnlock()

	return mgr.ctx
}

// Start runs fn in a loop on a new goroutine until fn returns false or the
// manager is stopped.
func (mgr *Manager) Start(name string, fn Func) error {
	mgr.logger.Debug("start task", "name", name)

	ctx, err := mgr.activeContext()
	if err != nil {
		return err
	}

	mgr.spawn(name, func() {
		mgr.runLoop(ctx, name, fn)
	})

	return nil
}

// StartInterval runs fn every interval until fn returns false or the manager
// is stopped. If runNow is true fn also runs once immediately.
func (mgr *Manager) StartInterval(name string, fn Func, interval time.Duration, runNow bool) error {
	mgr.logger.Debug("start interval task", "name", name, "interval", interval, "runNow", runNow)

	if interval <= 0 {
		return fmt.Errorf("task: invalid interval %v", interval)
	}

	ctx, err := mgr.activeContext()
	if err != nil {
		return err
	}

	ticker := time.NewTicker(interval)
	if _, loaded := mgr.tickers.LoadOrStore(name, ticker); loaded {
		ticker.Stop()
		return fmt.Errorf("task: interval task %s already exists", name)
	}

	cleanup := func() {
		ticker.Stop()
		mgr.tickers.Delete(name)
	}

	if runNow && !mgr.callWithRecover(name, ctx, fn) {
		cleanup()
		return nil
	}

	mgr.spawn(name, func() {
		defer cleanup()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if !mgr.callWithRecover(name, ctx, fn) {
					return
				}
			}
		}
	})

	return nil
}

// Stop signals all running tasks to terminate.
func (mgr *Manager) Stop() {
	mgr.tickers.Range(func(_, value any) bool {
		if ticker, ok := value.(*time.Ticker); ok {
			ticker.Stop()
		}

		return true
	})

	mgr.mu.Lock()
	if mgr.cancel != nil {
		mgr.cancel()
	}
	mgr.mu.Unlock()
}

// Wait waits for all tasks to terminate, then re-arms the manager.
func (mgr *Manager) Wait() {
	mgr.taskMu.Lock()
	defer mgr.taskMu.Unlock()

	mgr.wg.Wait()

	mgr.mu.Lock()
	mgr.ctx, mgr.cancel = context.WithCancel(mgr.pctx)
	mgr.mu.Unlock()
}

// TaskCount returns the number of currently running tasks.
func (mgr *Manager) TaskCount() int {
	return int(mgr.count.Load())
}

func (mgr *Manager) activeContext() (context.Context, error) {
	ctx := mgr.Context()
	if ctx.Err() != nil {
		return nil, ErrStopped
	}

	return ctx, nil
}

func (mgr *Manager) spawn(name string, body func()) {
	mgr.taskMu.RLock()
	defer mgr.taskMu.RUnlock()

	mgr.wg.Add(1)
	mgr.count.Add(1)

	go func() {
		defer func() {
			mgr.count.Add(-1)
			mgr.logger.Debug("task terminated", "name", name, "task_count", mgr.TaskCount())
			mgr.wg.Done()
		}()

		body()
	}()
}

func (mgr *Manager) runLoop(ctx context.Context, name string, fn Func) {
	for {
		select {
		case <-ctx.Done():
			return
		default:
			if !mgr.callWithRecover(name, ctx, fn) {
				return
			}
		}
	}
}

// callWithRecover runs fn with panic protection; a panic stops the task.
func (mgr *Manager) callWithRecover(name string, ctx context.Context, fn Func) (cont bool) {
	defer func() {
		if r := recover(); r != nil {
			mgr.logger.Error("panic in task", "name", name, "panic", r)
			cont = false
		}
	}()

	return fn(ctx)
}
