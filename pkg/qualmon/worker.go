package qualmon

import (
	"sync"
	"time"

	"github.com/telcoware/qns/pkg"
)

// worker is the single serialized execution context of one monitor. All
// registry mutation and platform callback handling runs through it, so the
// monitor state needs no locking.
type worker struct {
	mu     sync.Mutex
	tasks  chan func()
	closed bool
	done   chan struct{}
}

func newWorker() *worker {
	w := &worker{
		tasks: make(chan func(), 64),
		done:  make(chan struct{}),
	}
	go w.loop()
	return w
}

func (w *worker) loop() {
	defer close(w.done)
	for task := range w.tasks {
		task()
	}
}

// submit enqueues a task and returns immediately. Returns false when the
// worker is already closed.
func (w *worker) submit(task func()) bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return false
	}
	w.tasks <- task
	return true
}

// call runs a task on the worker and waits for it. Returns false without
// running when the worker is closed.
func (w *worker) call(task func()) bool {
	ch := make(chan struct{})
	if !w.submit(func() {
		task()
		close(ch)
	}) {
		return false
	}
	<-ch
	return true
}

// close stops the worker after draining queued tasks. Idempotent.
func (w *worker) close() {
	w.mu.Lock()
	if w.closed {
		w.mu.Unlock()
		<-w.done
		return
	}
	w.closed = true
	close(w.tasks)
	w.mu.Unlock()
	<-w.done
}

// consumerKey identifies one registrant of a monitor.
type consumerKey struct {
	capability pkg.NetCapability
	slot       int
}

// consumerState is a monitor's bookkeeping for one registrant. Owned by the
// worker goroutine.
type consumerState struct {
	listener   ThresholdListener
	thresholds []pkg.Threshold
	// matched holds the last evaluation result per threshold, for
	// newly-matched edge detection.
	matched []bool
	// timer defers notification until the hysteresis wait elapses; a newer
	// evaluation supersedes it.
	timer *time.Timer
}

func (st *consumerState) setThresholds(ths []pkg.Threshold) {
	st.thresholds = pkg.CopyThresholds(ths)
	st.matched = make([]bool, len(st.thresholds))
	st.cancelTimer()
}

func (st *consumerState) cancelTimer() {
	if st.timer != nil {
		st.timer.Stop()
		st.timer = nil
	}
}

// minWaitMS returns the smallest configured hysteresis wait among matched
// thresholds, or 0 when none is configured.
func minWaitMS(ths []pkg.Threshold, matched []bool) int {
	wait := pkg.WaitInvalid
	for i, th := range ths {
		if !matched[i] || th.WaitMS == pkg.WaitInvalid || th.WaitMS < 0 {
			continue
		}
		if wait == pkg.WaitInvalid || th.WaitMS < wait {
			wait = th.WaitMS
		}
	}
	if wait == pkg.WaitInvalid {
		return 0
	}
	return wait
}
