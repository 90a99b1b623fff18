package sparkle

import (
	"runtime"
	"sync"
)

// MainLoop serializes updater callbacks on one goroutine locked to its OS
// thread. Sessions for different apps may run concurrently, but every
// delegate call and session start happens here, one at a time.
type MainLoop struct {
	tasks chan func()
	quit  chan struct{}
	once  sync.Once
	wg    sync.WaitGroup
}

// NewMainLoop starts the loop goroutine.
func NewMainLoop() *MainLoop {
	l := &MainLoop{
		tasks: make(chan func(), 64),
		quit:  make(chan struct{}),
	}
	l.wg.Add(1)
	go l.run()
	return l
}

func (l *MainLoop) run() {
	defer l.wg.Done()
	runtime.LockOSThread()
	defer runtime.UnlockOSThread()

	for {
		select {
		case fn := <-l.tasks:
			fn()
		case <-l.quit:
			return
		}
	}
}

// Post schedules fn and returns immediately. It reports false when the
// loop is closed.
func (l *MainLoop) Post(fn func()) bool {
	select {
	case <-l.quit:
		return false
	default:
	}
	select {
	case l.tasks <- fn:
		return true
	case <-l.quit:
		return false
	}
}

// Call runs fn on the loop and waits for it. Calling it from the loop
// itself runs into a deadlock, so delegate code must use Post.
func (l *MainLoop) Call(fn func()) bool {
	done := make(chan struct{})
	if !l.Post(func() {
		defer close(done)
		fn()
	}) {
		return false
	}
	select {
	case <-done:
		return true
	case <-l.quit:
		return false
	}
}

// Done is closed once Close has been called.
func (l *MainLoop) Done() <-chan struct{} { return l.quit }

// Close stops the loop. Pending tasks are dropped.
func (l *MainLoop) Close() {
	l.once.Do(func() { close(l.quit) })
	l.wg.Wait()
}
