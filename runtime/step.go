package pruntime

import (
	"sync"

	"github.com/edulang/pseudo/ast"
)

// Stepper drives an evaluation one statement at a time. The evaluator runs
// in its own goroutine and parks at every step point; Next releases the
// previous statement and returns the snapshot taken before the next one.
// Draining the stepper produces the same Display sequence as Run.
type Stepper struct {
	steps   chan Step
	resume  chan struct{}
	quit    chan struct{}
	done    chan struct{}
	once    sync.Once
	started bool
	err     error
}

// NewStepper starts a debug-mode evaluation of program. The caller must
// either drain it with Next or release it with Close.
func NewStepper(program *ast.Program, host Host) *Stepper {
	st := &Stepper{
		steps:  make(chan Step),
		resume: make(chan struct{}),
		quit:   make(chan struct{}),
		done:   make(chan struct{}),
	}
	ev := New(program, stepperHost{inner: host, quit: st.quit})
	ev.stepHook = st.yield
	go func() {
		st.err = ev.Run()
		close(st.steps)
		close(st.done)
	}()
	return st
}

type stepperHost struct {
	inner Host
	quit  chan struct{}
}

func (h stepperHost) Display(line string) { h.inner.Display(line) }

func (h stepperHost) Input(prompt string) (string, bool) { return h.inner.Input(prompt) }

func (h stepperHost) ShouldStop() bool {
	select {
	case <-h.quit:
		return true
	default:
		return h.inner.ShouldStop()
	}
}

// yield runs on the evaluator goroutine: publish the step, then wait for the
// driver to ask for the next one.
func (st *Stepper) yield(step Step) error {
	select {
	case st.steps <- step:
	case <-st.quit:
		return stoppedErr()
	}
	select {
	case <-st.resume:
		return nil
	case <-st.quit:
		return stoppedErr()
	}
}

// Next advances by one statement. ok is false once the program has finished,
// at which point err holds the terminal error, if any. The returned Step
// describes the statement that will execute on the following Next call.
func (st *Stepper) Next() (step Step, ok bool, err error) {
	select {
	case <-st.done:
		return Step{}, false, st.err
	default:
	}
	if st.started {
		select {
		case st.resume <- struct{}{}:
		case <-st.done:
			return Step{}, false, st.err
		}
	}
	st.started = true
	step, ok = <-st.steps
	if !ok {
		<-st.done
		return Step{}, false, st.err
	}
	return step, true, nil
}

// Close abandons the evaluation; the evaluator goroutine unwinds with a
// Stopped error at its next step or stop poll. Safe to call twice.
func (st *Stepper) Close() {
	st.once.Do(func() {
		close(st.quit)
	})
	<-st.done
}
