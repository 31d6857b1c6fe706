package dispatch

import (
	"context"
	"fmt"
	"sync"

	"golang.org/x/sync/errgroup"

	"parley/internal/events"
	"parley/internal/llm"
	"parley/internal/logging"
)

// Dispatcher fans assignments out to isolated sub-agents with bounded
// concurrency. It owns each task for its lifetime and registers a
// cancellation handle per task so the UI kill affordance always has
// something to act on.
type Dispatcher struct {
	client llm.Client
	lookup RawTextLookup
	bus    *events.Bus

	mu      sync.Mutex
	running map[string]context.CancelFunc

	killCh <-chan events.Event
	stop   chan struct{}
}

// NewDispatcher creates a dispatcher. Start wires the kill-event listener.
func NewDispatcher(client llm.Client, lookup RawTextLookup, bus *events.Bus) *Dispatcher {
	return &Dispatcher{
		client:  client,
		lookup:  lookup,
		bus:     bus,
		running: make(map[string]context.CancelFunc),
		stop:    make(chan struct{}),
	}
}

// Start subscribes to UI kill events. Close releases the subscription.
func (d *Dispatcher) Start() {
	d.killCh = d.bus.SubscribeKinds(events.KindKillAgent)
	go func() {
		for {
			select {
			case <-d.stop:
				return
			case ev, ok := <-d.killCh:
				if !ok {
					return
				}
				if kill, ok := ev.Payload.(events.KillAgent); ok {
					d.Cancel(kill.TaskID)
				}
			}
		}
	}()
}

// Close stops the kill listener.
func (d *Dispatcher) Close() {
	select {
	case <-d.stop:
	default:
		close(d.stop)
	}
	if d.killCh != nil {
		d.bus.Unsubscribe(d.killCh)
	}
}

// Cancel cancels one running task by id. Returns false if the task is not
// currently running.
func (d *Dispatcher) Cancel(taskID string) bool {
	d.mu.Lock()
	cancel, ok := d.running[taskID]
	d.mu.Unlock()

	if !ok {
		return false
	}
	logging.Dispatch("cancelling task %s", taskID)
	cancel()
	return true
}

// CancelAll cancels every running task.
func (d *Dispatcher) CancelAll() int {
	d.mu.Lock()
	cancels := make([]context.CancelFunc, 0, len(d.running))
	for _, cancel := range d.running {
		cancels = append(cancels, cancel)
	}
	count := len(cancels)
	d.mu.Unlock()

	for _, cancel := range cancels {
		cancel()
	}
	if count > 0 {
		logging.Dispatch("cancelled %d running tasks", count)
	}
	return count
}

// Running returns the ids of currently running tasks.
func (d *Dispatcher) Running() []string {
	d.mu.Lock()
	defer d.mu.Unlock()

	out := make([]string, 0, len(d.running))
	for id := range d.running {
		out = append(out, id)
	}
	return out
}

// Dispatch runs all assignments with at most maxConcurrency sub-agents in
// flight and blocks until every task is terminal. One failing task never
// aborts its siblings; on ctx cancellation, results of already-completed
// tasks are retained and the rest are marked cancelled. The returned error
// is ErrPartialFailure when at least one task failed.
func (d *Dispatcher) Dispatch(ctx context.Context, assignments []TaskInput, maxConcurrency int) ([]TaskResult, error) {
	if maxConcurrency < 1 {
		maxConcurrency = 1
	}

	logging.Dispatch("dispatching %d assignments (max concurrency %d)", len(assignments), maxConcurrency)

	results := make([]TaskResult, len(assignments))
	for i, task := range assignments {
		results[i] = TaskResult{TaskID: task.TaskID, Status: TaskQueued}
		d.progress(task, TaskQueued, "")
	}

	var eg errgroup.Group
	eg.SetLimit(maxConcurrency)

	for i, task := range assignments {
		i, task := i, task
		eg.Go(func() error {
			// A cancelled dispatch leaves queued tasks untouched.
			if err := ctx.Err(); err != nil {
				results[i].Status = TaskCancelled
				results[i].Err = err
				d.progress(task, TaskCancelled, "dispatch cancelled")
				return nil
			}

			taskCtx, cancel := context.WithCancel(ctx)
			d.register(task.TaskID, cancel)
			defer func() {
				cancel()
				d.unregister(task.TaskID)
			}()

			results[i] = d.runTask(taskCtx, task)
			return nil
		})
	}

	// Worker closures never return errors; failures live in the results.
	_ = eg.Wait()

	succeeded, failed, cancelled := 0, 0, 0
	for _, r := range results {
		switch r.Status {
		case TaskSucceeded:
			succeeded++
		case TaskCancelled:
			cancelled++
		default:
			failed++
		}
	}
	logging.Dispatch("dispatch done: %d succeeded, %d failed, %d cancelled", succeeded, failed, cancelled)

	if failed > 0 {
		return results, fmt.Errorf("%w: %d of %d", ErrPartialFailure, failed, len(assignments))
	}
	return results, nil
}

// runTask executes one assignment to a terminal state.
func (d *Dispatcher) runTask(ctx context.Context, task TaskInput) TaskResult {
	d.progress(task, TaskRunning, "")

	agent := NewSubAgent(task, d.client, d.lookup, d.bus)
	card, err := agent.Run(ctx)

	switch {
	case err == nil:
		d.progress(task, TaskSucceeded, card.Title)
		return TaskResult{TaskID: task.TaskID, Status: TaskSucceeded, Card: card}
	case ctx.Err() != nil:
		d.progress(task, TaskCancelled, "")
		return TaskResult{TaskID: task.TaskID, Status: TaskCancelled, Err: ctx.Err()}
	default:
		logging.Get(logging.CategoryDispatch).Warnf("task %s failed: %v", task.TaskID, err)
		d.progress(task, TaskFailed, err.Error())
		return TaskResult{TaskID: task.TaskID, Status: TaskFailed, Err: err}
	}
}

func (d *Dispatcher) register(taskID string, cancel context.CancelFunc) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.running[taskID] = cancel
}

func (d *Dispatcher) unregister(taskID string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	delete(d.running, taskID)
}

func (d *Dispatcher) progress(task TaskInput, status TaskStatus, detail string) {
	d.bus.Publish(events.KindAgentProgress, events.AgentProgress{
		TaskID: task.TaskID,
		Agent:  task.Agent,
		Status: string(status),
		Detail: detail,
	})
}
