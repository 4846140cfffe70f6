package batch

import (
	"context"
	"fmt"
	"sync"

	"github.com/notsingle/pkg/models"
)

// Task represents a unit of work to be processed
type Task interface {
	Execute(ctx context.Context) (interface{}, error)
	ID() string
}

// TaskResult represents the result of a task execution
type TaskResult struct {
	TaskID string
	Result interface{}
	Error  error
}

// TaskQueue runs tasks over a bounded worker pool. Each task runs exactly
// once; a failing or panicking task does not affect the others.
type TaskQueue struct {
	tasks      []Task
	results    map[string]*TaskResult
	maxWorkers int
	mu         sync.Mutex
}

// NewTaskQueue creates a new task queue. maxWorkers <= 0 runs one worker per task.
func NewTaskQueue(maxWorkers int) *TaskQueue {
	return &TaskQueue{
		tasks:      make([]Task, 0),
		results:    make(map[string]*TaskResult),
		maxWorkers: maxWorkers,
	}
}

// AddTask adds a task to the queue
func (q *TaskQueue) AddTask(task Task) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.tasks = append(q.tasks, task)
}

// Len returns the number of queued tasks
func (q *TaskQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.tasks)
}

// ProcessAll processes all tasks in the queue and returns the results keyed by task id
func (q *TaskQueue) ProcessAll(ctx context.Context) map[string]*TaskResult {
	q.mu.Lock()
	tasksCopy := make([]Task, len(q.tasks))
	copy(tasksCopy, q.tasks)
	q.mu.Unlock()

	taskCh := make(chan Task, len(tasksCopy))
	resultCh := make(chan *TaskResult, len(tasksCopy))

	var wg sync.WaitGroup
	workerCount := q.maxWorkers
	if workerCount <= 0 || workerCount > len(tasksCopy) {
		workerCount = len(tasksCopy)
	}

	for i := 0; i < workerCount; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for task := range taskCh {
				resultCh <- runTask(ctx, task)
			}
		}()
	}

	for _, task := range tasksCopy {
		taskCh <- task
	}
	close(taskCh)

	go func() {
		wg.Wait()
		close(resultCh)
	}()

	results := make(map[string]*TaskResult)
	for result := range resultCh {
		results[result.TaskID] = result
	}

	q.mu.Lock()
	q.results = results
	q.mu.Unlock()

	return results
}

func runTask(ctx context.Context, task Task) (res *TaskResult) {
	res = &TaskResult{TaskID: task.ID()}
	defer func() {
		if r := recover(); r != nil {
			res.Error = fmt.Errorf("task %s panicked: %v", task.ID(), r)
		}
	}()
	if err := ctx.Err(); err != nil {
		res.Error = fmt.Errorf("task cancelled: %w", err)
		return res
	}
	res.Result, res.Error = task.Execute(ctx)
	return res
}

// GetResults returns the results of the last ProcessAll
func (q *TaskQueue) GetResults() map[string]*TaskResult {
	q.mu.Lock()
	defer q.mu.Unlock()

	resultsCopy := make(map[string]*TaskResult, len(q.results))
	for k, v := range q.results {
		resultsCopy[k] = v
	}
	return resultsCopy
}

// CycleTask runs one persona's decision cycle
type CycleTask struct {
	persona    *models.Persona
	runner     CycleRunner
	awakeCount int
}

// NewCycleTask creates a task for persona
func NewCycleTask(persona *models.Persona, runner CycleRunner, awakeCount int) *CycleTask {
	return &CycleTask{persona: persona, runner: runner, awakeCount: awakeCount}
}

// Execute runs the cycle and returns its *models.Decision, which is nil for a no-op
func (t *CycleTask) Execute(ctx context.Context) (interface{}, error) {
	d, err := t.runner.RunCycle(ctx, t.persona.ID, t.awakeCount)
	if err != nil {
		return nil, err
	}
	return d, nil
}

// ID returns the persona id
func (t *CycleTask) ID() string {
	return t.persona.ID
}
