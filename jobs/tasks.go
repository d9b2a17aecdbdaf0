package jobs

import (
	"encoding/json"
	"fmt"
	"sort"
	"time"

	"github.com/hibiken/asynq"

	"github.com/odyssey-erp/erp-lite/internal/shared"
)

const (
	// QueueDefault is the default queue name for background jobs.
	QueueDefault = "default"
	// TaskMarkOverdue moves unpaid invoices past their due date to Overdue.
	TaskMarkOverdue = "invoices:mark_overdue"
	// TaskWarmAging computes the aging report so the report cache is warm.
	TaskWarmAging = "reports:warm_aging"
)

// AsOfPayload carries an optional reference date. Empty means the time the job runs.
type AsOfPayload struct {
	AsOf string `json:"as_of,omitempty"`
}

func (p AsOfPayload) date(fallback time.Time) (time.Time, error) {
	if p.AsOf == "" {
		return shared.Day(fallback), nil
	}
	return shared.ParseDate(p.AsOf)
}

func newAsOfTask(taskType string, asOf time.Time) (*asynq.Task, error) {
	payload := AsOfPayload{}
	if !asOf.IsZero() {
		payload.AsOf = asOf.Format(shared.DateLayout)
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(taskType, data, asynq.Queue(QueueDefault), asynq.MaxRetry(3)), nil
}

// NewMarkOverdueTask builds the overdue sweep task. A zero asOf sweeps as of the run time.
func NewMarkOverdueTask(asOf time.Time) (*asynq.Task, error) {
	return newAsOfTask(TaskMarkOverdue, asOf)
}

// NewWarmAgingTask builds the aging warm-up task.
func NewWarmAgingTask(asOf time.Time) (*asynq.Task, error) {
	return newAsOfTask(TaskWarmAging, asOf)
}

var taskBuilders = map[string]func(time.Time) (*asynq.Task, error){
	TaskMarkOverdue: NewMarkOverdueTask,
	TaskWarmAging:   NewWarmAgingTask,
}

// TaskNames lists the task types that can be enqueued by name.
func TaskNames() []string {
	names := make([]string, 0, len(taskBuilders))
	for name := range taskBuilders {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// NewTaskByName builds a known task from its type name.
func NewTaskByName(name string, asOf time.Time) (*asynq.Task, error) {
	build, ok := taskBuilders[name]
	if !ok {
		return nil, fmt.Errorf("%w: unknown task %q (known: %v)", shared.ErrValidation, name, TaskNames())
	}
	return build(asOf)
}
