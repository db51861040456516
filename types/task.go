package types

import "time"

// TaskStatus tracks a Task's lifecycle.
type TaskStatus string

const (
	TaskCreated    TaskStatus = "CREATED"
	TaskAssigned   TaskStatus = "ASSIGNED"
	TaskInProgress TaskStatus = "IN_PROGRESS"
	TaskCompleted  TaskStatus = "COMPLETED"
	TaskCancelled  TaskStatus = "CANCELLED"
)

// Task is a unit of work Team Formation assembles a Team to satisfy.
type Task struct {
	ID                   string
	Name                 string
	Description          string
	RequiredCapabilities map[string]struct{}
	RequiredRoles        []*Role // ordered
	Priority             int     // 1-10
	Complexity           int     // 1-10
	MinTeamSize          int
	MaxTeamSize          int
	Status               TaskStatus
	AssignedTeam         string // TeamID, empty if unassigned
	CreatedAt            time.Time
	UpdatedAt            time.Time
}

// NewTask constructs a Task in CREATED status.
func NewTask(id, name, description string, requiredCaps []string, roles []*Role, priority, complexity, minSize, maxSize int) *Task {
	caps := make(map[string]struct{}, len(requiredCaps))
	for _, c := range requiredCaps {
		caps[c] = struct{}{}
	}
	now := time.Now()
	return &Task{
		ID:                   id,
		Name:                 name,
		Description:          description,
		RequiredCapabilities: caps,
		RequiredRoles:        roles,
		Priority:             priority,
		Complexity:           complexity,
		MinTeamSize:          minSize,
		MaxTeamSize:          maxSize,
		Status:               TaskCreated,
		CreatedAt:            now,
		UpdatedAt:            now,
	}
}

// RequiredCapSet returns the task's required capability IDs as a slice.
func (t *Task) RequiredCapSet() []string {
	out := make([]string, 0, len(t.RequiredCapabilities))
	for c := range t.RequiredCapabilities {
		out = append(out, c)
	}
	return out
}
