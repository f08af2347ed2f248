package scheduler

import (
	"encoding/json"
	"time"

	"github.com/hibiken/asynq"
)

const TaskReminderSweep = "leads.reminder.sweep"

const TaskLedgerPrune = "ledger.prune"

type ReminderSweepPayload struct {
	RequestedAt time.Time `json:"requestedAt"`
}

type LedgerPrunePayload struct {
	RequestedAt time.Time `json:"requestedAt"`
}

func NewReminderSweepTask(payload ReminderSweepPayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskReminderSweep, data), nil
}

func ParseReminderSweepPayload(task *asynq.Task) (ReminderSweepPayload, error) {
	var payload ReminderSweepPayload
	if err := json.Unmarshal(task.Payload(), &payload); err != nil {
		return ReminderSweepPayload{}, err
	}
	return payload, nil
}

func NewLedgerPruneTask(payload LedgerPrunePayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskLedgerPrune, data), nil
}

func ParseLedgerPrunePayload(task *asynq.Task) (LedgerPrunePayload, error) {
	var payload LedgerPrunePayload
	if err := json.Unmarshal(task.Payload(), &payload); err != nil {
		return LedgerPrunePayload{}, err
	}
	return payload, nil
}
