package scheduler

import (
	"encoding/json"

	"github.com/hibiken/asynq"
)

const TaskRecordingArchive = "calls.recording.archive"

const TaskStaleCallSweep = "calls.stale.sweep"

type RecordingArchivePayload struct {
	CallID       string `json:"callId"`
	RecordingURL string `json:"recordingUrl"`
}

func NewRecordingArchiveTask(payload RecordingArchivePayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskRecordingArchive, data), nil
}

func ParseRecordingArchivePayload(task *asynq.Task) (RecordingArchivePayload, error) {
	var payload RecordingArchivePayload
	if err := json.Unmarshal(task.Payload(), &payload); err != nil {
		return RecordingArchivePayload{}, err
	}
	return payload, nil
}

func NewStaleCallSweepTask() *asynq.Task {
	return asynq.NewTask(TaskStaleCallSweep, nil)
}
