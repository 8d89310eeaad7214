package scheduler

import (
	"encoding/json"

	"github.com/hibiken/asynq"
)

const TaskCaseUpload = "cases.upload"

type CaseUploadPayload struct {
	JobID          string `json:"jobId"`
	OrganizationID string `json:"organizationId"`
	LockToken      string `json:"lockToken,omitempty"`
}

func NewCaseUploadTask(payload CaseUploadPayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskCaseUpload, data), nil
}

func ParseCaseUploadPayload(task *asynq.Task) (CaseUploadPayload, error) {
	var payload CaseUploadPayload
	if err := json.Unmarshal(task.Payload(), &payload); err != nil {
		return CaseUploadPayload{}, err
	}
	return payload, nil
}
