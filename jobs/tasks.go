package jobs

import (
	"encoding/json"

	"github.com/hibiken/asynq"
)

const (
	// QueueDefault is the queue background jobs run on.
	QueueDefault = "default"
	// TaskTypeSendEmail delivers one transactional email.
	TaskTypeSendEmail = "mail:send"
	// TaskTypeOverdueScan flips issued invoices past their due date to overdue.
	TaskTypeOverdueScan = "finance:overdue_scan"
)

// SendEmailPayload describes one outgoing email.
type SendEmailPayload struct {
	To      string `json:"to"`
	Subject string `json:"subject"`
	Body    string `json:"body"`
}

// NewSendEmailTask builds a mail delivery task.
func NewSendEmailTask(payload SendEmailPayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskTypeSendEmail, data), nil
}

// NewOverdueScanTask builds the nightly invoice sweep task.
func NewOverdueScanTask() *asynq.Task {
	return asynq.NewTask(TaskTypeOverdueScan, nil)
}
