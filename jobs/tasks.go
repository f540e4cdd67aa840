package jobs

import (
	"encoding/json"

	"github.com/hibiken/asynq"
)

const (
	// QueueDefault carries maintenance work such as cache invalidation.
	QueueDefault = "default"
	// QueueMail carries outbound email.
	QueueMail = "mail"
	// TaskTypeSendEmail is the task type for sending transactional emails.
	TaskTypeSendEmail = "mail:send"
	// TaskFontsInvalidate drops the cached font stylesheet.
	TaskFontsInvalidate = "fonts:invalidate"
)

// SendEmailPayload describes the information required to send an email.
type SendEmailPayload struct {
	To      string `json:"to"`
	Subject string `json:"subject"`
	Body    string `json:"body"`
}

// NewSendEmailTask constructs an Asynq task.
func NewSendEmailTask(payload SendEmailPayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskTypeSendEmail, data), nil
}

// NewFontsInvalidateTask constructs the font cache invalidation task. Only one
// is kept queued at a time.
func NewFontsInvalidateTask() *asynq.Task {
	return asynq.NewTask(TaskFontsInvalidate, nil)
}
