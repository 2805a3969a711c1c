// internal/models/notification.go
package models

const (
	NotificationTypeJobAssigned = "job_assigned"

	ChannelInApp = "in_app"
	ChannelEmail = "email"
	ChannelSMS   = "sms"

	NotificationStatusSent     = "sent"
	NotificationStatusFailed   = "failed"
	NotificationStatusDisabled = "disabled"
	NotificationStatusSkipped  = "skipped"
)

// Notification is raised to an assessor when a job is assigned to them.
type Notification struct {
	RecipientID string   `json:"recipientId"`
	JobID       string   `json:"jobId"`
	ClaimNumber string   `json:"claimNumber"`
	Address     string   `json:"address"`
	Priority    Priority `json:"priority"`
	Message     string   `json:"message"`
}

// NotificationResult records the outcome on each delivery channel.
type NotificationResult struct {
	ID       string            `json:"id"`
	Channels map[string]string `json:"channels"`
}
