package models

// NotificationJob is queued to SQS and delivered by the notification consumer.
type NotificationJob struct {
	Type    string     `json:"type"`
	Channel OtpChannel `json:"channel"`
	To      string     `json:"to"`
	Subject string     `json:"subject,omitempty"`
	Body    string     `json:"body"`
}

const (
	NotificationOrderConfirmation = "order_confirmation"
	NotificationOrderCanceled     = "order_canceled"
)
