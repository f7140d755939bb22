package domain

import "time"

type NotificationType string

const (
	NotificationPayment      NotificationType = "payment"
	NotificationSubscription NotificationType = "subscription"
	NotificationSystem       NotificationType = "system"
)

type AppNotification struct {
	ID      string           `json:"id"`
	UserID  string           `json:"userId"`
	Title   string           `json:"title"`
	Message string           `json:"message"`
	Date    time.Time        `json:"date"`
	IsRead  bool             `json:"isRead"`
	Type    NotificationType `json:"type"`
}

// NotificationDraft is a notification before the ledger stamps it.
type NotificationDraft struct {
	UserID  string
	Title   string
	Message string
	Type    NotificationType
}
