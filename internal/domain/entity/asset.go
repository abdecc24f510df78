package entity

import "time"

// Asset запись об активе (баллоне) во внешней системе учёта
type Asset struct {
	Code         string
	Status       string
	LocationID   string
	CustomerID   string // непусто, если актив числится за клиентом
	CustomerName string
	UpdatedAt    time.Time
}

// AssignedToCustomer сообщает, что актив ещё закреплён за клиентом
func (a *Asset) AssignedToCustomer() bool {
	return a != nil && a.CustomerID != ""
}

// FeedbackKind тип сигнала пользователю (звук/вибрация/сообщение)
type FeedbackKind string

const (
	FeedbackAdmitted     FeedbackKind = "admitted"
	FeedbackDuplicate    FeedbackKind = "duplicate"
	FeedbackConfirmation FeedbackKind = "confirmation"
	FeedbackError        FeedbackKind = "error"
)

// Feedback уведомление для пользователя
type Feedback struct {
	OwnerID int64
	Kind    FeedbackKind
	Code    string
	Message string
}
