package dispatch

import (
	"errors"
	"fmt"
)

var (
	// ErrTimeout помечает запрос, прерванный по таймауту
	ErrTimeout = errors.New("webhook request timeout")
	// ErrTransport помечает сетевую ошибку ниже уровня HTTP (dial, reset, DNS)
	ErrTransport = errors.New("webhook request failed")
)

// StatusError логическая ошибка: вебхук ответил статусом вне 2xx
type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("webhook failed with status %d: %s", e.StatusCode, e.Body)
}

// Status тег результата
type Status string

const (
	StatusSuccess Status = "success"
	StatusFailure Status = "failure"
)

// Outcome итог одной попытки отправки
type Outcome struct {
	EventID    string `json:"event_id,omitempty"`
	Status     Status `json:"status"`
	StatusCode int    `json:"status_code,omitempty"`
	Body       string `json:"body,omitempty"`
	Error      string `json:"error,omitempty"`

	err error
}

// Success создает успешный результат
func Success(eventID string, statusCode int, body string) Outcome {
	return Outcome{EventID: eventID, Status: StatusSuccess, StatusCode: statusCode, Body: body}
}

// Failure создает неудачный результат из err. Код статуса и тело
// копируются из *StatusError.
func Failure(eventID string, err error) Outcome {
	o := Outcome{EventID: eventID, Status: StatusFailure, Error: err.Error(), err: err}
	var statusErr *StatusError
	if errors.As(err, &statusErr) {
		o.StatusCode = statusErr.StatusCode
		o.Body = statusErr.Body
	}
	return o
}

func (o Outcome) Succeeded() bool {
	return o.Status == StatusSuccess
}

// Err возвращает причину ошибки или nil при успехе
func (o Outcome) Err() error {
	return o.err
}
