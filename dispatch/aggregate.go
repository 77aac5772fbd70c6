package dispatch

import (
	"github.com/zynerotech/streamhook/logger"
)

// Summary сводка результатов одного вызова
type Summary struct {
	Processed  int       `json:"processed"`
	Successful int       `json:"successful"`
	Failed     int       `json:"failed"`
	Outcomes   []Outcome `json:"outcomes"`
}

// Summarize сворачивает результаты в Summary и логирует каждую ошибку
func Summarize(outcomes []Outcome, log *logger.Logger) Summary {
	if log == nil {
		log = logger.Component("aggregator")
	}

	summary := Summary{
		Processed: len(outcomes),
		Outcomes:  outcomes,
	}
	for _, o := range outcomes {
		if o.Succeeded() {
			summary.Successful++
		} else {
			summary.Failed++
		}
	}

	log.Info().
		Int("successful", summary.Successful).
		Int("failed", summary.Failed).
		Msgf("Webhook results: %d successful, %d failed", summary.Successful, summary.Failed)

	for i, o := range outcomes {
		if o.Succeeded() {
			continue
		}
		log.Error().
			Int("webhook", i+1).
			Str("event_id", o.EventID).
			Int("status_code", o.StatusCode).
			Str("error", o.Error).
			Msgf("Webhook %d failed", i+1)
	}

	return summary
}

// WithoutBodies возвращает копию сводки без тел ответов вебхука
// для хранения и публикации
func (s Summary) WithoutBodies() Summary {
	outcomes := make([]Outcome, len(s.Outcomes))
	for i, o := range s.Outcomes {
		o.Body = ""
		outcomes[i] = o
	}
	s.Outcomes = outcomes
	return s
}
