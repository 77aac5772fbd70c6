package stream

import (
	"github.com/zynerotech/streamhook/logger"
)

// Filter отбирает записи по исходной таблице и типу изменения
type Filter struct {
	table      string
	changeType ChangeType
	extractor  SourceExtractor
	log        *logger.Logger
}

// NewFilter создает фильтр для записей типа changeType из таблицы table
func NewFilter(table string, changeType ChangeType, extractor SourceExtractor, log *logger.Logger) *Filter {
	if log == nil {
		log = logger.Component("filter")
	}
	return &Filter{
		table:      table,
		changeType: changeType,
		extractor:  extractor,
		log:        log,
	}
}

// Matches сообщает, проходит ли запись фильтр
func (f *Filter) Matches(rec Record) bool {
	if !rec.Valid() {
		f.log.Debug().Err(rec.Err()).Msg("Skipping malformed record")
		return false
	}

	table, err := f.extractor.Extract(rec.EventSourceARN)
	if err != nil {
		f.log.Debug().
			Err(err).
			Str("event_id", rec.EventID).
			Msg("Skipping record without resolvable source")
		return false
	}

	f.log.Debug().
		Str("table", table).
		Str("event", string(rec.ChangeType)).
		Str("event_id", rec.EventID).
		Msg("Processing record")

	return table == f.table && rec.ChangeType == f.changeType
}

// Apply возвращает подходящие записи в исходном порядке
func (f *Filter) Apply(records []Record) []Record {
	shortlist := make([]Record, 0, len(records))
	for _, rec := range records {
		if f.Matches(rec) {
			shortlist = append(shortlist, rec)
		}
	}
	return shortlist
}
