// Package stream описывает пакеты записей потока изменений и фильтр,
// отбирающий записи для отправки на вебхук.
package stream

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/bytedance/sonic"
)

var (
	// ErrMalformedPayload возвращается, если полезная нагрузка не JSON-объект
	ErrMalformedPayload = errors.New("malformed trigger payload")
	// ErrMissingRecords возвращается, если в полезной нагрузке нет массива Records
	ErrMissingRecords = errors.New("trigger payload has no Records collection")
	// ErrMalformedRecord помечает запись, заголовок которой не удалось декодировать
	ErrMalformedRecord = errors.New("malformed change record")
)

// decoder сопоставляет ключи с учетом регистра: "records" не то же, что "Records"
var decoder = sonic.Config{CaseSensitive: true}.Froze()

// ChangeType тип изменения строки из поля eventName
type ChangeType string

const (
	Insert ChangeType = "INSERT"
	Modify ChangeType = "MODIFY"
	Remove ChangeType = "REMOVE"
)

// Record одна запись изменения из пакета. Raw хранит запись в том виде,
// в каком она пришла, и пересылается без изменений.
type Record struct {
	EventID        string
	ChangeType     ChangeType
	EventSourceARN string
	Raw            json.RawMessage

	err error
}

// Err возвращает причину ошибки декодирования заголовка или nil
func (r Record) Err() error {
	return r.err
}

// Valid сообщает, декодирован ли заголовок записи
func (r Record) Valid() bool {
	return r.err == nil
}

// Batch декодированная полезная нагрузка триггера
type Batch struct {
	Records []Record
}

type recordHeader struct {
	EventID        string     `json:"eventID"`
	EventName      ChangeType `json:"eventName"`
	EventSourceARN string     `json:"eventSourceARN"`
}

type rawBatch struct {
	Records *[]json.RawMessage `json:"Records"`
}

// ParseBatch декодирует полезную нагрузку триггера. Нагрузка должна быть
// JSON-объектом с массивом Records. Записи с ошибкой декодирования остаются
// в пакете с пометкой и не прерывают его обработку.
func ParseBatch(payload []byte) (Batch, error) {
	var raw rawBatch
	if err := decoder.Unmarshal(payload, &raw); err != nil {
		return Batch{}, fmt.Errorf("%w: %v", ErrMalformedPayload, err)
	}
	if raw.Records == nil {
		return Batch{}, ErrMissingRecords
	}

	batch := Batch{Records: make([]Record, 0, len(*raw.Records))}
	for i, msg := range *raw.Records {
		batch.Records = append(batch.Records, parseRecord(i, msg))
	}
	return batch, nil
}

func parseRecord(index int, msg json.RawMessage) Record {
	rec := Record{Raw: msg}

	var header recordHeader
	if err := decoder.Unmarshal(msg, &header); err != nil {
		rec.err = fmt.Errorf("%w: record %d: %v", ErrMalformedRecord, index, err)
		return rec
	}

	rec.EventID = header.EventID
	rec.ChangeType = header.EventName
	rec.EventSourceARN = header.EventSourceARN
	return rec
}
