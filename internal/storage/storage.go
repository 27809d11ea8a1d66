package storage

import "marketScope/internal/model"

// Sink receives decoded event records.
type Sink interface {
	PutEvents(records []model.EventRecord) error
}

// ErrorSink receives records that failed to decode.
type ErrorSink interface {
	PutDecodeErrors(errs []model.DecodeError) error
}

// MultiSink fans records out to every sink in order, stopping at the first
// failure.
type MultiSink []Sink

func (m MultiSink) PutEvents(records []model.EventRecord) error {
	for _, sink := range m {
		if sink == nil {
			continue
		}
		if err := sink.PutEvents(records); err != nil {
			return err
		}
	}
	return nil
}
