// Package telemetry persists execution metadata off the response path.
// Records flow through a buffered channel into a single writer goroutine;
// a full buffer drops the record rather than blocking a request.
package telemetry

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/promptops/prompt-gateway/internal/models"
)

// Sink is the persistence boundary. db.DB satisfies it.
type Sink interface {
	InsertTelemetry(ctx context.Context, rec *models.TelemetryRecord) error
}

type Logger struct {
	sink    Sink
	records chan *models.TelemetryRecord
	done    chan struct{}
	once    sync.Once
}

const defaultBuffer = 1024

func NewLogger(sink Sink) *Logger {
	l := &Logger{
		sink:    sink,
		records: make(chan *models.TelemetryRecord, defaultBuffer),
		done:    make(chan struct{}),
	}
	go l.run()
	return l
}

// Record enqueues one row. It never blocks and never reports failure to
// the caller; telemetry is observability, not part of the response
// contract.
func (l *Logger) Record(rec *models.TelemetryRecord) {
	select {
	case l.records <- rec:
	default:
		log.Printf("telemetry: buffer full, dropping record for key %d", rec.KeyID)
	}
}

func (l *Logger) run() {
	defer close(l.done)
	for rec := range l.records {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		if err := l.sink.InsertTelemetry(ctx, rec); err != nil {
			log.Printf("telemetry: write failed: %v", err)
		}
		cancel()
	}
}

// Close drains queued records and stops the writer.
func (l *Logger) Close() {
	l.once.Do(func() {
		close(l.records)
		<-l.done
	})
}
