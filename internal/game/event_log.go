package game

import (
	"bufio"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/time/rate"
)

const (
	EventBufferSize    = 1024                   // Circular buffer size
	MaxEventsPerSec    = 5000                   // Journal-wide budget
	MaxEventsPerSource = 240                    // Budget for one input client per second
	BatchFlushSize     = 64                     // Events per batch write
	BatchFlushInterval = 100 * time.Millisecond // How often to flush
	SourceIdleTimeout  = 5 * time.Minute        // Budgets unused this long are pruned
)

// EventLog is the combat journal: a bounded, rate-limited event buffer
// drained to a newline-delimited JSON file by a background writer. Emit is
// called from the simulation goroutine only; the writer runs alongside.
//
// Simulation events carry no source. Input events carry the client that
// sent them (an IP or connection label) and draw on that client's budget,
// so one client mashing buttons cannot crowd combat events out.
type EventLog struct {
	// Circular buffer (single producer, single consumer)
	buffer    [EventBufferSize]Event
	writeHead uint64 // atomic - producer position
	readHead  uint64 // atomic - consumer position

	overall *rate.Limiter
	sources *sourceBudgets

	// Async writer
	writerWg sync.WaitGroup
	stopChan chan struct{}
	stopOnce sync.Once
	running  atomic.Bool

	// File output
	filePath string
	file     *os.File
	fileMu   sync.Mutex

	// Stats for monitoring
	droppedCount uint64 // atomic
	totalCount   uint64 // atomic
	typeCounts   [EventTypeInput + 1]uint64
}

// sourceBudgets hands out one token bucket per event source.
type sourceBudgets struct {
	mu      sync.Mutex
	perSec  rate.Limit
	burst   int
	buckets map[string]*sourceBucket
}

type sourceBucket struct {
	limiter  *rate.Limiter
	lastUsed time.Time
}

func newSourceBudgets(perSec float64, burst int) *sourceBudgets {
	return &sourceBudgets{
		perSec:  rate.Limit(perSec),
		burst:   burst,
		buckets: make(map[string]*sourceBucket),
	}
}

func (b *sourceBudgets) allow(source string, now time.Time) bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	bucket, ok := b.buckets[source]
	if !ok {
		bucket = &sourceBucket{limiter: rate.NewLimiter(b.perSec, b.burst)}
		b.buckets[source] = bucket
	}
	bucket.lastUsed = now
	return bucket.limiter.AllowN(now, 1)
}

// prune drops buckets idle since before cutoff and returns how many remain.
func (b *sourceBudgets) prune(cutoff time.Time) int {
	b.mu.Lock()
	defer b.mu.Unlock()

	for source, bucket := range b.buckets {
		if bucket.lastUsed.Before(cutoff) {
			delete(b.buckets, source)
		}
	}
	return len(b.buckets)
}

func (b *sourceBudgets) len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.buckets)
}

// NewEventLog creates a new bounded event log
func NewEventLog() *EventLog {
	return &EventLog{
		overall:  rate.NewLimiter(MaxEventsPerSec, MaxEventsPerSec/10),
		sources:  newSourceBudgets(MaxEventsPerSource, MaxEventsPerSource/10),
		stopChan: make(chan struct{}),
	}
}

// Start begins the async writer goroutine. An empty path keeps events in
// memory only, which still feeds the counters.
func (el *EventLog) Start(filePath string) error {
	if el.running.Load() {
		return nil
	}

	el.filePath = filePath
	if filePath != "" {
		file, err := os.OpenFile(filePath, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0644)
		if err != nil {
			return fmt.Errorf("open event journal %s: %w", filePath, err)
		}
		el.file = file
	}

	el.running.Store(true)
	el.writerWg.Add(1)
	go el.writerLoop()

	return nil
}

// Stop flushes what is buffered and closes the file
func (el *EventLog) Stop() {
	el.stopOnce.Do(func() {
		el.running.Store(false)
		close(el.stopChan)
		el.writerWg.Wait()

		el.fileMu.Lock()
		if el.file != nil {
			el.file.Close()
		}
		el.fileMu.Unlock()
	})
}

// Emit appends an event. It returns false when the log is stopped or the
// event is over budget; a full ring overwrites the oldest entry instead.
func (el *EventLog) Emit(event Event) bool {
	if !el.running.Load() {
		return false
	}

	if !el.overall.Allow() {
		atomic.AddUint64(&el.droppedCount, 1)
		return false
	}
	if event.Source != "" && !el.sources.allow(event.Source, time.Now()) {
		atomic.AddUint64(&el.droppedCount, 1)
		return false
	}

	head := atomic.AddUint64(&el.writeHead, 1)
	if head-atomic.LoadUint64(&el.readHead) >= EventBufferSize {
		atomic.AddUint64(&el.readHead, 1)
		atomic.AddUint64(&el.droppedCount, 1)
	}

	event.Sequence = head
	el.buffer[head%EventBufferSize] = event

	atomic.AddUint64(&el.totalCount, 1)
	if int(event.Type) < len(el.typeCounts) {
		atomic.AddUint64(&el.typeCounts[event.Type], 1)
	}
	return true
}

// EmitSimple builds and emits an event in one call
func (el *EventLog) EmitSimple(eventType EventType, tickNum uint64, source string, payload interface{}) bool {
	if !el.running.Load() {
		return false
	}
	return el.Emit(NewEvent(eventType, tickNum, source, payload))
}

// writerLoop drains the ring on a timer and prunes idle source budgets
// every SourceIdleTimeout.
func (el *EventLog) writerLoop() {
	defer el.writerWg.Done()

	ticker := time.NewTicker(BatchFlushInterval)
	defer ticker.Stop()

	batch := make([]Event, 0, BatchFlushSize)
	lastPrune := time.Now()

	for {
		select {
		case <-el.stopChan:
			for {
				batch = el.collectBatch(batch[:0])
				if len(batch) == 0 {
					return
				}
				el.flushBatch(batch)
			}

		case now := <-ticker.C:
			if batch = el.collectBatch(batch[:0]); len(batch) > 0 {
				el.flushBatch(batch)
			}
			if now.Sub(lastPrune) >= SourceIdleTimeout {
				el.sources.prune(now.Add(-SourceIdleTimeout))
				lastPrune = now
			}
		}
	}
}

// collectBatch reads available events from circular buffer
func (el *EventLog) collectBatch(batch []Event) []Event {
	head := atomic.LoadUint64(&el.writeHead)
	tail := atomic.LoadUint64(&el.readHead)

	for i := tail; i < head && len(batch) < BatchFlushSize; i++ {
		batch = append(batch, el.buffer[(i+1)%EventBufferSize])
	}
	if len(batch) > 0 {
		atomic.AddUint64(&el.readHead, uint64(len(batch)))
	}
	return batch
}

// flushBatch writes events to disk (append-only, newline-delimited JSON)
func (el *EventLog) flushBatch(batch []Event) {
	el.fileMu.Lock()
	defer el.fileMu.Unlock()

	if el.file == nil {
		return
	}

	w := bufio.NewWriter(el.file)
	enc := json.NewEncoder(w)
	for _, event := range batch {
		if err := enc.Encode(event); err != nil {
			log.Printf("⚠️ Event journal encode failed: %v", err)
		}
	}
	if err := w.Flush(); err != nil {
		log.Printf("⚠️ Event journal write failed: %v", err)
	}
}

// GetStats returns journal counters, including a per-type breakdown
func (el *EventLog) GetStats() map[string]interface{} {
	head := atomic.LoadUint64(&el.writeHead)
	tail := atomic.LoadUint64(&el.readHead)

	byType := make(map[string]uint64)
	for i := range el.typeCounts {
		if n := atomic.LoadUint64(&el.typeCounts[i]); n > 0 {
			byType[EventType(i).String()] = n
		}
	}

	return map[string]interface{}{
		"total":   atomic.LoadUint64(&el.totalCount),
		"dropped": atomic.LoadUint64(&el.droppedCount),
		"pending": head - tail,
		"running": el.running.Load(),
		"file":    el.filePath,
		"sources": el.sources.len(),
		"byType":  byType,
	}
}

// GetDroppedCount returns the number of dropped events
func (el *EventLog) GetDroppedCount() uint64 {
	return atomic.LoadUint64(&el.droppedCount)
}

// GetTotalCount returns the total number of events processed
func (el *EventLog) GetTotalCount() uint64 {
	return atomic.LoadUint64(&el.totalCount)
}
