package logger

import (
	"context"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const (
	sinkQueueSize = 4096
	sinkBatchSize = 50
	sinkDrainTick = 2 * time.Second
)

// Inserter is the part of *mongo.Collection the sink writes through.
type Inserter interface {
	InsertMany(ctx context.Context, docs []interface{}, opts ...*options.InsertManyOptions) (*mongo.InsertManyResult, error)
}

// LogDocument is one stored log line. Intent and order ids are lifted to the
// top level so the history of a payment can be queried directly.
type LogDocument struct {
	Time      time.Time `bson:"time"`
	Level     string    `bson:"level"`
	Msg       string    `bson:"msg"`
	RequestID string    `bson:"request_id,omitempty"`
	IntentID  string    `bson:"intent_id,omitempty"`
	OrderID   string    `bson:"order_id,omitempty"`
	Attrs     bson.M    `bson:"attrs,omitempty"`
}

type sinkState struct {
	out     Inserter
	queue   chan LogDocument
	done    chan struct{}
	stopped sync.WaitGroup
	once    sync.Once
	dropped atomic.Int64
}

// MongoSink is an slog.Handler that batches records into MongoDB off the
// request path. A full buffer drops records; logging never blocks.
type MongoSink struct {
	state  *sinkState
	min    slog.Level
	attrs  []slog.Attr
	prefix string
}

// NewMongoSink starts the background writer. Call Close to flush.
func NewMongoSink(out Inserter, min slog.Level) *MongoSink {
	st := &sinkState{
		out:   out,
		queue: make(chan LogDocument, sinkQueueSize),
		done:  make(chan struct{}),
	}
	st.stopped.Add(1)
	go st.drain()
	return &MongoSink{state: st, min: min}
}

// EnsureLogIndexes adds the time and per-intent lookup indexes on col.
func EnsureLogIndexes(ctx context.Context, col *mongo.Collection) error {
	_, err := col.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "time", Value: -1}}},
		{Keys: bson.D{{Key: "intent_id", Value: 1}, {Key: "time", Value: 1}}},
	})
	return err
}

func (h *MongoSink) Enabled(_ context.Context, level slog.Level) bool { return level >= h.min }

func (h *MongoSink) Handle(_ context.Context, r slog.Record) error {
	doc := LogDocument{
		Time:  r.Time,
		Level: r.Level.String(),
		Msg:   r.Message,
		Attrs: bson.M{},
	}

	for _, a := range h.attrs {
		h.collect(&doc, "", a)
	}
	r.Attrs(func(a slog.Attr) bool {
		h.collect(&doc, h.prefix, a)
		return true
	})
	if len(doc.Attrs) == 0 {
		doc.Attrs = nil
	}

	select {
	case h.state.queue <- doc:
	default:
		h.state.dropped.Add(1)
	}
	return nil
}

func (h *MongoSink) collect(doc *LogDocument, prefix string, a slog.Attr) {
	a.Value = a.Value.Resolve()
	if a.Equal(slog.Attr{}) {
		return
	}
	if a.Value.Kind() == slog.KindGroup {
		for _, ga := range a.Value.Group() {
			h.collect(doc, prefix+a.Key+".", ga)
		}
		return
	}

	key := prefix + a.Key
	switch key {
	case "request_id":
		doc.RequestID = a.Value.String()
	case "intent_id":
		doc.IntentID = a.Value.String()
	case "order_id":
		doc.OrderID = a.Value.String()
	default:
		doc.Attrs[key] = sinkValue(a.Value)
	}
}

func sinkValue(v slog.Value) interface{} {
	switch v.Kind() {
	case slog.KindDuration:
		return v.Duration().String()
	case slog.KindAny:
		if err, ok := v.Any().(error); ok {
			return err.Error()
		}
		return v.String()
	default:
		return v.Any()
	}
}

func (h *MongoSink) WithAttrs(attrs []slog.Attr) slog.Handler {
	next := *h
	next.attrs = make([]slog.Attr, 0, len(h.attrs)+len(attrs))
	next.attrs = append(next.attrs, h.attrs...)
	for _, a := range attrs {
		if h.prefix != "" {
			a.Key = h.prefix + a.Key
		}
		next.attrs = append(next.attrs, a)
	}
	return &next
}

func (h *MongoSink) WithGroup(name string) slog.Handler {
	if name == "" {
		return h
	}
	next := *h
	next.prefix = h.prefix + name + "."
	return &next
}

// Dropped reports how many records were discarded because the buffer was full.
func (h *MongoSink) Dropped() int64 { return h.state.dropped.Load() }

// Close flushes buffered records and stops the writer.
func (h *MongoSink) Close() {
	h.state.once.Do(func() { close(h.state.done) })
	h.state.stopped.Wait()
}

func (st *sinkState) drain() {
	defer st.stopped.Done()

	ticker := time.NewTicker(sinkDrainTick)
	defer ticker.Stop()

	batch := make([]interface{}, 0, sinkBatchSize)
	flush := func() {
		if len(batch) == 0 {
			return
		}
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		// Nowhere to report a failed write; the stdout handler has the line.
		_, _ = st.out.InsertMany(ctx, batch)
		batch = make([]interface{}, 0, sinkBatchSize)
	}

	for {
		select {
		case doc := <-st.queue:
			batch = append(batch, doc)
			if len(batch) >= sinkBatchSize {
				flush()
			}
		case <-ticker.C:
			flush()
		case <-st.done:
			for len(st.queue) > 0 {
				batch = append(batch, <-st.queue)
			}
			flush()
			return
		}
	}
}

// ParseLevel maps "debug", "info", "warn" or "error" to a level, defaulting to info.
func ParseLevel(s string) slog.Level {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
