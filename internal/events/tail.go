package events

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strings"
	"time"

	"github.com/segmentio/kafka-go"
)

// Tail consumes the audit topic from the newest offset and pretty-prints one
// line per event to w. It returns when ctx is cancelled.
func Tail(ctx context.Context, w io.Writer, brokers, topic string) error {
	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:     strings.Split(brokers, ","),
		Topic:       topic,
		Partition:   0,
		StartOffset: kafka.LastOffset,
		MaxWait:     3 * time.Second,
	})
	defer reader.Close()

	for {
		rec, err := reader.ReadMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("read event: %w", err)
		}
		fmt.Fprintln(w, FormatLine(rec.Value))
	}
}

// FormatLine renders one audit record as "15:04:05 type sender key=value ...".
// Records that are not valid Event JSON print raw.
func FormatLine(raw []byte) string {
	var ev Event
	if err := json.Unmarshal(raw, &ev); err != nil {
		return string(raw)
	}
	var b strings.Builder
	fmt.Fprintf(&b, "%s  %-18s", ev.Timestamp.Local().Format("15:04:05"), ev.Type)
	if ev.SenderID != "" {
		fmt.Fprintf(&b, " sender=%s", ev.SenderID)
	}
	keys := make([]string, 0, len(ev.Payload))
	for k := range ev.Payload {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		fmt.Fprintf(&b, " %s=%v", k, ev.Payload[k])
	}
	return b.String()
}
