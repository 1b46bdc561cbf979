// Command loadgen pushes synthetic event batches at a running statline
// instance. Useful for smoke-testing ingest and for giving the rollup
// pipeline something to chew on.
package main

import (
	"bytes"
	"encoding/json"
	"flag"
	"fmt"
	"math/rand"
	"net/http"
	"os"
	"time"

	"github.com/google/uuid"
)

type event struct {
	ClientEventID string          `json:"client_event_id"`
	Kind          string          `json:"kind"`
	Source        string          `json:"source,omitempty"`
	SessionID     string          `json:"session_id,omitempty"`
	Value         *float64        `json:"value,omitempty"`
	DurationMS    *float64        `json:"duration_ms,omitempty"`
	OccurredAt    time.Time       `json:"occurred_at"`
	Props         json.RawMessage `json:"props,omitempty"`
}

var kinds = []string{"page_view", "action", "metric", "timing", "flag_check", "client_error"}

func main() {
	addr := flag.String("addr", "http://localhost:8080", "statline base URL")
	slug := flag.String("slug", "demo", "project slug")
	key := flag.String("key", "", "ingest key")
	batches := flag.Int("batches", 10, "number of batches to send")
	size := flag.Int("size", 50, "events per batch")
	flag.Parse()

	if *key == "" {
		fmt.Fprintln(os.Stderr, "missing -key")
		os.Exit(1)
	}

	url := fmt.Sprintf("%s/v1/ingest/%s/events", *addr, *slug)
	client := &http.Client{Timeout: 10 * time.Second}

	var accepted, deduped, dropped int64
	for i := 0; i < *batches; i++ {
		payload, err := json.Marshal(map[string]any{"events": batch(*size)})
		if err != nil {
			fmt.Fprintf(os.Stderr, "marshal batch %d: %v\n", i, err)
			os.Exit(1)
		}
		req, err := http.NewRequest(http.MethodPost, url, bytes.NewReader(payload))
		if err != nil {
			fmt.Fprintf(os.Stderr, "build request: %v\n", err)
			os.Exit(1)
		}
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("X-Statline-Key", *key)

		resp, err := client.Do(req)
		if err != nil {
			fmt.Fprintf(os.Stderr, "batch %d: %v\n", i, err)
			os.Exit(1)
		}
		var out struct {
			Accepted int64 `json:"accepted"`
			Deduped  int64 `json:"deduped"`
			Dropped  int64 `json:"dropped"`
		}
		if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
			resp.Body.Close()
			fmt.Fprintf(os.Stderr, "batch %d: decode response: %v\n", i, err)
			os.Exit(1)
		}
		resp.Body.Close()
		if resp.StatusCode != http.StatusOK {
			fmt.Fprintf(os.Stderr, "batch %d: status %d\n", i, resp.StatusCode)
			os.Exit(1)
		}
		accepted += out.Accepted
		deduped += out.Deduped
		dropped += out.Dropped
	}
	fmt.Printf("accepted=%d deduped=%d dropped=%d\n", accepted, deduped, dropped)
}

func batch(n int) []event {
	sess := uuid.NewString()
	now := time.Now().UTC()

	evs := make([]event, 0, n+2)
	evs = append(evs, event{
		ClientEventID: uuid.NewString(),
		Kind:          "session_started",
		Source:        "loadgen",
		SessionID:     sess,
		OccurredAt:    now,
	})
	for i := 0; i < n; i++ {
		ev := event{
			ClientEventID: uuid.NewString(),
			Kind:          kinds[rand.Intn(len(kinds))],
			Source:        "loadgen",
			SessionID:     sess,
			OccurredAt:    now.Add(time.Duration(i) * time.Second),
		}
		switch ev.Kind {
		case "metric":
			v := rand.Float64() * 100
			ev.Value = &v
		case "timing":
			d := rand.Float64() * 800
			ev.DurationMS = &d
		case "page_view":
			ev.Props = json.RawMessage(fmt.Sprintf(`{"path":"/p/%d"}`, rand.Intn(20)))
		}
		evs = append(evs, ev)
	}
	evs = append(evs, event{
		ClientEventID: uuid.NewString(),
		Kind:          "session_ended",
		Source:        "loadgen",
		SessionID:     sess,
		OccurredAt:    now.Add(time.Duration(n) * time.Second),
	})
	return evs
}
