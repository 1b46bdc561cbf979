// Package seed loads a demo project with sample telemetry so a fresh
// install has something to look at.
package seed

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/urfave/cli/v3"

	"github.com/statline/statline-backend/cmd/statline/shared"
	"github.com/statline/statline-backend/internal/app"
	types "github.com/statline/statline-backend/internal/domain"
	"github.com/statline/statline-backend/internal/pkg/pointers"
	"github.com/statline/statline-backend/internal/services"
)

const nameFlag = "name"
const slugFlag = "slug"

func GetCommand() *cli.Command {
	return &cli.Command{
		Name:  "seed",
		Usage: "Create a demo project with sample events",
		Flags: append([]cli.Flag{
			&cli.StringFlag{Name: nameFlag, Usage: "Project name", Value: "Demo Project"},
			&cli.StringFlag{Name: slugFlag, Usage: "Project slug", Value: "demo"},
		}, shared.GetFlags()...),
		Action: func(ctx context.Context, cmd *cli.Command) error {
			return shared.WithApp(ctx, cmd, func(ctx context.Context, a *app.App) error {
				slug := cmd.String(slugFlag)

				p, key, err := a.Services.Project.CreateProject(ctx, cmd.String(nameFlag), slug)
				if err != nil {
					if !types.IsCode(err, types.CodeConflict) {
						return err
					}
					// Re-running seed against an existing project is fine;
					// the dedupe IDs keep the events from doubling.
					p, err = a.Services.Project.GetProjectBySlug(ctx, slug)
					if err != nil {
						return err
					}
					key = ""
				}

				jwt, _, err := a.Services.Auth.MintToken(ctx, p.ID, "seed")
				if err != nil {
					return err
				}

				res, err := a.Services.Event.Ingest(ctx, p.ID, sampleBatch(time.Now().UTC()))
				if err != nil {
					return err
				}

				// Roll up yesterday right away so insights are non-empty.
				yesterday := time.Now().UTC().AddDate(0, 0, -1).Truncate(24 * time.Hour)
				if _, err := a.Services.Insight.RecomputeDay(ctx, p.ID, yesterday); err != nil {
					return err
				}

				fmt.Printf("Seeded project %s: accepted=%d deduped=%d dropped=%d\n",
					p.Slug, res.Accepted, res.Deduped, res.Dropped)
				if key != "" {
					fmt.Printf("Ingest key (shown once): %s\n", key)
				}
				fmt.Printf("Dashboard token (shown once): %s\n", jwt)
				return nil
			})
		},
	}
}

func sampleBatch(now time.Time) []services.IngestEvent {
	yesterday := now.AddDate(0, 0, -1).Truncate(24 * time.Hour).Add(9 * time.Hour)
	sessA := uuid.New()
	sessB := uuid.New()

	return []services.IngestEvent{
		{ClientEventID: "seed-001", Kind: "session_started", Source: "web", SessionID: sessA, OccurredAt: yesterday},
		{ClientEventID: "seed-002", Kind: "page_view", Source: "web", SessionID: sessA, OccurredAt: yesterday.Add(1 * time.Minute), Props: json.RawMessage(`{"path":"/"}`)},
		{ClientEventID: "seed-003", Kind: "page_view", Source: "web", SessionID: sessA, OccurredAt: yesterday.Add(3 * time.Minute), Props: json.RawMessage(`{"path":"/pricing"}`)},
		{ClientEventID: "seed-004", Kind: "action", Source: "web", SessionID: sessA, OccurredAt: yesterday.Add(4 * time.Minute), Props: json.RawMessage(`{"name":"signup_clicked"}`)},
		{ClientEventID: "seed-005", Kind: "timing", Source: "web", SessionID: sessA, OccurredAt: yesterday.Add(5 * time.Minute), DurationMS: pointers.Float64(183), Props: json.RawMessage(`{"name":"checkout_api"}`)},
		{ClientEventID: "seed-006", Kind: "metric", Source: "web", SessionID: sessA, OccurredAt: yesterday.Add(6 * time.Minute), Value: pointers.Float64(42.5), Props: json.RawMessage(`{"name":"cart_total"}`)},
		{ClientEventID: "seed-007", Kind: "flag_check", Source: "web", SessionID: sessA, OccurredAt: yesterday.Add(7 * time.Minute), OK: pointers.Bool(true), Bits: 3, Props: json.RawMessage(`{"flag":"new_nav"}`)},
		{ClientEventID: "seed-008", Kind: "client_error", Source: "web", SessionID: sessA, OccurredAt: yesterday.Add(8 * time.Minute), Props: json.RawMessage(`{"message":"TypeError: cart is undefined"}`)},
		{ClientEventID: "seed-009", Kind: "session_ended", Source: "web", SessionID: sessA, OccurredAt: yesterday.Add(9 * time.Minute), DurationMS: pointers.Float64(540000)},
		{ClientEventID: "seed-010", Kind: "session_started", Source: "ios", SessionID: sessB, OccurredAt: now.Add(-30 * time.Minute)},
		{ClientEventID: "seed-011", Kind: "page_view", Source: "ios", SessionID: sessB, OccurredAt: now.Add(-29 * time.Minute), Props: json.RawMessage(`{"path":"/home"}`)},
		{ClientEventID: "seed-012", Kind: "session_ended", Source: "ios", SessionID: sessB, OccurredAt: now.Add(-5 * time.Minute), DurationMS: pointers.Float64(1500000)},
	}
}

