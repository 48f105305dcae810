package main

import (
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"

	"github.com/ricesearch/rice-syntax/internal/bus"
	"github.com/ricesearch/rice-syntax/internal/worker"
)

// replayResult pairs a logged request with the response it gets now.
type replayResult struct {
	EventID  string          `json:"eventId"`
	LoggedAt time.Time       `json:"loggedAt"`
	Fn       string          `json:"fn"`
	Response worker.Response `json:"response"`
}

func replayCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "replay <event-log>",
		Short: "Re-run the requests recorded in a bus event log",
		Long: `Re-run every request recorded in a JSONL bus event log against the
in-process engine and print one response per line. Responses and events on
other topics are skipped.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			sinceFlag, _ := cmd.Flags().GetDuration("since")
			limit, _ := cmd.Flags().GetInt("limit")
			topic, _ := cmd.Flags().GetString("topic")

			s, err := openSession(cmd)
			if err != nil {
				return err
			}
			defer s.Close()

			d, err := s.dispatcher()
			if err != nil {
				return err
			}
			if topic == "" {
				topic = s.cfg.Bus.Topic
			}

			var since time.Time
			if sinceFlag > 0 {
				since = time.Now().Add(-sinceFlag)
			}
			events, err := bus.ReadEvents(args[0], bus.EventFilter{Since: since, Topic: topic, Limit: limit})
			if err != nil {
				return err
			}

			replayed, failed := 0, 0
			for _, logged := range events {
				var env worker.Envelope
				if err := bus.DecodePayload(logged.Event, &env); err != nil {
					s.log.Warn("Skipping malformed request", "event_id", logged.Event.ID, "error", err)
					continue
				}

				resp := d.HandleEnvelope(cmd.Context(), env)
				replayed++
				if resp.Err != nil {
					failed++
				}
				if err := jsonLine(s.out, replayResult{
					EventID:  logged.Event.ID,
					LoggedAt: logged.Timestamp,
					Fn:       env.Fn,
					Response: resp,
				}); err != nil {
					return err
				}
			}

			s.log.Info("Replay finished", "replayed", replayed, "failed", failed)
			if replayed == 0 {
				return fmt.Errorf("no requests on topic %s in %s", topic, args[0])
			}
			return nil
		},
	}
	cmd.Flags().Duration("since", 0, "only replay events newer than this (default: all)")
	cmd.Flags().Int("limit", 0, "maximum events to read (0 = no limit)")
	cmd.Flags().String("topic", "", "request topic (default: bus.topic from config)")
	return cmd
}

func jsonLine(w io.Writer, v any) error {
	return json.NewEncoder(w).Encode(v)
}
