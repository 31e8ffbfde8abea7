package main

import (
	"encoding/json"
	"fmt"
	"io"

	"schoolnotify/internal/domain/entity"
)

func writeReport(w io.Writer, format string, r *entity.DeliveryReport) error {
	if format == "json" {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		if err := enc.Encode(r); err != nil {
			return fmt.Errorf("encode report: %w", err)
		}
		return nil
	}

	fmt.Fprintf(w, "Recipients: %d\n", r.Recipients)
	fmt.Fprintf(w, "Channels attempted: %d\n", r.ChannelsAttempted)
	for _, ch := range entity.AllChannels {
		s, ok := r.Channels[ch]
		if !ok {
			continue
		}
		fmt.Fprintf(w, "  %-9s sent=%d failed=%d skipped=%d\n", ch, s.Sent, s.Failed, s.Skipped)
		for _, e := range s.Errors {
			fmt.Fprintf(w, "    recipient %d: %s\n", e.RecipientID, e.Message)
		}
	}
	fmt.Fprintf(w, "Total: sent=%d failed=%d skipped=%d\n", r.TotalSent, r.TotalFailed, r.TotalSkipped)
	fmt.Fprintf(w, "Delivery rate: %d%%\n", r.DeliveryRate)
	if r.OverallSuccess {
		fmt.Fprintln(w, "Result: success")
	} else {
		fmt.Fprintln(w, "Result: below success threshold")
	}
	return nil
}
