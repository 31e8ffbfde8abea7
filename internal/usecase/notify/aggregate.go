package notify

import (
	"math"

	"schoolnotify/internal/domain/entity"
)

// successThreshold is the delivery rate at or above which a dispatch counts as successful.
const successThreshold = 50

// Aggregate merges per-channel results into a DeliveryReport.
//
// Every channel present in results counts as attempted, even with no results.
// DeliveryRate is sent / (recipientCount × attempted channels) × 100 rounded
// to the nearest integer, and 0 when the denominator is 0. Only FAILED
// results contribute to a channel's Errors.
//
// Aggregate has no side effects: equal inputs give equal reports.
func Aggregate(recipientCount int, results map[entity.Channel][]entity.DeliveryResult) *entity.DeliveryReport {
	report := &entity.DeliveryReport{
		Recipients:        recipientCount,
		ChannelsAttempted: len(results),
		Channels:          make(map[entity.Channel]entity.ChannelSummary, len(results)),
	}

	for _, ch := range orderedChannels(results) {
		summary := entity.ChannelSummary{Errors: []entity.DeliveryError{}}
		for _, r := range results[ch] {
			switch r.Status {
			case entity.StatusSent:
				summary.Sent++
			case entity.StatusFailed:
				summary.Failed++
				summary.Errors = append(summary.Errors, entity.DeliveryError{
					RecipientID: r.RecipientID,
					Message:     r.ErrorDetail,
				})
			case entity.StatusSkipped:
				summary.Skipped++
			}
		}
		report.Channels[ch] = summary
		report.TotalSent += summary.Sent
		report.TotalFailed += summary.Failed
		report.TotalSkipped += summary.Skipped
	}

	attempts := recipientCount * report.ChannelsAttempted
	if attempts > 0 {
		report.DeliveryRate = int(math.Round(float64(report.TotalSent) * 100 / float64(attempts)))
	}
	report.OverallSuccess = report.DeliveryRate >= successThreshold

	return report
}

// orderedChannels returns the keys of results in entity.AllChannels order,
// followed by any unknown channels.
func orderedChannels(results map[entity.Channel][]entity.DeliveryResult) []entity.Channel {
	out := make([]entity.Channel, 0, len(results))
	seen := make(map[entity.Channel]bool, len(results))
	for _, ch := range entity.AllChannels {
		if _, ok := results[ch]; ok {
			out = append(out, ch)
			seen[ch] = true
		}
	}
	for ch := range results {
		if !seen[ch] {
			out = append(out, ch)
		}
	}
	return out
}
