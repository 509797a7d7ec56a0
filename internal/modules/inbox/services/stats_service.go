package services

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/MuhamadAgungGumelar/omnichannel-inbox-be/internal/core/analytics"
	"github.com/MuhamadAgungGumelar/omnichannel-inbox-be/internal/core/channel"
	"github.com/MuhamadAgungGumelar/omnichannel-inbox-be/internal/modules/inbox/models"
	"github.com/MuhamadAgungGumelar/omnichannel-inbox-be/internal/modules/inbox/repositories"
)

// ChannelVolume is the message count of one channel in a report
type ChannelVolume struct {
	Channel  channel.Type `json:"channel"`
	Inbound  int64        `json:"inbound"`
	Outbound int64        `json:"outbound"`
	Failed   int64        `json:"failed"`
}

// VolumeReport summarizes a tenant's traffic over a date range
type VolumeReport struct {
	Range            analytics.DateRange `json:"range"`
	Inbound          int64               `json:"inbound"`
	Outbound         int64               `json:"outbound"`
	Failed           int64               `json:"failed"`
	NewConversations int64               `json:"new_conversations"`
	ByChannel        []ChannelVolume     `json:"by_channel"`
	Daily            analytics.ChartData `json:"daily"`
}

// StatsService reports message volume for the dashboard
type StatsService struct {
	aggregator *analytics.Aggregator
	messages   repositories.MessageRepo
	location   *time.Location
}

func NewStatsService(aggregator *analytics.Aggregator, messages repositories.MessageRepo) *StatsService {
	return &StatsService{aggregator: aggregator, messages: messages, location: time.UTC}
}

func (s *StatsService) MessageVolume(ctx context.Context, tenantID uuid.UUID, r analytics.DateRange) (*VolumeReport, error) {
	report := &VolumeReport{Range: r, ByChannel: []ChannelVolume{}}

	r.Field = "messages.occurred_at"
	rows, err := s.aggregator.Aggregate(ctx, analytics.AggregateQuery{
		Table:      "messages JOIN platforms ON platforms.id = messages.platform_id",
		GroupBy:    []string{"platforms.type", "messages.direction", "messages.status"},
		Aggregates: map[string]string{"total": "COUNT(*)"},
		Filters:    map[string]interface{}{"messages.tenant_id": tenantID},
		DateRange:  &r,
	})
	if err != nil {
		return nil, fmt.Errorf("message volume: %w", err)
	}

	byChannel := map[channel.Type]*ChannelVolume{}
	for _, row := range rows {
		typ := channel.Type(analytics.ToString(row["type"]))
		total := analytics.ToInt64(row["total"])
		cv, ok := byChannel[typ]
		if !ok {
			cv = &ChannelVolume{Channel: typ}
			byChannel[typ] = cv
		}
		if models.Direction(analytics.ToString(row["direction"])) == models.DirectionInbound {
			cv.Inbound += total
			report.Inbound += total
		} else {
			cv.Outbound += total
			report.Outbound += total
		}
		if channel.DeliveryStatus(analytics.ToString(row["status"])) == channel.StatusFailed {
			cv.Failed += total
			report.Failed += total
		}
	}
	for _, cv := range byChannel {
		report.ByChannel = append(report.ByChannel, *cv)
	}
	sort.Slice(report.ByChannel, func(i, j int) bool { return report.ByChannel[i].Channel < report.ByChannel[j].Channel })

	convRange := r
	convRange.Field = "created_at"
	report.NewConversations, err = s.aggregator.Count(ctx, "conversations", map[string]interface{}{"tenant_id": tenantID}, &convRange)
	if err != nil {
		return nil, fmt.Errorf("new conversations: %w", err)
	}

	points, err := s.messages.Timeline(ctx, tenantID, r.Start, r.End)
	if err != nil {
		return nil, fmt.Errorf("message timeline: %w", err)
	}
	daily := analytics.NewDailyCounter(analytics.DayLabels(r), string(models.DirectionInbound), string(models.DirectionOutbound))
	for _, p := range points {
		daily.Add(string(p.Direction), analytics.DayLabel(p.OccurredAt, s.location), 1)
	}
	report.Daily = daily.Chart()
	return report, nil
}
