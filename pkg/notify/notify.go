package notify

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"
)

// ConfirmationData is everything a confirmation message needs. The booking
// engine fills it in and does not care whether the send succeeds.
type ConfirmationData struct {
	VisitorName     string
	VisitorEmail    string
	SlotDate        string
	SlotTime        string
	SlotEndTime     string
	GroupSize       int
	TrackingToken   string
	SpecialRequests *string
}

type Notifier interface {
	SendBookingConfirmation(ctx context.Context, data ConfirmationData) error
}

func confirmationSubject(data ConfirmationData) string {
	return fmt.Sprintf("Your visit on %s is confirmed", data.SlotDate)
}

func confirmationText(data ConfirmationData) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Hello %s,\n\n", data.VisitorName)
	fmt.Fprintf(&sb, "Your visit on %s from %s to %s is confirmed for %d guest(s).\n",
		data.SlotDate, data.SlotTime, data.SlotEndTime, data.GroupSize)
	if data.SpecialRequests != nil && strings.TrimSpace(*data.SpecialRequests) != "" {
		fmt.Fprintf(&sb, "Special requests: %s\n", *data.SpecialRequests)
	}
	fmt.Fprintf(&sb, "\nYour tracking code is %s. Keep it to change or cancel your booking.\n", data.TrackingToken)
	return sb.String()
}

// LogNotifier writes confirmations to the logger instead of sending them.
// Used when no email provider is configured.
type LogNotifier struct {
	log *zap.Logger
}

func NewLogNotifier(log *zap.Logger) *LogNotifier {
	return &LogNotifier{log: log.With(zap.String("notifier", "log"))}
}

func (n *LogNotifier) SendBookingConfirmation(_ context.Context, data ConfirmationData) error {
	n.log.Info("Booking confirmation",
		zap.String("to", data.VisitorEmail),
		zap.String("subject", confirmationSubject(data)),
		zap.String("tracking_token", data.TrackingToken),
		zap.String("slot_date", data.SlotDate),
		zap.String("slot_time", data.SlotTime),
		zap.Int("group_size", data.GroupSize),
	)
	return nil
}
