// Package notify defines the outbound notification channel consumed by the
// order and OTP flows. Delivery is strictly best-effort: a send failure is
// recorded and logged but never fails the business action that triggered it.
package notify

import (
	"context"

	"go.uber.org/zap"
)

type Sender interface {
	Send(ctx context.Context, destination, message string) error
}

// Report captures the outcome of a best-effort send.
type Report struct {
	Destination string `json:"destination"`
	Sent        bool   `json:"sent"`
	Error       string `json:"error,omitempty"`
}

// BestEffort sends and swallows the error. The caller keeps the Report for
// its response payload; the failure still lands in the log.
func BestEffort(ctx context.Context, log *zap.Logger, s Sender, destination, message string) Report {
	if err := s.Send(ctx, destination, message); err != nil {
		log.Warn("notification send failed",
			zap.String("destination", destination),
			zap.Error(err),
		)
		return Report{Destination: destination, Error: err.Error()}
	}
	return Report{Destination: destination, Sent: true}
}
