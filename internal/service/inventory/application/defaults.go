package application

import (
	"context"

	"stockflow/internal/service/inventory/domain"
	"stockflow/internal/service/inventory/port"
)

type nopGuard struct{}

func (nopGuard) Claim(context.Context, string) (bool, error) { return true, nil }
func (nopGuard) Release(context.Context, string) error       { return nil }

type nopRecorder struct{}

func (nopRecorder) ObserveOutcome(domain.OutcomeStatus)   {}
func (nopRecorder) ObserveEvent(string, port.EventResult) {}
func (nopRecorder) ObserveStoreError(string)              {}

// failedDeliveryPolicy 只对 FAILED 的配送结果回补库存
type failedDeliveryPolicy struct{}

func (failedDeliveryPolicy) ShouldRestock(_ context.Context, outcome domain.DeliveryOutcome) (bool, error) {
	return outcome.Status == domain.DeliveryStatusFailed, nil
}
