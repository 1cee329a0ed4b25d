package port

import "stockflow/internal/service/inventory/domain"

// EventResult 是监听循环处理一条入站消息的结果
type EventResult string

const (
	EventApplied   EventResult = "applied"
	EventMalformed EventResult = "malformed"
	EventFailed    EventResult = "failed"
	EventDuplicate EventResult = "duplicate"
	EventIgnored   EventResult = "ignored"
)

// Recorder 收集业务指标
type Recorder interface {
	ObserveOutcome(status domain.OutcomeStatus)
	ObserveEvent(topic string, result EventResult)
	ObserveStoreError(operation string)
}
