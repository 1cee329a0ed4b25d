package port

import "context"

// IdempotencyGuard 记录已经处理过的事件
type IdempotencyGuard interface {
	// Claim 首次声明 key 时返回 true；key 已存在时返回 false。
	Claim(ctx context.Context, key string) (bool, error)
	// Release 撤销声明，使同一事件的重投可以再次生效。
	Release(ctx context.Context, key string) error
}
