package service

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"
	"github.com/taichu-system/rental-management/internal/logger"
	"github.com/taichu-system/rental-management/internal/metrics"
	"go.uber.org/zap"
)

const notifyTimeout = 5 * time.Second

// TransitionEvent 申请/租约状态变化事件
type TransitionEvent struct {
	Type          string     `json:"type"`
	ApplicationID uuid.UUID  `json:"application_id"`
	PropertyID    uuid.UUID  `json:"property_id"`
	UnitNumber    string     `json:"unit_number"`
	ApplicantID   uuid.UUID  `json:"applicant_id"`
	TenantID      *uuid.UUID `json:"tenant_id,omitempty"`
	Reason        string     `json:"reason,omitempty"`
	Actor         string     `json:"actor,omitempty"`
	OccurredAt    time.Time  `json:"occurred_at"`
}

// Notifier 通知投递，事务提交后调用，失败不影响业务结果
type Notifier interface {
	Notify(ctx context.Context, event TransitionEvent) error
}

// LogNotifier 只写日志
type LogNotifier struct{}

func NewLogNotifier() *LogNotifier {
	return &LogNotifier{}
}

func (n *LogNotifier) Notify(ctx context.Context, event TransitionEvent) error {
	logger.FromContext(ctx).Info("transition event",
		zap.String("type", event.Type),
		zap.String("application_id", event.ApplicationID.String()),
		zap.String("property_id", event.PropertyID.String()),
		zap.String("unit_number", event.UnitNumber),
	)
	return nil
}

type redisPublisher interface {
	Publish(ctx context.Context, channel string, message interface{}) *redis.IntCmd
}

// RedisNotifier 通过 Redis pub/sub 发布事件
type RedisNotifier struct {
	client  redisPublisher
	channel string
}

// NewRedisNotifier client 通常为 *redis.Client
func NewRedisNotifier(client redisPublisher, channel string) *RedisNotifier {
	return &RedisNotifier{client: client, channel: channel}
}

func (n *RedisNotifier) Notify(ctx context.Context, event TransitionEvent) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("序列化通知事件失败: %w", err)
	}
	if err := n.client.Publish(ctx, n.channel, payload).Err(); err != nil {
		return fmt.Errorf("发布通知到 %s 失败: %w", n.channel, err)
	}
	return nil
}

// dispatchNotification 后台投递，panic 和错误都只记录
func dispatchNotification(ctx context.Context, notifier Notifier, m *metrics.Metrics, event TransitionEvent) {
	if notifier == nil {
		return
	}
	log := logger.FromContext(ctx)

	go func() {
		defer func() {
			if r := recover(); r != nil {
				m.NotifyFailed()
				log.Error("notifier panicked", zap.Any("panic", r), zap.String("type", event.Type))
			}
		}()

		notifyCtx, cancel := context.WithTimeout(logger.WithContext(context.Background(), log), notifyTimeout)
		defer cancel()

		if err := notifier.Notify(notifyCtx, event); err != nil {
			m.NotifyFailed()
			log.Warn("failed to deliver transition event",
				zap.String("type", event.Type),
				zap.String("application_id", event.ApplicationID.String()),
				zap.Error(err),
			)
		}
	}()
}
