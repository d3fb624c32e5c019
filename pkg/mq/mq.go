package mq

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"

	"student-portal/config"
)

// ── 路由键 ──

const (
	RoutingProjectSubmitted   = "project.submitted"
	RoutingProjectApproved    = "project.approved"
	RoutingProjectRejected    = "project.rejected"
	RoutingProjectCompleted   = "project.completed"
	RoutingEvaluationRecorded = "evaluation.submitted"
	RoutingAssignmentChanged  = "assignment.changed"
)

// Event 领域事件信封
type Event struct {
	Type       string      `json:"type"`
	OccurredAt time.Time   `json:"occurred_at"`
	ActorID    string      `json:"actor_id,omitempty"`
	Payload    interface{} `json:"payload"`
}

// Publisher 事件发布接口
// 发布失败不影响已提交的业务写入，由调用方记录日志
type Publisher interface {
	Publish(ctx context.Context, routingKey string, event Event) error
	Close() error
}

// ── RabbitMQ 实现 ──

type rabbitPublisher struct {
	conn     *amqp.Connection
	channel  *amqp.Channel
	exchange string
	logger   *zap.Logger
	mu       sync.Mutex // amqp.Channel 非并发安全
}

// NewRabbitPublisher 连接 RabbitMQ 并声明 topic exchange
func NewRabbitPublisher(cfg *config.BrokerConfig, logger *zap.Logger) (Publisher, error) {
	conn, err := amqp.Dial(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("连接 RabbitMQ 失败: %w", err)
	}

	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("打开 RabbitMQ channel 失败: %w", err)
	}

	if err := ch.ExchangeDeclare(
		cfg.Exchange, // name
		"topic",      // kind
		true,         // durable
		false,        // auto-delete
		false,        // internal
		false,        // no-wait
		nil,
	); err != nil {
		_ = ch.Close()
		_ = conn.Close()
		return nil, fmt.Errorf("声明 exchange 失败: %w", err)
	}

	logger.Info("RabbitMQ 连接成功", zap.String("exchange", cfg.Exchange))

	return &rabbitPublisher{
		conn:     conn,
		channel:  ch,
		exchange: cfg.Exchange,
		logger:   logger,
	}, nil
}

func (p *rabbitPublisher) Publish(ctx context.Context, routingKey string, event Event) error {
	body, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("序列化事件失败: %w", err)
	}

	publishCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	p.mu.Lock()
	defer p.mu.Unlock()

	return p.channel.PublishWithContext(
		publishCtx,
		p.exchange, // exchange
		routingKey, // routing key
		false,      // mandatory
		false,      // immediate
		amqp.Publishing{
			ContentType:  "application/json",
			Body:         body,
			DeliveryMode: amqp.Persistent,
			Timestamp:    event.OccurredAt,
			Type:         event.Type,
		},
	)
}

func (p *rabbitPublisher) Close() error {
	if err := p.channel.Close(); err != nil {
		p.logger.Warn("关闭 RabbitMQ channel 失败", zap.Error(err))
	}
	return p.conn.Close()
}

// ── Noop 实现 ──

type noopPublisher struct{}

// NewNoopPublisher 未配置消息队列时使用，丢弃所有事件
func NewNoopPublisher() Publisher { return noopPublisher{} }

func (noopPublisher) Publish(context.Context, string, Event) error { return nil }
func (noopPublisher) Close() error                                 { return nil }

// ── 内存实现 ──

// Recorder 记录已发布事件的内存发布器，用于测试与本地调试
type Recorder struct {
	mu     sync.Mutex
	Events []RecordedEvent
}

// RecordedEvent 已记录的事件
type RecordedEvent struct {
	RoutingKey string
	Event      Event
}

// NewRecorder 创建内存发布器
func NewRecorder() *Recorder { return &Recorder{} }

func (r *Recorder) Publish(_ context.Context, routingKey string, event Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Events = append(r.Events, RecordedEvent{RoutingKey: routingKey, Event: event})
	return nil
}

func (r *Recorder) Close() error { return nil }

// Keys 返回按发布顺序排列的路由键
func (r *Recorder) Keys() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	keys := make([]string, 0, len(r.Events))
	for _, e := range r.Events {
		keys = append(keys, e.RoutingKey)
	}
	return keys
}
