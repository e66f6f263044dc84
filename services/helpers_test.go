package services

import (
	"context"
	"sync"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/yashrajoria/storefront-api/cache"
	"github.com/yashrajoria/storefront-api/models"
	"github.com/yashrajoria/storefront-api/notify"
	"go.uber.org/zap"
)

func newTestRedis(t *testing.T) *redis.Client {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return client
}

func newTestGuard(t *testing.T) cache.Guard {
	return cache.NewRedisGuard(newTestRedis(t))
}

type sentMessage struct {
	Channel models.OtpChannel
	To      string
	Subject string
	Body    string
}

// recordingNotifier captures messages and fails for channels listed in fail.
type recordingNotifier struct {
	mu   sync.Mutex
	sent []sentMessage
	fail map[models.OtpChannel]error
}

func (n *recordingNotifier) Send(_ context.Context, ch models.OtpChannel, to, subject, body string) (notify.SendResult, error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	if err := n.fail[ch]; err != nil {
		return notify.SendResult{}, err
	}
	n.sent = append(n.sent, sentMessage{Channel: ch, To: to, Subject: subject, Body: body})
	return notify.SendResult{MessageID: "msg-1"}, nil
}

func (n *recordingNotifier) last() sentMessage {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.sent[len(n.sent)-1]
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []string
}

func (p *recordingPublisher) PublishEvent(_ context.Context, _, eventType string, _ []byte) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, eventType)
	return nil
}

type recordingQueue struct {
	mu     sync.Mutex
	bodies []string
}

func (q *recordingQueue) SendMessage(_ context.Context, body string) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.bodies = append(q.bodies, body)
	return nil
}

var testLogger = zap.NewNop()
