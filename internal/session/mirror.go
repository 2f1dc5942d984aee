package session

import (
	"context"
	"encoding/hex"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
)

// Mirror is the optional external session cache (spec §4.9, §6:
// REDIS_HOST/REDIS_PORT). It is write-through and strictly advisory: every
// operation swallows and logs its own error rather than propagating it,
// per spec's Open Question decision that external cache unreachability
// never affects session processing.
type Mirror struct {
	client *redis.Client
	log    *logrus.Entry
}

// NewMirror connects to addr ("host:port"). The connection is lazy —
// go-redis dials on first use — so a misconfigured or unreachable Redis
// never blocks startup.
func NewMirror(addr string, log *logrus.Entry) *Mirror {
	return &Mirror{
		client: redis.NewClient(&redis.Options{Addr: addr}),
		log:    log,
	}
}

func (m *Mirror) Put(sess *Session) {
	if m == nil {
		return
	}
	data, err := json.Marshal(sess)
	if err != nil {
		m.warn("marshal", err)
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 500*time.Millisecond)
	defer cancel()
	if err := m.client.Set(ctx, mirrorKey(sess.ID), data, 0).Err(); err != nil {
		m.warn("set", err)
	}
}

func (m *Mirror) Delete(id [8]byte) {
	if m == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 500*time.Millisecond)
	defer cancel()
	if err := m.client.Del(ctx, mirrorKey(id)).Err(); err != nil {
		m.warn("del", err)
	}
}

func (m *Mirror) Close() error {
	if m == nil {
		return nil
	}
	return m.client.Close()
}

func (m *Mirror) warn(op string, err error) {
	if m.log == nil {
		return
	}
	m.log.WithError(err).WithField("op", op).Warn("session: redis mirror unreachable, continuing without it")
}

func mirrorKey(id [8]byte) string {
	return "iso15118:session:" + hex.EncodeToString(id[:])
}
