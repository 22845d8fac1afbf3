package services

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"firebase.google.com/go/v4/messaging"
	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chachabrian/mooveit-fleet/internal/models"
	"github.com/chachabrian/mooveit-fleet/internal/notify"
	"github.com/chachabrian/mooveit-fleet/internal/store"
	"github.com/chachabrian/mooveit-fleet/pkg/logger"
)

type published struct {
	target  string
	payload []byte
}

func receive(t *testing.T, ch <-chan published) published {
	t.Helper()
	select {
	case p := <-ch:
		return p
	case <-time.After(2 * time.Second):
		t.Fatal("nothing published")
		return published{}
	}
}

type fakeRedis struct{ out chan published }

func (f *fakeRedis) Publish(_ context.Context, channel string, message interface{}) *redis.IntCmd {
	f.out <- published{target: channel, payload: message.([]byte)}
	return redis.NewIntResult(1, nil)
}

func TestRedisPublisherChannels(t *testing.T) {
	fake := &fakeRedis{out: make(chan published, 2)}
	p := NewRedisPublisher(fake, "fleet", logger.Discard())
	driverID := uuid.New()

	p.NotifyAdmins(context.Background(), notify.Notification{Type: notify.TypeDamageReported})
	got := receive(t, fake.out)
	assert.Equal(t, "fleet:admins", got.target)

	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(got.payload, &body))
	assert.Equal(t, notify.TypeDamageReported, body["type"])
	assert.Contains(t, body, "timestamp")

	p.NotifyDriver(context.Background(), driverID, notify.Notification{Type: notify.TypeTripAssigned})
	assert.Equal(t, "fleet:drivers:"+driverID.String(), receive(t, fake.out).target)
}

type doneToken struct{ err error }

func (d doneToken) Wait() bool                     { return true }
func (d doneToken) WaitTimeout(time.Duration) bool { return true }
func (d doneToken) Done() <-chan struct{} {
	ch := make(chan struct{})
	close(ch)
	return ch
}
func (d doneToken) Error() error { return d.err }

type fakeMQTT struct{ out chan published }

func (f *fakeMQTT) Publish(topic string, qos byte, retained bool, payload interface{}) mqtt.Token {
	f.out <- published{target: topic, payload: payload.([]byte)}
	return doneToken{}
}

func TestMQTTPublisherTopics(t *testing.T) {
	fake := &fakeMQTT{out: make(chan published, 2)}
	p := NewMQTTPublisher(fake, "", logger.Discard())
	driverID := uuid.New()

	p.NotifyDriver(context.Background(), driverID, notify.Notification{Type: notify.TypeVehicleAssigned})
	got := receive(t, fake.out)
	assert.Equal(t, "mooveit/drivers/"+driverID.String(), got.target)
	assert.Contains(t, string(got.payload), notify.TypeVehicleAssigned)

	p.NotifyAdmins(context.Background(), notify.Notification{Type: notify.TypeShiftClosed})
	assert.Equal(t, "mooveit/admins", receive(t, fake.out).target)
}

type fakeFCM struct{ out chan *messaging.Message }

func (f *fakeFCM) Send(_ context.Context, m *messaging.Message) (string, error) {
	f.out <- m
	return "projects/test/messages/1", nil
}

type fakeUsers map[uuid.UUID]*models.User

func (f fakeUsers) GetUser(_ context.Context, id uuid.UUID) (*models.User, error) {
	if u, ok := f[id]; ok {
		return u, nil
	}
	return nil, store.ErrNotFound
}

func TestPushSenderUsesDriverToken(t *testing.T) {
	fcm := &fakeFCM{out: make(chan *messaging.Message, 2)}
	driverID := uuid.New()
	users := fakeUsers{driverID: {ID: driverID, FCMToken: "token-1"}}
	p := NewPushSender(fcm, users, logger.Discard())

	tripID := uuid.New()
	p.NotifyDriver(context.Background(), driverID, notify.Notification{
		Type:  notify.TypeTripAssigned,
		Title: "New trip",
		Data:  map[string]interface{}{"tripId": tripID, "price": 450.0},
	})

	select {
	case m := <-fcm.out:
		assert.Equal(t, "token-1", m.Token)
		assert.Equal(t, "New trip", m.Notification.Title)
		assert.Equal(t, tripID.String(), m.Data["tripId"])
		assert.Equal(t, "450", m.Data["price"])
		assert.Equal(t, notify.TypeTripAssigned, m.Data["type"])
	case <-time.After(2 * time.Second):
		t.Fatal("push not sent")
	}
}

func TestPushSenderSkipsUnknownOrTokenless(t *testing.T) {
	fcm := &fakeFCM{out: make(chan *messaging.Message, 2)}
	tokenless := uuid.New()
	p := NewPushSender(fcm, fakeUsers{tokenless: {ID: tokenless}}, logger.Discard())

	p.NotifyDriver(context.Background(), tokenless, notify.Notification{Type: notify.TypeTripStarted})
	p.NotifyDriver(context.Background(), uuid.New(), notify.Notification{Type: notify.TypeTripStarted})

	select {
	case m := <-fcm.out:
		t.Fatalf("unexpected push to %q", m.Token)
	case <-time.After(200 * time.Millisecond):
	}
}

func TestPushSenderAdminTopic(t *testing.T) {
	fcm := &fakeFCM{out: make(chan *messaging.Message, 1)}
	p := NewPushSender(fcm, fakeUsers{}, logger.Discard())

	p.NotifyAdmins(context.Background(), notify.Notification{Type: notify.TypeShiftAdminClosed})
	select {
	case m := <-fcm.out:
		assert.Equal(t, AdminTopic, m.Topic)
	case <-time.After(2 * time.Second):
		t.Fatal("push not sent")
	}
}

func TestStringifyData(t *testing.T) {
	data := stringifyData(notify.Notification{
		Type: "x",
		Data: map[string]interface{}{"n": 3, "ok": true, "list": []string{"a"}, "err": errors.New("e")},
	})
	assert.Equal(t, "3", data["n"])
	assert.Equal(t, "true", data["ok"])
	assert.Equal(t, `["a"]`, data["list"])
	assert.Equal(t, "x", data["type"])
}
