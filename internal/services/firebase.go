package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	firebase "firebase.google.com/go/v4"
	"firebase.google.com/go/v4/messaging"
	"github.com/google/uuid"
	"google.golang.org/api/option"

	"github.com/chachabrian/mooveit-fleet/internal/models"
	"github.com/chachabrian/mooveit-fleet/internal/notify"
	"github.com/chachabrian/mooveit-fleet/internal/store"
	"github.com/chachabrian/mooveit-fleet/pkg/logger"
)

// AdminTopic is the FCM topic admin devices subscribe to.
const AdminTopic = "fleet-admins"

const pushTimeout = 5 * time.Second

type fcmClient interface {
	Send(ctx context.Context, message *messaging.Message) (string, error)
}

type userLookup interface {
	GetUser(ctx context.Context, id uuid.UUID) (*models.User, error)
}

// PushSender delivers notifications through Firebase Cloud Messaging. Drivers
// are addressed by the FCM token stored on their user record.
type PushSender struct {
	client fcmClient
	users  userLookup
	log    *logger.Logger
}

// InitFirebase initializes the Firebase Admin SDK messaging client.
func InitFirebase(ctx context.Context, serviceAccountPath string) (*messaging.Client, error) {
	app, err := firebase.NewApp(ctx, nil, option.WithCredentialsFile(serviceAccountPath))
	if err != nil {
		return nil, fmt.Errorf("error initializing firebase app: %w", err)
	}

	client, err := app.Messaging(ctx)
	if err != nil {
		return nil, fmt.Errorf("error getting messaging client: %w", err)
	}
	return client, nil
}

func NewPushSender(client fcmClient, users userLookup, log *logger.Logger) *PushSender {
	return &PushSender{client: client, users: users, log: log.WithField("component", "fcm")}
}

func (p *PushSender) NotifyAdmins(ctx context.Context, n notify.Notification) {
	msg := buildMessage(n)
	msg.Topic = AdminTopic
	p.send(ctx, msg)
}

func (p *PushSender) NotifyDriver(ctx context.Context, driverID uuid.UUID, n notify.Notification) {
	ctx = context.WithoutCancel(ctx)
	go func() {
		ctx, cancel := context.WithTimeout(ctx, pushTimeout)
		defer cancel()

		user, err := p.users.GetUser(ctx, driverID)
		if err != nil {
			if !errors.Is(err, store.ErrNotFound) {
				p.log.WithError(err).Warn("failed to look up driver for push")
			}
			return
		}
		if user.FCMToken == "" {
			return
		}

		msg := buildMessage(n)
		msg.Token = user.FCMToken
		if _, err := p.client.Send(ctx, msg); err != nil {
			p.log.WithError(err).WithField("driver_id", driverID.String()).Warn("failed to send push notification")
		}
	}()
}

func (p *PushSender) send(ctx context.Context, msg *messaging.Message) {
	ctx = context.WithoutCancel(ctx)
	go func() {
		ctx, cancel := context.WithTimeout(ctx, pushTimeout)
		defer cancel()
		if _, err := p.client.Send(ctx, msg); err != nil {
			p.log.WithError(err).WithField("topic", msg.Topic).Warn("failed to send push notification")
		}
	}()
}

func buildMessage(n notify.Notification) *messaging.Message {
	return &messaging.Message{
		Notification: &messaging.Notification{
			Title: n.Title,
			Body:  n.Message,
		},
		Data: stringifyData(n),
		Android: &messaging.AndroidConfig{
			Priority: "high",
			Notification: &messaging.AndroidNotification{
				ChannelID:             "mooveit_fleet",
				Sound:                 "default",
				DefaultSound:          true,
				DefaultVibrateTimings: true,
			},
		},
		APNS: &messaging.APNSConfig{
			Payload: &messaging.APNSPayload{
				Aps: &messaging.Aps{Sound: "default", ContentAvailable: true},
			},
		},
	}
}

// FCM data payloads are string maps.
func stringifyData(n notify.Notification) map[string]string {
	out := map[string]string{"type": n.Type}
	for key, value := range n.Data {
		switch v := value.(type) {
		case string:
			out[key] = v
		case fmt.Stringer:
			out[key] = v.String()
		case int, int64, float64, bool:
			out[key] = fmt.Sprintf("%v", v)
		default:
			b, err := json.Marshal(v)
			if err != nil {
				continue
			}
			out[key] = string(b)
		}
	}
	return out
}
