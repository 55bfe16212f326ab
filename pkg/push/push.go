// Package push delivers notifications to registered devices through Firebase Cloud Messaging.
package push

import (
	"context"
	"fmt"
	"strings"

	"firebase.google.com/go/v4/messaging"
)

// Message is the device-facing payload.
type Message struct {
	Title string
	Body  string
	Data  map[string]string
}

// Result reports per-token outcomes of a send.
type Result struct {
	Sent    int
	Failed  int
	Invalid []string
}

// Sender delivers a message to a set of device tokens.
type Sender interface {
	Send(ctx context.Context, tokens []string, msg Message) (Result, error)
}

// FCMSender sends through the Firebase messaging client.
type FCMSender struct {
	client *messaging.Client
}

func NewFCMSender(client *messaging.Client) *FCMSender {
	return &FCMSender{client: client}
}

// Send fans the message out with SendEachForMulticast. Tokens FCM reports as
// unregistered or malformed are returned in Result.Invalid for pruning.
func (s *FCMSender) Send(ctx context.Context, tokens []string, msg Message) (Result, error) {
	if len(tokens) == 0 {
		return Result{}, nil
	}

	multicast := &messaging.MulticastMessage{
		Tokens: tokens,
		Notification: &messaging.Notification{
			Title: msg.Title,
			Body:  msg.Body,
		},
		Data: msg.Data,
		Android: &messaging.AndroidConfig{
			Priority: "high",
			Notification: &messaging.AndroidNotification{
				Sound: "default",
			},
		},
	}

	resp, err := s.client.SendEachForMulticast(ctx, multicast)
	if err != nil {
		return Result{}, fmt.Errorf("fcm multicast: %w", err)
	}

	res := Result{Sent: resp.SuccessCount, Failed: resp.FailureCount}
	for i, r := range resp.Responses {
		if r.Success || r.Error == nil {
			continue
		}
		if IsPermanentFailure(r.Error) {
			res.Invalid = append(res.Invalid, tokens[i])
		}
	}

	if res.Sent == 0 && res.Failed > 0 && len(res.Invalid) < res.Failed {
		return res, fmt.Errorf("all %d push notifications failed", res.Failed)
	}
	return res, nil
}

// IsPermanentFailure reports whether the token behind err will never accept messages again.
// INVALID_ARGUMENT also covers payload problems, so it only counts when FCM blames the token.
func IsPermanentFailure(err error) bool {
	if err == nil {
		return false
	}
	if messaging.IsUnregistered(err) {
		return true
	}
	return messaging.IsInvalidArgument(err) && blamesToken(err)
}

func blamesToken(err error) bool {
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "registration token") || strings.Contains(msg, "registration_token")
}
