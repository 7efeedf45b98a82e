package service

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/sessiongate/auth-gateway/internal/events"
	"github.com/sessiongate/auth-gateway/internal/notify"
)

// NotificationService reacts to account and session events.
type NotificationService struct {
	dispatcher events.Dispatcher
	logger     *zap.Logger
	email      notify.EmailSender
}

// NewNotificationService creates the service.
func NewNotificationService(dispatcher events.Dispatcher, logger *zap.Logger, email notify.EmailSender) *NotificationService {
	return &NotificationService{
		dispatcher: dispatcher,
		logger:     logger,
		email:      email,
	}
}

// RegisterHandlers subscribes to events.
func (n *NotificationService) RegisterHandlers() {
	if n.dispatcher == nil {
		return
	}
	n.dispatcher.Subscribe(events.EventUserRegistered, n.handleVerificationNeeded)
	n.dispatcher.Subscribe(events.EventEmailVerificationRequested, n.handleVerificationNeeded)
	n.dispatcher.Subscribe(events.EventPasswordResetRequested, n.handlePasswordResetRequested)
	n.dispatcher.Subscribe(events.EventSessionIssued, n.handleSessionEvent)
	n.dispatcher.Subscribe(events.EventSessionRotated, n.handleSessionEvent)
	n.dispatcher.Subscribe(events.EventSessionRevoked, n.handleSessionEvent)
	n.dispatcher.Subscribe(events.EventSessionsCleared, n.handleSessionEvent)
	n.dispatcher.Subscribe(events.EventPasswordReset, n.handleSessionEvent)
}

func (n *NotificationService) handleVerificationNeeded(ctx context.Context, event events.Event) error {
	payload, ok := event.Payload.(events.VerificationPayload)
	if !ok {
		return fmt.Errorf("unexpected payload %T", event.Payload)
	}
	if n.email == nil {
		return nil
	}
	return n.email.SendVerification(ctx, payload.Email, payload.Username, payload.Token)
}

func (n *NotificationService) handlePasswordResetRequested(ctx context.Context, event events.Event) error {
	payload, ok := event.Payload.(events.PasswordResetPayload)
	if !ok {
		return fmt.Errorf("unexpected payload %T", event.Payload)
	}
	if n.email == nil {
		return nil
	}
	return n.email.SendPasswordReset(ctx, payload.Email, payload.Username, payload.Token)
}

func (n *NotificationService) handleSessionEvent(_ context.Context, event events.Event) error {
	fields := []zap.Field{
		zap.String("event_id", event.ID),
		zap.String("event", string(event.Type)),
		zap.String("user_id", event.UserID),
	}
	if payload, ok := event.Payload.(events.SessionPayload); ok {
		if payload.Username != "" {
			fields = append(fields, zap.String("username", payload.Username))
		}
		if payload.Reason != "" {
			fields = append(fields, zap.String("reason", payload.Reason))
		}
	}
	n.logger.Info("session event", fields...)
	return nil
}
