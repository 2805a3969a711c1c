// Package notify delivers assignment notifications to assessors: always an
// in-app notification row, plus e-mail via SES and SMS via SNS when enabled.
package notify

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ses"
	"github.com/aws/aws-sdk-go-v2/service/ses/types"
	"github.com/aws/aws-sdk-go-v2/service/sns"
	"github.com/google/uuid"

	apperrors "assessor-dispatch/internal/common/errors"
	"assessor-dispatch/internal/common/logger"
	"assessor-dispatch/internal/common/metrics"
	"assessor-dispatch/internal/models"
)

type SESService interface {
	SendEmail(ctx context.Context, params *ses.SendEmailInput, optFns ...func(*ses.Options)) (*ses.SendEmailOutput, error)
}

type SNSService interface {
	Publish(ctx context.Context, params *sns.PublishInput, optFns ...func(*sns.Options)) (*sns.PublishOutput, error)
}

type Config struct {
	EmailEnabled bool
	SMSEnabled   bool
	FromEmail    string
	// SMSPriorityThreshold is the lowest job priority that also triggers an SMS.
	SMSPriorityThreshold models.Priority
}

type Sink struct {
	config    *Config
	db        *sql.DB
	sesClient SESService
	snsClient SNSService
	now       func() time.Time
	logger    logger.Logger
}

func NewSink(config *Config, db *sql.DB, sesClient SESService, snsClient SNSService, log logger.Logger) *Sink {
	if config.SMSPriorityThreshold == "" {
		config.SMSPriorityThreshold = models.PriorityHigh
	}
	return &Sink{
		config:    config,
		db:        db,
		sesClient: sesClient,
		snsClient: snsClient,
		now:       time.Now,
		logger:    log.WithFields(map[string]interface{}{"component": "notification-sink"}),
	}
}

// Notify records the in-app notification and fans out to the external
// channels. Failure to record the in-app row is returned as an error; failed
// external channels are reported in the result and as an error.
func (s *Sink) Notify(ctx context.Context, n models.Notification) (*models.NotificationResult, error) {
	result := &models.NotificationResult{
		ID:       uuid.New().String(),
		Channels: make(map[string]string, 3),
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO notifications (id, recipient_id, job_id, type, message, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)`,
		result.ID, n.RecipientID, n.JobID, models.NotificationTypeJobAssigned, n.Message, s.now().UTC(),
	)
	if err != nil {
		s.record(result, models.ChannelInApp, models.NotificationStatusFailed)
		return result, apperrors.NewNotificationSendFailedError(models.ChannelInApp, err)
	}
	s.record(result, models.ChannelInApp, models.NotificationStatusSent)

	email, phone, err := s.contact(ctx, n.RecipientID)
	if err != nil {
		s.logger.Warn("Recipient contact lookup failed", map[string]interface{}{
			"recipientId": n.RecipientID,
			"error":       err.Error(),
		})
		s.record(result, models.ChannelEmail, models.NotificationStatusSkipped)
		s.record(result, models.ChannelSMS, models.NotificationStatusSkipped)
		return result, nil
	}

	subject := fmt.Sprintf("New job assigned: %s", referenceOf(n))
	var firstErr error

	switch {
	case !s.config.EmailEnabled || s.sesClient == nil:
		s.record(result, models.ChannelEmail, models.NotificationStatusDisabled)
	case email == "":
		s.record(result, models.ChannelEmail, models.NotificationStatusSkipped)
	default:
		if err := s.sendEmail(ctx, email, subject, n.Message); err != nil {
			s.logger.Error("Email send failed", map[string]interface{}{"recipientId": n.RecipientID, "error": err.Error()})
			s.record(result, models.ChannelEmail, models.NotificationStatusFailed)
			firstErr = apperrors.NewNotificationSendFailedError(models.ChannelEmail, err)
		} else {
			s.record(result, models.ChannelEmail, models.NotificationStatusSent)
		}
	}

	switch {
	case !s.config.SMSEnabled || s.snsClient == nil:
		s.record(result, models.ChannelSMS, models.NotificationStatusDisabled)
	case phone == "" || !n.Priority.AtLeast(s.config.SMSPriorityThreshold):
		s.record(result, models.ChannelSMS, models.NotificationStatusSkipped)
	default:
		if err := s.sendSMS(ctx, phone, n.Message); err != nil {
			s.logger.Error("SMS send failed", map[string]interface{}{"recipientId": n.RecipientID, "error": err.Error()})
			s.record(result, models.ChannelSMS, models.NotificationStatusFailed)
			if firstErr == nil {
				firstErr = apperrors.NewNotificationSendFailedError(models.ChannelSMS, err)
			}
		} else {
			s.record(result, models.ChannelSMS, models.NotificationStatusSent)
		}
	}

	s.logger.Info("Assignment notification processed", map[string]interface{}{
		"notificationId": result.ID,
		"recipientId":    n.RecipientID,
		"jobId":          n.JobID,
		"channels":       result.Channels,
	})
	return result, firstErr
}

func (s *Sink) record(result *models.NotificationResult, channel, status string) {
	result.Channels[channel] = status
	metrics.Notifications.WithLabelValues(channel, status).Inc()
}

func (s *Sink) contact(ctx context.Context, assessorID string) (string, string, error) {
	var email, phone string
	err := s.db.QueryRowContext(ctx,
		`SELECT COALESCE(email, ''), COALESCE(phone, '') FROM users WHERE id = $1`, assessorID,
	).Scan(&email, &phone)
	return email, phone, err
}

func (s *Sink) sendEmail(ctx context.Context, to, subject, body string) error {
	_, err := s.sesClient.SendEmail(ctx, &ses.SendEmailInput{
		Destination: &types.Destination{ToAddresses: []string{to}},
		Message: &types.Message{
			Subject: &types.Content{Data: aws.String(subject)},
			Body: &types.Body{
				Text: &types.Content{Data: aws.String(body)},
			},
		},
		Source: aws.String(s.config.FromEmail),
	})
	return err
}

func (s *Sink) sendSMS(ctx context.Context, to, message string) error {
	_, err := s.snsClient.Publish(ctx, &sns.PublishInput{
		PhoneNumber: aws.String(to),
		Message:     aws.String(message),
	})
	return err
}

func referenceOf(n models.Notification) string {
	if n.ClaimNumber != "" {
		return "claim " + n.ClaimNumber
	}
	return "job " + n.JobID
}
