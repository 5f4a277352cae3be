package services

import (
	"fmt"

	"github.com/google/uuid"
	"github.com/sendgrid/sendgrid-go"
	"github.com/sendgrid/sendgrid-go/helpers/mail"
	"github.com/sirupsen/logrus"
	"github.com/smartresidence/resident-backend/internal/config"
	"github.com/smartresidence/resident-backend/internal/database"
	"github.com/smartresidence/resident-backend/pkg/push"
)

// NotificationService delivers push notifications and transactional email.
// Delivery is best-effort: callers fire after their transaction commits and a
// failed send is logged, never propagated into the business operation.
type NotificationService struct {
	db        database.DB
	pushGW    push.Gateway
	sendgrid  *sendgrid.Client
	emailCfg  config.EmailConfig
	pushMode  string
	emailMode string
	logger    *logrus.Logger
}

// NewNotificationService creates a new notification service. The gateways may
// be nil in dev mode; sends are then logged instead.
func NewNotificationService(db database.DB, pushGW push.Gateway, sg *sendgrid.Client, emailCfg config.EmailConfig, pushMode string, logger *logrus.Logger) *NotificationService {
	return &NotificationService{
		db:        db,
		pushGW:    pushGW,
		sendgrid:  sg,
		emailCfg:  emailCfg,
		pushMode:  pushMode,
		emailMode: emailCfg.Mode,
		logger:    logger,
	}
}

// PushToClient sends a push notification to all of a resident's devices.
// Errors are logged and swallowed.
func (s *NotificationService) PushToClient(clientID uuid.UUID, title, body string, data map[string]string) {
	client, err := database.NewClientUserRepository(s.db).GetClientUserByID(clientID)
	if err != nil {
		s.logger.WithError(err).WithField("client_id", clientID).Warn("Push skipped: failed to load resident")
		return
	}
	if client == nil || len(client.FCMTokens) == 0 {
		return
	}

	if s.pushMode != "production" || s.pushGW == nil {
		s.logger.WithFields(logrus.Fields{
			"client_id": clientID,
			"title":     title,
		}).Info("Dev mode: push not sent")
		return
	}

	msg := push.Message{
		Tokens: client.FCMTokens,
		Title:  title,
		Body:   body,
		Data:   data,
	}

	if err := s.pushGW.Send(msg); err != nil {
		s.logger.WithError(err).WithField("client_id", clientID).Warn("Failed to send push notification")
	}
}

// PushToClients fans one notification out to several residents
func (s *NotificationService) PushToClients(clientIDs []uuid.UUID, title, body string, data map[string]string) {
	for _, id := range clientIDs {
		s.PushToClient(id, title, body, data)
	}
}

// SendEmail sends one transactional email. Errors are logged and swallowed.
func (s *NotificationService) SendEmail(toName, toEmail, subject, plainText, htmlBody string) {
	if s.emailMode != "production" || s.sendgrid == nil {
		s.logger.WithFields(logrus.Fields{
			"to":      toEmail,
			"subject": subject,
		}).Info("Dev mode: email not sent")
		return
	}

	from := mail.NewEmail(s.emailCfg.FromName, s.emailCfg.FromEmail)
	to := mail.NewEmail(toName, toEmail)
	msg := mail.NewSingleEmail(from, subject, to, plainText, htmlBody)

	resp, err := s.sendgrid.Send(msg)
	if err != nil {
		s.logger.WithError(err).WithField("to", toEmail).Warn("Failed to send email")
		return
	}

	if resp.StatusCode >= 400 {
		s.logger.WithFields(logrus.Fields{
			"to":     toEmail,
			"status": resp.StatusCode,
		}).Warn("Email rejected by gateway")
	}
}

// EmailApartmentAdmins sends one email to every admin of an apartment
func (s *NotificationService) EmailApartmentAdmins(apartmentID uuid.UUID, subject, plainText, htmlBody string) {
	admins, err := database.NewAdminUserRepository(s.db).ListAdminsByApartment(apartmentID)
	if err != nil {
		s.logger.WithError(err).WithField("apartment_id", apartmentID).Warn("Email skipped: failed to load admins")
		return
	}

	for _, admin := range admins {
		s.SendEmail(admin.Name, admin.Email, subject, plainText, htmlBody)
	}
}

// requestDecisionBody renders the short message a resident sees when their
// occupancy request is decided.
func requestDecisionBody(approved bool, flatLabel string) (title, body string) {
	if approved {
		return "Request approved", fmt.Sprintf("Your request for flat %s has been approved.", flatLabel)
	}
	return "Request rejected", fmt.Sprintf("Your request for flat %s has been rejected.", flatLabel)
}
