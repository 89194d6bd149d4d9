// Package sender рассылает резидентам письма о смене состояния подписки.
package sender

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/GRI-ESPCI/intrarez/internal/lib/sl"
	"github.com/GRI-ESPCI/intrarez/internal/lib/smtp"
	"github.com/GRI-ESPCI/intrarez/internal/models"
)

// Service отправляет уведомления по SMTP.
type Service struct {
	transport smtp.TransportInterface
	log       *slog.Logger
}

// New создает новый Service.
func New(log *slog.Logger, transport smtp.TransportInterface) *Service {
	return &Service{transport: transport, log: log}
}

// SendStateChangeNotice обрабатывает сообщение из очереди уведомлений:
// письмо на языке резидента о новом состоянии его подписки.
func (s *Service) SendStateChangeNotice(body []byte) error {
	const op = "sender.SendStateChangeNotice"

	var notice models.StateChangeNotice
	if err := json.Unmarshal(body, &notice); err != nil {
		s.log.Error("failed to unmarshal state change notice", sl.Err(err))
		return fmt.Errorf("%s: %w", op, err)
	}

	subject, bodyText := composeStateChange(notice)
	if err := s.sendEmail([]string{notice.Email}, subject, bodyText); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

func composeStateChange(notice models.StateChangeNotice) (subject, body string) {
	name := notice.FullName
	if name == "" {
		name = notice.Username
	}

	if notice.Locale == "fr" {
		switch notice.NewState {
		case models.SubStateSubscribed:
			subject = "IntraRez — abonnement Internet actif"
			body = fmt.Sprintf("Bonjour %s,\n\nVotre abonnement Internet est actif.", name)
			if notice.CutDay != "" {
				body += fmt.Sprintf("\nSans renouvellement, l'accès sera coupé le %s.", notice.CutDay)
			}
		case models.SubStateTrial:
			subject = "IntraRez — période d'essai en cours"
			body = fmt.Sprintf("Bonjour %s,\n\nVous êtes en période d'essai.", name)
			if notice.CutDay != "" {
				body += fmt.Sprintf("\nSouscrivez une offre avant le %s pour garder l'accès.", notice.CutDay)
			}
		default:
			subject = "IntraRez — accès Internet suspendu"
			body = fmt.Sprintf("Bonjour %s,\n\nVotre accès Internet est suspendu faute d'abonnement.\nSouscrivez une offre sur l'IntraRez pour le rétablir.", name)
		}
		return subject, body
	}

	switch notice.NewState {
	case models.SubStateSubscribed:
		subject = "IntraRez — Internet subscription active"
		body = fmt.Sprintf("Hello %s,\n\nYour Internet subscription is active.", name)
		if notice.CutDay != "" {
			body += fmt.Sprintf("\nWithout renewal, access will be cut on %s.", notice.CutDay)
		}
	case models.SubStateTrial:
		subject = "IntraRez — trial period running"
		body = fmt.Sprintf("Hello %s,\n\nYou are in your trial period.", name)
		if notice.CutDay != "" {
			body += fmt.Sprintf("\nSubscribe to an offer before %s to keep your access.", notice.CutDay)
		}
	default:
		subject = "IntraRez — Internet access suspended"
		body = fmt.Sprintf("Hello %s,\n\nYour Internet access is suspended for lack of subscription.\nSubscribe to an offer on the IntraRez to restore it.", name)
	}
	return subject, body
}

func (s *Service) sendEmail(to []string, subject, bodyText string) error {
	msg := strings.Join([]string{
		"From: " + s.transport.GetSMTPUser(),
		"To: " + strings.Join(to, ";"),
		"Subject: " + subject,
		"MIME-Version: 1.0",
		"Content-Type: text/plain; charset=\"UTF-8\"",
		"",
		bodyText,
	}, "\r\n")

	client, err := s.transport.Connect()
	if err != nil {
		s.log.Error("failed to connect to SMTP server", sl.Err(err))
		return err
	}
	defer client.Close()

	if err := client.Mail(s.transport.GetSMTPUser()); err != nil {
		s.log.Error("failed to set MAIL FROM", sl.Err(err))
		return err
	}
	for _, addr := range to {
		if err := client.Rcpt(addr); err != nil {
			s.log.Error("failed to set RCPT TO", slog.String("recipient", addr), sl.Err(err))
			return err
		}
	}

	wc, err := client.Data()
	if err != nil {
		s.log.Error("failed to get data writer", sl.Err(err))
		return err
	}
	if _, err = wc.Write([]byte(msg)); err != nil {
		s.log.Error("failed to write email body", sl.Err(err))
		return err
	}
	if err = wc.Close(); err != nil {
		s.log.Error("failed to close data writer", sl.Err(err))
		return err
	}
	if err = client.Quit(); err != nil {
		s.log.Error("failed to quit SMTP client", sl.Err(err))
		return err
	}

	s.log.Info("email sent", slog.String("to", strings.Join(to, ";")))
	return nil
}
