// Package mail implements the outbound mail pipeline for activation and
// password reset messages. Delivery is asynchronous: Send* enqueue and
// return, a single worker drains the queue so a slow SMTP server never
// blocks request handling.
package mail

import (
	"context"
	"fmt"
	"net/smtp"
	"strings"
	"sync"

	"go.uber.org/zap"

	"github.com/arklim/social-platform-accounts/internal/core/domain"
	"github.com/arklim/social-platform-accounts/internal/core/port"
	"github.com/arklim/social-platform-accounts/internal/infra/config"
	"github.com/arklim/social-platform-accounts/internal/infra/logger"
)

const defaultQueueSize = 64

type outboundMessage struct {
	to      string
	subject string
	body    string
	login   string
}

// Dispatcher queues and delivers account emails.
type Dispatcher struct {
	cfg    config.MailSettings
	logger *zap.Logger

	queue chan outboundMessage
	done  chan struct{}
	wg    sync.WaitGroup

	closeOnce sync.Once
}

// NewDispatcher constructs the mail dispatcher and starts its delivery worker.
func NewDispatcher(cfg config.MailSettings, log *zap.Logger) *Dispatcher {
	if log == nil {
		log = zap.NewNop()
	}

	size := cfg.QueueSize
	if size <= 0 {
		size = defaultQueueSize
	}

	d := &Dispatcher{
		cfg:    cfg,
		logger: log,
		queue:  make(chan outboundMessage, size),
		done:   make(chan struct{}),
	}

	d.wg.Add(1)
	go d.deliverLoop()

	return d
}

// SendActivationEmail enqueues the activation message for the account.
func (d *Dispatcher) SendActivationEmail(ctx context.Context, account domain.Account, key string) error {
	link := fmt.Sprintf("%s/api/activate?key=%s", strings.TrimRight(d.cfg.BaseURL, "/"), key)

	body := fmt.Sprintf(
		"Dear %s,\r\n\r\nYour account has been created. Please click the link below to activate it:\r\n\r\n%s\r\n",
		account.Login, link,
	)

	return d.enqueue(ctx, outboundMessage{
		to:      account.Email,
		subject: "Account activation",
		body:    body,
		login:   account.Login,
	})
}

// SendPasswordResetMail enqueues the password reset message for the account.
func (d *Dispatcher) SendPasswordResetMail(ctx context.Context, account domain.Account, key string) error {
	link := fmt.Sprintf("%s/reset/finish?key=%s", strings.TrimRight(d.cfg.BaseURL, "/"), key)

	body := fmt.Sprintf(
		"Dear %s,\r\n\r\nA password reset was requested for your account. The link below is valid for 24 hours:\r\n\r\n%s\r\n\r\nIf you did not request this, no action is needed.\r\n",
		account.Login, link,
	)

	return d.enqueue(ctx, outboundMessage{
		to:      account.Email,
		subject: "Password reset request",
		body:    body,
		login:   account.Login,
	})
}

func (d *Dispatcher) enqueue(ctx context.Context, msg outboundMessage) error {
	select {
	case d.queue <- msg:
		return nil
	case <-d.done:
		return fmt.Errorf("mail dispatcher closed")
	case <-ctx.Done():
		return ctx.Err()
	default:
		return fmt.Errorf("mail queue full")
	}
}

func (d *Dispatcher) deliverLoop() {
	defer d.wg.Done()

	for {
		select {
		case msg := <-d.queue:
			d.deliver(msg)
		case <-d.done:
			// Drain what is already queued before exiting.
			for {
				select {
				case msg := <-d.queue:
					d.deliver(msg)
				default:
					return
				}
			}
		}
	}
}

func (d *Dispatcher) deliver(msg outboundMessage) {
	if d.cfg.DryRun || !d.cfg.SMTPEnabled {
		d.logger.Info("mail delivery skipped (dry run)",
			zap.String("login", msg.login),
			zap.String("to", logger.MaskEmail(msg.to)),
			zap.String("subject", msg.subject),
		)
		return
	}

	addr := fmt.Sprintf("%s:%d", d.cfg.SMTPHost, d.cfg.SMTPPort)

	var auth smtp.Auth
	if d.cfg.SMTPUser != "" {
		auth = smtp.PlainAuth("", d.cfg.SMTPUser, d.cfg.SMTPPass, d.cfg.SMTPHost)
	}

	payload := fmt.Sprintf(
		"From: %s\r\nTo: %s\r\nSubject: %s\r\nMIME-Version: 1.0\r\nContent-Type: text/plain; charset=utf-8\r\n\r\n%s",
		d.cfg.From, msg.to, msg.subject, msg.body,
	)

	if err := smtp.SendMail(addr, auth, d.cfg.From, []string{msg.to}, []byte(payload)); err != nil {
		d.logger.Error("mail delivery failed",
			zap.String("login", msg.login),
			zap.String("to", logger.MaskEmail(msg.to)),
			zap.String("subject", msg.subject),
			zap.Error(err),
		)
		return
	}

	d.logger.Info("mail delivered",
		zap.String("login", msg.login),
		zap.String("to", logger.MaskEmail(msg.to)),
		zap.String("subject", msg.subject),
	)
}

// Close stops the worker after draining queued messages.
func (d *Dispatcher) Close() {
	d.closeOnce.Do(func() {
		close(d.done)
	})
	d.wg.Wait()
}

var _ port.MailSender = (*Dispatcher)(nil)
