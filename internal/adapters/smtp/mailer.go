package smtp

import (
	"context"
	"fmt"
	"net/smtp"
	"strings"

	"stockAlertsBot/internal/domain"
	"stockAlertsBot/internal/ports"
)

// Config holds SMTP delivery settings.
type Config struct {
	Host     string
	Port     int
	Username string
	Password string
	To       string
	Logger   ports.Logger
}

// Mailer implements ports.Notifier over SMTP with STARTTLS.
type Mailer struct {
	cfg    Config
	logger ports.Logger
	send   func(addr string, a smtp.Auth, from string, to []string, msg []byte) error
}

// NewMailer creates an SMTP notifier.
func NewMailer(cfg Config) (*Mailer, error) {
	if cfg.Logger == nil {
		return nil, fmt.Errorf("logger is required for mailer")
	}
	if cfg.Host == "" || cfg.Port <= 0 {
		return nil, fmt.Errorf("SMTP host and port are required: %w", ports.ErrConfigurationError)
	}
	if cfg.To == "" {
		return nil, fmt.Errorf("alert recipient is required: %w", ports.ErrConfigurationError)
	}
	return &Mailer{cfg: cfg, logger: cfg.Logger, send: smtp.SendMail}, nil
}

// SendAlert delivers one alert email for a signal.
func (m *Mailer) SendAlert(ctx context.Context, sig *domain.Signal, price float64) error {
	subject := fmt.Sprintf("[%s] %s %s alert at %.2f", strings.ToUpper(string(sig.Severity)), sig.Symbol, sig.Type, price)
	body := formatBody(sig, price)

	var msg strings.Builder
	msg.WriteString(fmt.Sprintf("From: %s\r\n", m.cfg.Username))
	msg.WriteString(fmt.Sprintf("To: %s\r\n", m.cfg.To))
	msg.WriteString(fmt.Sprintf("Subject: %s\r\n", subject))
	msg.WriteString("MIME-Version: 1.0\r\nContent-Type: text/plain; charset=\"utf-8\"\r\n\r\n")
	msg.WriteString(body)

	addr := fmt.Sprintf("%s:%d", m.cfg.Host, m.cfg.Port)
	auth := smtp.PlainAuth("", m.cfg.Username, m.cfg.Password, m.cfg.Host)

	if err := m.send(addr, auth, m.cfg.Username, []string{m.cfg.To}, []byte(msg.String())); err != nil {
		m.logger.Error(ctx, err, "Failed to send alert email", map[string]interface{}{
			"symbol": sig.Symbol, "type": sig.Type,
		})
		return fmt.Errorf("%w: %v", ports.ErrDeliveryFailed, err)
	}
	m.logger.Info(ctx, "Alert email sent", map[string]interface{}{
		"symbol": sig.Symbol, "type": sig.Type, "severity": sig.Severity,
	})
	return nil
}

func formatBody(sig *domain.Signal, price float64) string {
	var b strings.Builder
	b.WriteString(fmt.Sprintf("Symbol: %s\n", sig.Symbol))
	b.WriteString(fmt.Sprintf("Signal: %s\n", sig.Type))
	b.WriteString(fmt.Sprintf("Severity: %s\n", sig.Severity))
	b.WriteString(fmt.Sprintf("Price: %.2f\n", price))
	b.WriteString(fmt.Sprintf("Bar: %s\n", sig.BarID.Format("2006-01-02 15:04")))

	switch m := sig.Metrics.(type) {
	case domain.MoveFromOpenMetrics:
		b.WriteString(fmt.Sprintf("Move from open: %+.2f%% (open %.2f, close %.2f, %s)\n",
			m.PctChange, m.DayOpen, m.LatestClose, m.Direction))
	case domain.VolumeSpikeMetrics:
		b.WriteString(fmt.Sprintf("Volume: %.0f vs avg %.0f (x%.2f)\n",
			m.LatestVolume, m.AvgVolume, m.Multiplier))
	case domain.BreakoutMetrics:
		b.WriteString(fmt.Sprintf("Breakout: close %.2f above prior high %.2f (+%.2f)\n",
			m.LatestClose, m.PriorHigh, m.BreakoutAmount))
	case domain.BreakdownMetrics:
		b.WriteString(fmt.Sprintf("Breakdown: close %.2f below prior low %.2f (%.2f)\n",
			m.LatestClose, m.PriorLow, m.BreakdownAmount))
	}
	return b.String()
}
