package notify

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/bytedance/sonic"
	"github.com/room4-2/callintake/callflow"
)

// SignalWireConfig holds the LaML REST credentials used for SMS.
type SignalWireConfig struct {
	ProjectID string
	Token     string
	Space     string // e.g. "example.signalwire.com"
	From      string // E.164 sender number
}

// SMSPublisher texts the caller a confirmation once intake completes.
type SMSPublisher struct {
	cfg        SignalWireConfig
	business   string
	baseURL    string
	httpClient *http.Client
}

// SMSMessage is the subset of the LaML message resource we read back.
type SMSMessage struct {
	SID    string `json:"sid"`
	Status string `json:"status"`
	To     string `json:"to"`
}

func NewSMSPublisher(cfg SignalWireConfig, business string) *SMSPublisher {
	return &SMSPublisher{
		cfg:      cfg,
		business: business,
		baseURL:  fmt.Sprintf("https://%s/api/laml/2010-04-01", cfg.Space),
		httpClient: &http.Client{
			Timeout: 10 * time.Second,
		},
	}
}

func (p *SMSPublisher) Name() string { return "sms" }

// Publish ignores everything except completed intakes with a phone number.
func (p *SMSPublisher) Publish(ctx context.Context, ev Event) error {
	if ev.Type != EventIntakeCompleted {
		return nil
	}
	phone := ev.Data[callflow.FieldPhone]
	if phone == "" {
		return nil
	}
	_, err := p.SendSMS(ctx, "+1"+phone, ConfirmationText(p.business, ev.Data))
	return err
}

// ConfirmationText builds the text sent after a completed intake.
func ConfirmationText(business string, data callflow.Data) string {
	var b strings.Builder
	fmt.Fprintf(&b, "✅ Request received - %s\n", business)
	fmt.Fprintf(&b, "🔧 Service: %s\n", data[callflow.FieldServiceType])
	fmt.Fprintf(&b, "📍 ZIP: %s\n", data[callflow.FieldLocation])
	fmt.Fprintf(&b, "📅 Timeline: %s\n", data[callflow.FieldTimeline])
	b.WriteString("We'll call you shortly to schedule. Reply STOP to opt out.")
	return b.String()
}

// SendSMS sends a message through the SignalWire LaML Messages API.
func (p *SMSPublisher) SendSMS(ctx context.Context, to, message string) (*SMSMessage, error) {
	if p.cfg.ProjectID == "" || p.cfg.Token == "" {
		return nil, fmt.Errorf("SignalWire credentials not configured")
	}

	reqURL := fmt.Sprintf("%s/Accounts/%s/Messages.json", p.baseURL, p.cfg.ProjectID)

	formData := url.Values{}
	formData.Set("From", p.cfg.From)
	formData.Set("To", to)
	formData.Set("Body", message)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, reqURL, strings.NewReader(formData.Encode()))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.SetBasicAuth(p.cfg.ProjectID, p.cfg.Token)

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to make request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}
	if resp.StatusCode != http.StatusCreated && resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("SignalWire API error (%d): %s", resp.StatusCode, string(body))
	}

	var msg SMSMessage
	if err := sonic.Unmarshal(body, &msg); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}
	return &msg, nil
}
