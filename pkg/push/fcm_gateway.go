package push

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// Message is one push notification addressed to a set of device tokens
type Message struct {
	Tokens []string
	Title  string
	Body   string
	Data   map[string]string
}

// Gateway delivers push notifications
type Gateway interface {
	Send(msg Message) error
	GetName() string
}

// FCMGateway implements push delivery via the FCM legacy HTTP API
type FCMGateway struct {
	endpoint  string
	serverKey string
	client    *http.Client
}

// FCMConfig holds configuration for the FCM gateway
type FCMConfig struct {
	Endpoint  string
	ServerKey string
}

// NewFCMGateway creates a new FCM gateway client
func NewFCMGateway(config FCMConfig) *FCMGateway {
	return &FCMGateway{
		endpoint:  config.Endpoint,
		serverKey: config.ServerKey,
		client: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

type fcmNotification struct {
	Title string `json:"title"`
	Body  string `json:"body"`
}

type fcmRequest struct {
	RegistrationIDs []string          `json:"registration_ids"`
	Notification    fcmNotification   `json:"notification"`
	Data            map[string]string `json:"data,omitempty"`
}

type fcmResponse struct {
	Success int `json:"success"`
	Failure int `json:"failure"`
}

// Send pushes one notification to all the message's tokens. FCM accepts up
// to 1000 registration ids per request; callers stay well under that.
func (f *FCMGateway) Send(msg Message) error {
	if len(msg.Tokens) == 0 {
		return nil
	}

	fcmReq := fcmRequest{
		RegistrationIDs: msg.Tokens,
		Notification: fcmNotification{
			Title: msg.Title,
			Body:  msg.Body,
		},
		Data: msg.Data,
	}

	jsonData, err := json.Marshal(fcmReq)
	if err != nil {
		return fmt.Errorf("failed to marshal push request: %w", err)
	}

	req, err := http.NewRequest(http.MethodPost, f.endpoint, bytes.NewBuffer(jsonData))
	if err != nil {
		return fmt.Errorf("failed to create push request: %w", err)
	}

	req.Header.Set("Authorization", fmt.Sprintf("key=%s", f.serverKey))
	req.Header.Set("Content-Type", "application/json")

	resp, err := f.client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to send push request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read push response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("push sending failed: status %d: %s", resp.StatusCode, string(body))
	}

	var fcmResp fcmResponse
	if err := json.Unmarshal(body, &fcmResp); err != nil {
		return fmt.Errorf("failed to parse push response: %w", err)
	}

	if fcmResp.Success == 0 && fcmResp.Failure > 0 {
		return fmt.Errorf("push rejected for all %d tokens", fcmResp.Failure)
	}

	return nil
}

// GetName returns the name of this push gateway
func (f *FCMGateway) GetName() string {
	return "FCM HTTP Gateway"
}
