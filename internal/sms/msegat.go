package sms

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/cardforge/cardforge/internal/config"
)

// MsegatName is the registry name of the Msegat provider.
const MsegatName = "msegat"

const msegatBaseURL = "https://www.msegat.com"

// Msegat sends messages through the Msegat gateway, common for Saudi numbers.
type Msegat struct {
	client   *resty.Client
	userName string
	apiKey   string
	sender   string
}

type msegatRequest struct {
	UserName    string `json:"userName"`
	APIKey      string `json:"apiKey"`
	Numbers     string `json:"numbers"`
	UserSender  string `json:"userSender"`
	Msg         string `json:"msg"`
	MsgEncoding string `json:"msgEncoding"`
}

type msegatResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	ID      string `json:"id"`
}

// NewMsegat returns a Msegat provider.
func NewMsegat(cfg config.Msegat, timeout time.Duration) *Msegat {
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = msegatBaseURL
	}

	return &Msegat{
		client:   newClient(MsegatName, baseURL, timeout),
		userName: cfg.UserName,
		apiKey:   cfg.APIKey,
		sender:   cfg.Sender,
	}
}

// Name implements Provider.
func (m *Msegat) Name() string { return MsegatName }

// Send implements Provider. Msegat expects numbers without the leading plus.
func (m *Msegat) Send(ctx context.Context, to, message string) (*Result, error) {
	if err := checkMessage(to, message); err != nil {
		return nil, err
	}

	var out msegatResponse

	resp, err := m.client.R().
		SetContext(ctx).
		SetBody(msegatRequest{
			UserName:    m.userName,
			APIKey:      m.apiKey,
			Numbers:     strings.TrimPrefix(to, "+"),
			UserSender:  m.sender,
			Msg:         message,
			MsgEncoding: "UTF8",
		}).
		SetResult(&out).
		SetError(&out).
		Post("/gw/sendsms.php")
	if err != nil {
		return nil, fmt.Errorf("msegat request: %w", err)
	}

	// "1" and "M0000" both mean accepted.
	if resp.IsError() || (out.Code != "1" && out.Code != "M0000") {
		return nil, &DeliveryError{Provider: MsegatName, StatusCode: resp.StatusCode(), Reason: out.Message}
	}

	return &Result{Provider: MsegatName, MessageID: out.ID, Status: "accepted"}, nil
}
