package sms

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cardforge/cardforge/internal/config"
)

type fakeProvider struct {
	name string
	mu   sync.Mutex
	sent []string
}

func (f *fakeProvider) Name() string { return f.name }

func (f *fakeProvider) Send(_ context.Context, to, message string) (*Result, error) {
	f.mu.Lock()
	f.sent = append(f.sent, to+":"+message)
	f.mu.Unlock()

	return &Result{Provider: f.name, MessageID: "1"}, nil
}

func TestManagerResolution(t *testing.T) {
	a := &fakeProvider{name: "a"}
	b := &fakeProvider{name: "b"}
	m := NewManager("a", a, b)

	res, err := m.Send(context.Background(), "+966500000000", "hi", "")
	require.NoError(t, err)
	assert.Equal(t, "a", res.Provider)

	res, err = m.Send(context.Background(), "+966500000000", "hi", "b")
	require.NoError(t, err)
	assert.Equal(t, "b", res.Provider)

	_, err = m.Send(context.Background(), "+966500000000", "hi", "c")
	require.ErrorIs(t, err, ErrUnknownProvider)

	require.NoError(t, m.SetDefault("b"))
	assert.Equal(t, "b", m.Default())

	p, err := m.Via("")
	require.NoError(t, err)
	assert.Equal(t, "b", p.Name())

	require.ErrorIs(t, m.SetDefault("missing"), ErrUnknownProvider)
	assert.Equal(t, "b", m.Default())
	assert.Equal(t, []string{"a", "b"}, m.Names())
}

func TestManagerConcurrentDefaultSwitch(t *testing.T) {
	m := NewManager("a", &fakeProvider{name: "a"}, &fakeProvider{name: "b"})

	var wg sync.WaitGroup

	for i := 0; i < 20; i++ {
		wg.Add(2)

		go func(i int) {
			defer wg.Done()

			name := "a"
			if i%2 == 0 {
				name = "b"
			}

			assert.NoError(t, m.SetDefault(name))
		}(i)

		go func() {
			defer wg.Done()

			_, err := m.Send(context.Background(), "+1555", "x", "")
			assert.NoError(t, err)
		}()
	}

	wg.Wait()
}

func TestNewFromConfig(t *testing.T) {
	_, err := NewFromConfig(config.SMS{DefaultProvider: "twilio", Log: config.LogSMS{Enabled: true}})
	require.ErrorIs(t, err, ErrUnknownProvider)

	m, err := NewFromConfig(config.SMS{
		DefaultProvider: LogName,
		Timeout:         time.Second,
		Msegat:          config.Msegat{Enabled: true},
		Log:             config.LogSMS{Enabled: true},
	})
	require.NoError(t, err)
	assert.Equal(t, []string{LogName, MsegatName}, m.Names())
}

func TestTwilioSend(t *testing.T) {
	tests := []struct {
		name    string
		status  int
		body    string
		wantErr bool
		wantID  string
	}{
		{name: "queued", status: http.StatusCreated, body: `{"sid":"SM123","status":"queued"}`, wantID: "SM123"},
		{name: "rejected", status: http.StatusBadRequest, body: `{"code":21211,"message":"invalid To"}`, wantErr: true},
		{name: "failed status", status: http.StatusCreated, body: `{"sid":"SM9","status":"failed","error_message":"blocked"}`, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				assert.Equal(t, "/2010-04-01/Accounts/AC1/Messages.json", r.URL.Path)

				user, pass, ok := r.BasicAuth()
				assert.True(t, ok)
				assert.Equal(t, "AC1", user)
				assert.Equal(t, "token", pass)

				assert.NoError(t, r.ParseForm())
				assert.Equal(t, "+15550001", r.PostForm.Get("To"))
				assert.Equal(t, "+15559999", r.PostForm.Get("From"))
				assert.Equal(t, "code 123", r.PostForm.Get("Body"))

				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			}))
			defer srv.Close()

			p := NewTwilio(config.Twilio{AccountSID: "AC1", AuthToken: "token", From: "+15559999", BaseURL: srv.URL}, time.Second)

			res, err := p.Send(context.Background(), "+15550001", "code 123")
			if tt.wantErr {
				var derr *DeliveryError
				require.ErrorAs(t, err, &derr)
				assert.Equal(t, TwilioName, derr.Provider)

				return
			}

			require.NoError(t, err)
			assert.Equal(t, tt.wantID, res.MessageID)
		})
	}
}

func TestMsegatSend(t *testing.T) {
	tests := []struct {
		name    string
		body    string
		wantErr bool
	}{
		{name: "accepted", body: `{"code":"1","message":"Success","id":"77"}`},
		{name: "accepted new code", body: `{"code":"M0000","message":"Success"}`},
		{name: "wrong key", body: `{"code":"M0002","message":"Invalid login info"}`, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				assert.Equal(t, "/gw/sendsms.php", r.URL.Path)

				var req msegatRequest
				assert.NoError(t, json.NewDecoder(r.Body).Decode(&req))
				assert.Equal(t, "966500000001", req.Numbers)
				assert.Equal(t, "CardForge", req.UserSender)
				assert.Equal(t, "UTF8", req.MsgEncoding)

				w.Header().Set("Content-Type", "application/json")
				_, _ = w.Write([]byte(tt.body))
			}))
			defer srv.Close()

			p := NewMsegat(config.Msegat{UserName: "u", APIKey: "k", Sender: "CardForge", BaseURL: srv.URL}, time.Second)

			res, err := p.Send(context.Background(), "+966500000001", "رمز التحقق 1234")
			if tt.wantErr {
				require.Error(t, err)
				return
			}

			require.NoError(t, err)
			assert.Equal(t, MsegatName, res.Provider)
		})
	}
}

func TestProviderTimeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		time.Sleep(200 * time.Millisecond)
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	p := NewMsegat(config.Msegat{BaseURL: srv.URL}, 20*time.Millisecond)

	_, err := p.Send(context.Background(), "+966500000001", "x")
	require.Error(t, err)
}

func TestLogProvider(t *testing.T) {
	p := NewLog()

	res, err := p.Send(context.Background(), "+15550001", "hello")
	require.NoError(t, err)
	assert.Equal(t, LogName, res.Provider)
	assert.NotEmpty(t, res.MessageID)

	_, err = p.Send(context.Background(), "", "hello")
	require.ErrorIs(t, err, ErrEmptyRecipient)

	_, err = p.Send(context.Background(), "+1", " ")
	require.ErrorIs(t, err, ErrEmptyMessage)
}
