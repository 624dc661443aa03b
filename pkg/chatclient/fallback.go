package chatclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/sony/gobreaker"
	"go.uber.org/zap"

	"github.com/gaurabsunargs-sudo/HMS-sub002/internal/crypto"
)

// ErrSendFailed marks a terminal fallback failure; the caller must surface
// it with a retry affordance.
var ErrSendFailed = errors.New("chatclient: send failed")

// SocketSender is the facade surface the coordinator needs; *Client
// satisfies it.
type SocketSender interface {
	Connected() bool
	SendMessage(receiverID, content string) error
}

// CacheInvalidator drops locally cached conversation views. The socket path
// and the REST path populate different caches, so after any successful send
// both perspectives are invalidated to reconcile them.
type CacheInvalidator interface {
	InvalidateConversation(userA, userB string)
}

// RestConfig configures the fallback REST transport.
type RestConfig struct {
	// BaseURL of the chat service, e.g. http://host:8085.
	BaseURL string
	Token   string
	// Timeout per attempt. Default 10s.
	Timeout time.Duration
	// RetryMaxElapsed bounds the retry loop. Default 15s.
	RetryMaxElapsed time.Duration
}

// RestClient posts messages over HTTP when no socket is available. Requests
// retry transient failures with exponential backoff behind a circuit
// breaker, so a down service fails fast instead of stacking timeouts.
type RestClient struct {
	cfg     RestConfig
	http    *http.Client
	breaker *gobreaker.CircuitBreaker
	log     *zap.SugaredLogger
}

func NewRestClient(cfg RestConfig, log *zap.SugaredLogger) *RestClient {
	if cfg.Timeout == 0 {
		cfg.Timeout = 10 * time.Second
	}
	if cfg.RetryMaxElapsed == 0 {
		cfg.RetryMaxElapsed = 15 * time.Second
	}
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	return &RestClient{
		cfg:  cfg,
		http: &http.Client{Timeout: cfg.Timeout},
		breaker: gobreaker.NewCircuitBreaker(gobreaker.Settings{
			Name: "chat-rest-fallback",
		}),
		log: log,
	}
}

// SendMessage posts {receiverId, content} to the fallback endpoint and
// returns the persisted record.
func (r *RestClient) SendMessage(ctx context.Context, receiverID, content string) (*Message, error) {
	body, err := json.Marshal(map[string]string{
		"receiverId": receiverID,
		"content":    content,
	})
	if err != nil {
		return nil, err
	}

	result, err := r.breaker.Execute(func() (interface{}, error) {
		return r.post(ctx, body)
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSendFailed, err)
	}
	return result.(*Message), nil
}

func (r *RestClient) post(ctx context.Context, body []byte) (*Message, error) {
	var out *Message
	operation := func() error {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, r.cfg.BaseURL+"/v1/messages", bytes.NewReader(body))
		if err != nil {
			return backoff.Permanent(err)
		}
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("Authorization", "Bearer "+r.cfg.Token)

		resp, err := r.http.Do(req)
		if err != nil {
			return err
		}
		defer func() {
			_, _ = io.Copy(io.Discard, resp.Body)
			_ = resp.Body.Close()
		}()

		switch {
		case resp.StatusCode >= 500:
			return fmt.Errorf("server error: %s", resp.Status)
		case resp.StatusCode >= 400:
			return backoff.Permanent(fmt.Errorf("rejected: %s", resp.Status))
		}

		var payload struct {
			Data Message `json:"data"`
		}
		if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
			return backoff.Permanent(err)
		}
		out = &payload.Data
		return nil
	}

	bo := backoff.NewExponentialBackOff()
	bo.MaxElapsedTime = r.cfg.RetryMaxElapsed
	if err := backoff.Retry(operation, backoff.WithContext(bo, ctx)); err != nil {
		return nil, err
	}
	return out, nil
}

// Sender is the delivery fallback coordinator: socket when live, REST when
// not, cache reconciliation after either.
type Sender struct {
	userID string
	sock   SocketSender
	rest   *RestClient
	inv    CacheInvalidator
	cipher *crypto.Cipher
	log    *zap.SugaredLogger
}

// NewSender builds the coordinator. secret may be empty to disable
// encryption on the REST path; it must match the socket client's secret,
// since the socket path encrypts inside the facade.
func NewSender(userID string, sock SocketSender, rest *RestClient, inv CacheInvalidator, secret string, log *zap.SugaredLogger) (*Sender, error) {
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	s := &Sender{userID: userID, sock: sock, rest: rest, inv: inv, log: log}
	if secret != "" {
		ciph, err := crypto.NewFromSecret(secret)
		if err != nil {
			return nil, err
		}
		s.cipher = ciph
	}
	return s, nil
}

// Send delivers the plaintext to receiverID over the best available path.
// Socket emit failure is silent (the UI already shows the disconnected
// state); REST failure is returned to the caller. After either success both
// cached conversation perspectives are invalidated.
func (s *Sender) Send(ctx context.Context, receiverID, content string) error {
	if s.sock != nil && s.sock.Connected() {
		if err := s.sock.SendMessage(receiverID, content); err != nil {
			s.log.Warnw("socket send failed", "err", err)
		}
	} else {
		if s.cipher != nil {
			blob, err := s.cipher.Encrypt(content)
			if err != nil {
				return err
			}
			content = blob
		}
		if _, err := s.rest.SendMessage(ctx, receiverID, content); err != nil {
			return err
		}
	}

	if s.inv != nil {
		s.inv.InvalidateConversation(s.userID, receiverID)
		s.inv.InvalidateConversation(receiverID, s.userID)
	}
	return nil
}
