package trigger

import (
	"context"
	"crypto/aes"
	"crypto/cipher"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/json"
	"errors"
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"github.com/shiver1514/feishu-sync/internal/config"
)

// eventDedupeTTL is the window within which a repeated event_id is dropped
// as a duplicate delivery (§4.7).
const eventDedupeTTL = 10 * time.Minute

var (
	// ErrVerifyTokenMismatch is returned when the event's verify token does
	// not match sync.event_verify_token.
	ErrVerifyTokenMismatch = errors.New("trigger: webhook verify token mismatch")
	// ErrSignatureMismatch is returned when signature verification fails.
	ErrSignatureMismatch = errors.New("trigger: webhook signature mismatch")
	// ErrMalformedEvent is returned when the body can't be decoded or
	// decrypted.
	ErrMalformedEvent = errors.New("trigger: malformed webhook event")
)

// Outcome classifies how WebhookTrigger.Handle disposed of one delivery,
// for the HTTP layer to map to a status code (§6: 400/401/503, or 200 with
// an accepted/rejected body).
type Outcome string

const (
	OutcomeChallenge   Outcome = "challenge"
	OutcomeAccepted    Outcome = "accepted"
	OutcomeDuplicate   Outcome = "duplicate"
	OutcomeFiltered    Outcome = "filtered_event_type"
	OutcomeDebounced   Outcome = "debounced"
	OutcomePending     Outcome = "already_pending"
	OutcomeUnauthorized Outcome = "unauthorized"
	OutcomeMalformed   Outcome = "malformed"
)

// Result is what Handle returns to the HTTP layer.
type Result struct {
	Outcome   Outcome
	Challenge string // set only for OutcomeChallenge
	Err       error
}

// rawEnvelope is the outer shape every Feishu event callback arrives in,
// either in the clear or, when sync.event_encrypt_key is set, as the
// decrypted plaintext of the "encrypt" field.
type rawEnvelope struct {
	Encrypt   string `json:"encrypt,omitempty"`
	Type      string `json:"type,omitempty"` // "url_verification"
	Challenge string `json:"challenge,omitempty"`
	Token     string `json:"token,omitempty"`
	Schema    string `json:"schema,omitempty"`
	Header    struct {
		EventID   string `json:"event_id"`
		EventType string `json:"event_type"`
		Token     string `json:"token"`
	} `json:"header"`
}

// WebhookTrigger implements §4.7's webhook surface: verify-token and
// (optional) AES-CBC decrypt plus signature check, url_verification echo,
// event_id dedupe, event-type filtering, debounce, and a pending-event
// guard, dispatching a background sync bounded by the run lock.
type WebhookTrigger struct {
	cfg         config.SyncConfig
	coordinator *RunCoordinator
	run         RunFunc

	mu         sync.Mutex
	seen       map[string]time.Time // event_id -> first-seen time
	lastDispatch time.Time
	pending    bool
}

// NewWebhookTrigger builds a trigger bound to the given sync config and
// dispatch function.
func NewWebhookTrigger(cfg config.SyncConfig, coordinator *RunCoordinator, run RunFunc) *WebhookTrigger {
	return &WebhookTrigger{
		cfg:         cfg,
		coordinator: coordinator,
		run:         run,
		seen:        map[string]time.Time{},
	}
}

// Handle processes one webhook delivery. timestamp/nonce/signature come
// from the request headers the wire format uses for signing
// (X-Lark-Request-Timestamp / X-Lark-Request-Nonce / X-Lark-Signature);
// callers on an HTTP layer built later should pass those through verbatim.
func (t *WebhookTrigger) Handle(ctx context.Context, body []byte, timestamp, nonce, signature string) Result {
	if t.cfg.EventEncryptKey != "" {
		if signature != "" {
			if !t.verifySignature(timestamp, nonce, body, signature) {
				return Result{Outcome: OutcomeUnauthorized, Err: ErrSignatureMismatch}
			}
		}
	}

	env, err := t.decode(body)
	if err != nil {
		return Result{Outcome: OutcomeMalformed, Err: err}
	}

	if env.Type == "url_verification" {
		if env.Token != "" && env.Token != t.cfg.EventVerifyToken {
			return Result{Outcome: OutcomeUnauthorized, Err: ErrVerifyTokenMismatch}
		}
		return Result{Outcome: OutcomeChallenge, Challenge: env.Challenge}
	}

	token := env.Header.Token
	if token == "" {
		token = env.Token
	}
	if token != t.cfg.EventVerifyToken {
		return Result{Outcome: OutcomeUnauthorized, Err: ErrVerifyTokenMismatch}
	}

	eventID := env.Header.EventID
	eventType := env.Header.EventType

	t.mu.Lock()
	t.evictExpired()
	if eventID != "" {
		if _, dup := t.seen[eventID]; dup {
			t.mu.Unlock()
			return Result{Outcome: OutcomeDuplicate}
		}
		t.seen[eventID] = time.Now()
	}
	t.mu.Unlock()

	if !t.eventTypeAllowed(eventType) {
		return Result{Outcome: OutcomeFiltered}
	}

	t.mu.Lock()
	if !t.lastDispatch.IsZero() && time.Since(t.lastDispatch) < time.Duration(t.cfg.EventDebounceSec)*time.Second {
		t.mu.Unlock()
		return Result{Outcome: OutcomeDebounced}
	}
	if t.pending {
		t.mu.Unlock()
		return Result{Outcome: OutcomePending}
	}
	t.pending = true
	t.mu.Unlock()

	go t.dispatch(ctx)

	return Result{Outcome: OutcomeAccepted}
}

// dispatch runs in the background, bounded by the lock-wait timeout, and
// always clears the pending flag whether it got to run or not.
func (t *WebhookTrigger) dispatch(ctx context.Context) {
	defer func() {
		t.mu.Lock()
		t.pending = false
		t.lastDispatch = time.Now()
		t.mu.Unlock()
	}()

	timeout := time.Duration(config.DefaultEventLockWaitTimeoutSec) * time.Second
	if !t.coordinator.AcquireWithTimeout(ctx, timeout) {
		return
	}
	defer t.coordinator.Release()

	_, _ = t.run(ctx, false)
}

func (t *WebhookTrigger) evictExpired() {
	cutoff := time.Now().Add(-eventDedupeTTL)
	for id, seenAt := range t.seen {
		if seenAt.Before(cutoff) {
			delete(t.seen, id)
		}
	}
}

func (t *WebhookTrigger) eventTypeAllowed(eventType string) bool {
	if len(t.cfg.EventTriggerTypes) == 0 {
		return true
	}
	for _, pattern := range t.cfg.EventTriggerTypes {
		if ok, _ := filepath.Match(pattern, eventType); ok {
			return true
		}
	}
	return false
}

// decode parses the envelope, transparently decrypting the "encrypt" field
// when sync.event_encrypt_key is configured.
func (t *WebhookTrigger) decode(body []byte) (*rawEnvelope, error) {
	var env rawEnvelope
	if err := json.Unmarshal(body, &env); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedEvent, err)
	}

	if env.Encrypt == "" {
		return &env, nil
	}

	plaintext, err := t.decrypt(env.Encrypt)
	if err != nil {
		return nil, fmt.Errorf("%w: decrypting event payload: %v", ErrMalformedEvent, err)
	}

	var inner rawEnvelope
	if err := json.Unmarshal(plaintext, &inner); err != nil {
		return nil, fmt.Errorf("%w: decoding decrypted event payload: %v", ErrMalformedEvent, err)
	}
	return &inner, nil
}

// decrypt reverses Feishu's event-callback encryption: the field is
// base64-decoded, then AES-CBC decrypted as an IV-prefixed ciphertext blob,
// keyed by SHA-256 of the shared encrypt key.
func (t *WebhookTrigger) decrypt(ciphertextB64 string) ([]byte, error) {
	raw, err := decodeBase64(ciphertextB64)
	if err != nil {
		return nil, err
	}
	if len(raw) < aes.BlockSize {
		return nil, errors.New("ciphertext shorter than one AES block")
	}

	keySum := sha256.Sum256([]byte(t.cfg.EventEncryptKey))
	block, err := aes.NewCipher(keySum[:])
	if err != nil {
		return nil, err
	}

	iv := raw[:aes.BlockSize]
	ciphertext := raw[aes.BlockSize:]
	if len(ciphertext)%aes.BlockSize != 0 {
		return nil, errors.New("ciphertext is not a multiple of the AES block size")
	}

	plaintext := make([]byte, len(ciphertext))
	cipher.NewCBCDecrypter(block, iv).CryptBlocks(plaintext, ciphertext)
	return pkcs7Unpad(plaintext)
}

// verifySignature checks SHA-256(timestamp||nonce||key||raw-body) against
// the header-supplied signature (§4.7).
func (t *WebhookTrigger) verifySignature(timestamp, nonce string, body []byte, signature string) bool {
	h := sha256.New()
	h.Write([]byte(timestamp))
	h.Write([]byte(nonce))
	h.Write([]byte(t.cfg.EventEncryptKey))
	h.Write(body)
	expected := fmt.Sprintf("%x", h.Sum(nil))
	return hmac.Equal([]byte(expected), []byte(signature))
}
