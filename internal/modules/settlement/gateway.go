// README: Payment gateway client. POST is idempotent via the
// Idempotency-Key header; an ambiguous response is reconciled by reading
// the gateway's payment list back.
package settlement

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/google/uuid"

	"rideon/internal/config"
	"rideon/internal/observability"
	"rideon/internal/retry"
)

var (
	// ErrUpstream marks a gateway that stayed unreachable or broken
	// through every retry.
	ErrUpstream = errors.New("payment gateway unavailable")
	// ErrLedgerMismatch means the gateway's payment list disagrees with
	// ours. Retrying cannot fix that.
	ErrLedgerMismatch = errors.New("payment ledger out of sync")
)

type Gateway struct {
	client   *http.Client
	attempts int
	delay    time.Duration
}

func NewGateway(cfg config.PaymentConfig) *Gateway {
	return &Gateway{
		client:   &http.Client{Timeout: 10 * time.Second},
		attempts: cfg.Attempts,
		delay:    cfg.RetryDelay,
	}
}

type paymentRequest struct {
	Amount int `json:"amount"`
}

type paymentEntry struct {
	Amount int    `json:"amount"`
	Status string `json:"status"`
}

// Pay charges the token. All attempts share one idempotency key, so a
// retried POST can never double-charge. When the gateway answers anything
// but 204 the payment list is fetched and compared against expectedCount;
// a matching count means the charge landed despite the error.
func (g *Gateway) Pay(ctx context.Context, baseURL, token string, amount int, expectedCount func(ctx context.Context) (int, error)) error {
	idempotencyKey := uuid.NewString()
	body, err := json.Marshal(paymentRequest{Amount: amount})
	if err != nil {
		return err
	}

	err = retry.Do(ctx, g.attempts, g.delay, func() error {
		postErr := g.post(ctx, baseURL, token, idempotencyKey, body)
		if postErr == nil {
			return nil
		}
		observability.PaymentRetriesTotal.Inc()

		entries, getErr := g.list(ctx, baseURL, token)
		if getErr != nil {
			return postErr
		}
		expected, expErr := expectedCount(ctx)
		if expErr != nil {
			return retry.Stop{Err: expErr}
		}
		if len(entries) != expected {
			return retry.Stop{Err: fmt.Errorf("%w: gateway has %d payments, expected %d", ErrLedgerMismatch, len(entries), expected)}
		}
		// The charge is on the gateway's books; the POST response was lost.
		return nil
	})
	if errors.Is(err, retry.ErrExhausted) {
		observability.PaymentFailuresTotal.Inc()
		return errors.Join(ErrUpstream, err)
	}
	return err
}

func (g *Gateway) post(ctx context.Context, baseURL, token, idempotencyKey string, body []byte) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, baseURL+"/payments", bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Idempotency-Key", idempotencyKey)

	res, err := g.client.Do(req)
	if err != nil {
		return err
	}
	defer res.Body.Close()
	io.Copy(io.Discard, res.Body)
	if res.StatusCode != http.StatusNoContent {
		return fmt.Errorf("payment gateway returned %d", res.StatusCode)
	}
	return nil
}

func (g *Gateway) list(ctx context.Context, baseURL, token string) ([]paymentEntry, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, baseURL+"/payments", nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+token)

	res, err := g.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer res.Body.Close()
	if res.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("payment list returned %d", res.StatusCode)
	}
	var entries []paymentEntry
	if err := json.NewDecoder(res.Body).Decode(&entries); err != nil {
		return nil, err
	}
	return entries, nil
}
