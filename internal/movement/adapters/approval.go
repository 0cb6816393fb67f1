// Package adapters holds the movement subsystem's clients for other services.
package adapters

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"

	"ecoledger/internal/platform/config"
	"ecoledger/pkg/domain"
	"ecoledger/pkg/platform/circuit"
	"ecoledger/pkg/requestcontext"
)

// HTTPApprover asks the user service whether a producer may register
// movements. Any transport or decoding failure counts as not approved. After
// repeated outages the breaker opens and lookups fail fast.
type HTTPApprover struct {
	baseURL string
	client  *http.Client
	tokens  *TokenSource
	breaker *circuit.Breaker
	logger  *slog.Logger
}

func NewHTTPApprover(cfg config.ProducerApproval, logger *slog.Logger) *HTTPApprover {
	var tokens *TokenSource
	if cfg.SigningKey != "" {
		tokens = NewTokenSource(cfg.SigningKey, cfg.ClientID, cfg.TokenTTL, "users:read")
	}
	return &HTTPApprover{
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		client:  &http.Client{Timeout: cfg.Timeout},
		tokens:  tokens,
		breaker: circuit.New("user-service"),
		logger:  logger,
	}
}

type userResponse struct {
	Role   string `json:"role"`
	Status string `json:"status"`
}

func (a *HTTPApprover) IsApproved(ctx context.Context, producerID domain.ProducerID) bool {
	if !a.breaker.Allow() {
		a.logger.WarnContext(ctx, "user service circuit open, producer not approved", "producer_id", producerID)
		return false
	}

	endpoint := a.baseURL + "/users/" + url.PathEscape(producerID.String())
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		a.logger.WarnContext(ctx, "failed to build approval request", "producer_id", producerID, "error", err)
		return false
	}
	req.Header.Set("Accept", "application/json")
	if id := requestcontext.RequestID(ctx); id != "" {
		req.Header.Set("X-Request-ID", id)
	}
	if a.tokens != nil {
		token, err := a.tokens.Token()
		if err != nil {
			a.logger.ErrorContext(ctx, "failed to mint service token", "error", err)
			return false
		}
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := a.client.Do(req)
	if err != nil {
		a.recordFailure(ctx)
		a.logger.WarnContext(ctx, "user service unreachable",
			"producer_id", producerID,
			"error", err,
		)
		return false
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 500 {
		a.recordFailure(ctx)
	} else if _, change := a.breaker.RecordSuccess(); change.Closed {
		a.logger.InfoContext(ctx, "user service circuit closed")
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		a.logger.InfoContext(ctx, "producer lookup not successful",
			"producer_id", producerID,
			"status", resp.StatusCode,
		)
		return false
	}

	var user userResponse
	if err := json.NewDecoder(io.LimitReader(resp.Body, 64<<10)).Decode(&user); err != nil {
		a.logger.WarnContext(ctx, "undecodable user service response",
			"producer_id", producerID,
			"error", err,
		)
		return false
	}
	approved := strings.EqualFold(user.Role, "producer") && strings.EqualFold(user.Status, "APPROVED")
	a.logger.InfoContext(ctx, "producer approval checked",
		"producer_id", producerID,
		"approved", approved,
	)
	return approved
}

func (a *HTTPApprover) recordFailure(ctx context.Context) {
	if _, change := a.breaker.RecordFailure(); change.Opened {
		a.logger.ErrorContext(ctx, "user service circuit opened", "breaker", a.breaker.Name())
	}
}

// AllowAll approves every producer. Used when the approval check is disabled.
type AllowAll struct{}

func (AllowAll) IsApproved(context.Context, domain.ProducerID) bool { return true }
