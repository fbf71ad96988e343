package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"

	"github.com/avelora/skybook/internal/domain"
	"github.com/avelora/skybook/pkg/httpclient"
)

// PrivilegeClient talks to the privilege (bonus-point) ledger service over
// HTTP. All operations are scoped to a user via the X-User-Name header.
type PrivilegeClient struct {
	baseURL    string
	httpClient HTTPDoer
	logger     *slog.Logger
}

// NewPrivilegeClient creates a privilege ledger client for the given base URL.
func NewPrivilegeClient(baseURL string, httpClient HTTPDoer, logger *slog.Logger) *PrivilegeClient {
	return &PrivilegeClient{
		baseURL:    baseURL,
		httpClient: httpClient,
		logger:     logger,
	}
}

// GetPrivilege fetches the user's account snapshot (balance and tier).
func (c *PrivilegeClient) GetPrivilege(ctx context.Context, username string) (*domain.Privilege, error) {
	info, err := c.GetPrivilegeInfo(ctx, username)
	if err != nil {
		return nil, err
	}
	return &domain.Privilege{Balance: info.Balance, Status: info.Status}, nil
}

// GetPrivilegeInfo fetches the account snapshot together with its full
// operation history.
func (c *PrivilegeClient) GetPrivilegeInfo(ctx context.Context, username string) (*domain.PrivilegeInfo, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/api/v1/privilege", nil)
	if err != nil {
		return nil, fmt.Errorf("create get privilege request: %w", err)
	}
	req.Header.Set(userHeader, username)

	resp, err := c.httpClient.Do(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("call privilege service: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, httpclient.ParseResponseError(resp, "privilege")
	}

	var info domain.PrivilegeInfo
	if err := json.NewDecoder(resp.Body).Decode(&info); err != nil {
		return nil, fmt.Errorf("decode privilege response: %w", err)
	}

	if info.History == nil {
		info.History = []domain.PrivilegeHistoryEntry{}
	}

	return &info, nil
}

// AppendHistory appends a signed balance-change entry keyed by ticketUid.
// The ledger keeps at most one entry per uid, so a retried append cannot
// debit twice.
func (c *PrivilegeClient) AppendHistory(ctx context.Context, username, ticketUID string, balanceDiff int, operationType string) error {
	type appendHistoryRequest struct {
		TicketUID     string `json:"ticketUid"`
		BalanceDiff   int    `json:"balanceDiff"`
		OperationType string `json:"operationType"`
	}

	body, err := json.Marshal(appendHistoryRequest{
		TicketUID:     ticketUID,
		BalanceDiff:   balanceDiff,
		OperationType: operationType,
	})
	if err != nil {
		return fmt.Errorf("marshal history request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/v1/privilege/history", bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create history request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(userHeader, username)

	resp, err := c.httpClient.Do(ctx, req)
	if err != nil {
		return fmt.Errorf("call privilege service: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		return httpclient.ParseResponseError(resp, "privilege")
	}

	c.logger.DebugContext(ctx, "privilege history appended",
		slog.String("ticket_uid", ticketUID),
		slog.Int("balance_diff", balanceDiff),
		slog.String("operation_type", operationType),
	)

	return nil
}

// GetHistoryEntry looks up the history entry for a ticketUid. NotFound means
// no bonus points were involved in that ticket's purchase.
func (c *PrivilegeClient) GetHistoryEntry(ctx context.Context, username, ticketUID string) (*domain.PrivilegeHistoryEntry, error) {
	u := c.baseURL + "/api/v1/privilege/history/" + url.PathEscape(ticketUID)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, fmt.Errorf("create get history request: %w", err)
	}
	req.Header.Set(userHeader, username)

	resp, err := c.httpClient.Do(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("call privilege service: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, httpclient.ParseResponseError(resp, "privilege")
	}

	var entry domain.PrivilegeHistoryEntry
	if err := json.NewDecoder(resp.Body).Decode(&entry); err != nil {
		return nil, fmt.Errorf("decode history response: %w", err)
	}

	return &entry, nil
}

// RevertHistoryEntry deletes the history entry for a ticketUid, restoring the
// balance change it recorded. This is the compensating action for a debit.
func (c *PrivilegeClient) RevertHistoryEntry(ctx context.Context, username, ticketUID string) error {
	u := c.baseURL + "/api/v1/privilege/history/" + url.PathEscape(ticketUID)

	req, err := http.NewRequestWithContext(ctx, http.MethodDelete, u, nil)
	if err != nil {
		return fmt.Errorf("create revert history request: %w", err)
	}
	req.Header.Set(userHeader, username)

	resp, err := c.httpClient.Do(ctx, req)
	if err != nil {
		return fmt.Errorf("call privilege service: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusNoContent {
		return httpclient.ParseResponseError(resp, "privilege")
	}

	c.logger.DebugContext(ctx, "privilege history reverted",
		slog.String("ticket_uid", ticketUID),
	)

	return nil
}

// Ping probes the privilege service health endpoint.
func (c *PrivilegeClient) Ping(ctx context.Context) error {
	return pingLeaf(ctx, c.httpClient, c.baseURL, "privilege")
}
