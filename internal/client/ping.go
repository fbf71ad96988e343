package client

import (
	"context"
	"fmt"
	"net/http"
)

// pingLeaf probes a leaf service's /manage/health endpoint. Used by the
// readiness handler; a leaf that does not answer 200 is reported down.
func pingLeaf(ctx context.Context, doer HTTPDoer, baseURL, serviceName string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, baseURL+"/manage/health", nil)
	if err != nil {
		return fmt.Errorf("create %s health request: %w", serviceName, err)
	}

	resp, err := doer.Do(ctx, req)
	if err != nil {
		return fmt.Errorf("%s health check: %w", serviceName, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%s health check: status %d", serviceName, resp.StatusCode)
	}
	return nil
}
