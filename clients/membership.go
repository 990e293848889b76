// Package clients holds the contracts and HTTP implementations for the two
// remote collaborators of the order service: the membership service (user
// existence) and the product service (pricing and stock).
package clients

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"order-service/errs"
)

// MembershipClient checks that a user exists. UserExists returns false, not
// an error, for a confirmed-absent user; an error means the membership
// service could not answer and the caller must not treat it as absence.
type MembershipClient interface {
	UserExists(ctx context.Context, userID int64) (bool, error)
}

// HTTPMembershipClient talks to the membership service over REST.
type HTTPMembershipClient struct {
	baseURL string
	client  *http.Client
}

var _ MembershipClient = (*HTTPMembershipClient)(nil)

func NewMembershipClient(baseURL string, timeout time.Duration) *HTTPMembershipClient {
	return &HTTPMembershipClient{
		baseURL: baseURL,
		client:  &http.Client{Timeout: timeout},
	}
}

func (c *HTTPMembershipClient) UserExists(ctx context.Context, userID int64) (bool, error) {
	url := fmt.Sprintf("%s/api/v1/users/%d", c.baseURL, userID)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return false, &errs.UpstreamError{Service: "membership", Err: err}
	}
	setAuthHeader(ctx, req)

	resp, err := c.client.Do(req)
	if err != nil {
		return false, &errs.UpstreamError{Service: "membership", Err: err}
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return false, nil
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		return true, nil
	default:
		return false, &errs.UpstreamError{
			Service: "membership",
			Err:     fmt.Errorf("unexpected status %d", resp.StatusCode),
		}
	}
}
