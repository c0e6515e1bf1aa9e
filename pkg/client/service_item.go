package client

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"

	"servicehub/pkg/model"
)

var ErrServiceItemNotFound = errors.New("service item not found")

// ServiceItemClient reads listings from the catalog service.
type ServiceItemClient struct {
	httpClient *HttpClient
}

func NewServiceItemClient(baseURL string) *ServiceItemClient {
	return &ServiceItemClient{
		httpClient: NewHttpClient(baseURL),
	}
}

// GetByID fetches one listing. Failures other than a 404 carry the catalog's own message.
func (c *ServiceItemClient) GetByID(ctx context.Context, id string) (*model.ServiceItem, error) {
	path := "/api/v1/services/id/" + url.PathEscape(id)
	resp, err := c.httpClient.GET(ctx, path, nil)
	if err != nil {
		return nil, fmt.Errorf("catalog request failed: %w", err)
	}

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return nil, ErrServiceItemNotFound
	case resp.StatusCode != http.StatusOK:
		return nil, fmt.Errorf("catalog returned %d: %s", resp.StatusCode, GetErrorMessage(resp))
	}

	var envelope struct {
		Data model.ServiceItem `json:"data"`
	}
	if err := resp.DecodeJSON(&envelope); err != nil {
		return nil, fmt.Errorf("failed to decode service item: %w", err)
	}
	return &envelope.Data, nil
}
