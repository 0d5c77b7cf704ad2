// Package templates resolves the template references carried by email nodes.
// The editor never renders templates; it only lists the slugs an operator can
// pick from.
package templates

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

// Template is a selectable reference exposed by the template store.
type Template struct {
	Slug string `json:"slug"`
	Name string `json:"name"`
}

// Resolver lists the templates available to email nodes.
type Resolver interface {
	List(ctx context.Context) ([]Template, error)
}

// HTTPResolver reads the template list from the collaborator store:
// GET {base}/templates.
type HTTPResolver struct {
	baseURL string
	client  *http.Client
}

// NewHTTPResolver creates a resolver against the given store base URL.
func NewHTTPResolver(baseURL string) *HTTPResolver {
	return &HTTPResolver{
		baseURL: baseURL,
		client: &http.Client{
			Timeout: 10 * time.Second,
		},
	}
}

// List fetches the selectable templates.
func (r *HTTPResolver) List(ctx context.Context) ([]Template, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, r.baseURL+"/templates", nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build template request: %w", err)
	}

	req.Header.Set("Accept", "application/json")

	resp, err := r.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch templates: %w", err)
	}

	defer func() {
		_ = resp.Body.Close()
	}()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("template endpoint returned %d", resp.StatusCode)
	}

	var list []Template

	err = json.NewDecoder(resp.Body).Decode(&list)
	if err != nil {
		return nil, fmt.Errorf("failed to decode template list: %w", err)
	}

	return list, nil
}
