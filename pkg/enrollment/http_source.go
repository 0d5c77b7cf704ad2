package enrollment

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/dripline/dripline/pkg/models"
)

// HTTPSource reads enrollment counts from the delivery runtime's aggregate
// endpoint: GET {base}/automations/{id}/enrollments/counts.
type HTTPSource struct {
	baseURL string
	client  *http.Client
}

// NewHTTPSource creates a counts source against the given runtime base URL.
func NewHTTPSource(baseURL string) *HTTPSource {
	return &HTTPSource{
		baseURL: baseURL,
		client: &http.Client{
			Timeout: 10 * time.Second,
		},
	}
}

// Counts fetches and decodes one aggregate snapshot.
func (s *HTTPSource) Counts(ctx context.Context, automationID string) (*models.EnrollmentCounts, error) {
	endpoint := fmt.Sprintf("%s/automations/%s/enrollments/counts",
		s.baseURL, url.PathEscape(automationID))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build counts request: %w", err)
	}

	req.Header.Set("Accept", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch enrollment counts: %w", err)
	}

	defer func() {
		_ = resp.Body.Close()
	}()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("enrollment counts endpoint returned %d", resp.StatusCode)
	}

	var counts models.EnrollmentCounts

	err = json.NewDecoder(resp.Body).Decode(&counts)
	if err != nil {
		return nil, fmt.Errorf("failed to decode enrollment counts: %w", err)
	}

	if counts.StepCounts == nil {
		counts.StepCounts = map[int]models.StepCount{}
	}

	return &counts, nil
}
