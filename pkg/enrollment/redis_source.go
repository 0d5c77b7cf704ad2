package enrollment

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strconv"

	redis "github.com/redis/go-redis/v9"

	"github.com/dripline/dripline/pkg/models"
)

const contactSampleLimit = 10

// RedisSource reads enrollment counts from Redis for deployments where the
// delivery runtime maintains its aggregates there instead of exposing an
// HTTP endpoint. Layout per automation:
//
//	dripline:automation:{id}:total_active          string  active total
//	dripline:automation:{id}:step_counts           hash    order -> count
//	dripline:automation:{id}:steps                 hash    order -> template slug
//	dripline:automation:{id}:step:{order}:contacts list    JSON contact samples
type RedisSource struct {
	client redis.UniversalClient
}

// NewRedisSource creates a counts source over an existing Redis client.
func NewRedisSource(client redis.UniversalClient) *RedisSource {
	return &RedisSource{client: client}
}

// Counts assembles one aggregate snapshot from the runtime's Redis keys.
func (s *RedisSource) Counts(ctx context.Context, automationID string) (*models.EnrollmentCounts, error) {
	prefix := "dripline:automation:" + automationID

	counts := &models.EnrollmentCounts{
		StepCounts: map[int]models.StepCount{},
	}

	total, err := s.client.Get(ctx, prefix+":total_active").Result()
	if err != nil && err != redis.Nil {
		return nil, fmt.Errorf("failed to read active total: %w", err)
	}

	if total != "" {
		counts.TotalActive, err = strconv.Atoi(total)
		if err != nil {
			return nil, fmt.Errorf("malformed active total %q: %w", total, err)
		}
	}

	stepCounts, err := s.client.HGetAll(ctx, prefix+":step_counts").Result()
	if err != nil {
		return nil, fmt.Errorf("failed to read step counts: %w", err)
	}

	for field, value := range stepCounts {
		order, err := strconv.Atoi(field)
		if err != nil {
			return nil, fmt.Errorf("malformed step order %q: %w", field, err)
		}

		count, err := strconv.Atoi(value)
		if err != nil {
			return nil, fmt.Errorf("malformed step count %q: %w", value, err)
		}

		contacts, err := s.contactSamples(ctx, prefix, order)
		if err != nil {
			return nil, err
		}

		counts.StepCounts[order] = models.StepCount{
			Count:    count,
			Contacts: contacts,
		}
	}

	summaries, err := s.client.HGetAll(ctx, prefix+":steps").Result()
	if err != nil {
		return nil, fmt.Errorf("failed to read step summaries: %w", err)
	}

	for field, slug := range summaries {
		order, err := strconv.Atoi(field)
		if err != nil {
			return nil, fmt.Errorf("malformed step order %q: %w", field, err)
		}

		counts.Steps = append(counts.Steps, models.StepSummary{
			StepOrder:    order,
			TemplateSlug: slug,
		})
	}

	sort.Slice(counts.Steps, func(i, j int) bool {
		return counts.Steps[i].StepOrder < counts.Steps[j].StepOrder
	})

	return counts, nil
}

func (s *RedisSource) contactSamples(ctx context.Context, prefix string, order int) ([]models.ContactSample, error) {
	key := fmt.Sprintf("%s:step:%d:contacts", prefix, order)

	raw, err := s.client.LRange(ctx, key, 0, contactSampleLimit-1).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to read contact samples for step %d: %w", order, err)
	}

	contacts := make([]models.ContactSample, 0, len(raw))

	for _, item := range raw {
		var contact models.ContactSample

		err = json.Unmarshal([]byte(item), &contact)
		if err != nil {
			return nil, fmt.Errorf("malformed contact sample for step %d: %w", order, err)
		}

		contacts = append(contacts, contact)
	}

	return contacts, nil
}
