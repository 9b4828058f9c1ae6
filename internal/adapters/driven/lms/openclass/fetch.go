package openclass

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/cohort-tools/cohort-tracker/internal/core/domain"
	"github.com/cohort-tools/cohort-tracker/internal/logger"
)

// FetchClasses lists the classes visible to the session.
func (p *Provider) FetchClasses(ctx context.Context, session domain.Session) ([]domain.Class, error) {
	body, err := p.getEnvelope(ctx, session, p.baseURL+"/v1/classes", "")
	if err != nil {
		return nil, fmt.Errorf("fetching classes: %w", err)
	}

	var list classListResponse
	if err := json.Unmarshal(body, &list); err != nil {
		return nil, fmt.Errorf("%w: decoding class list: %v", domain.ErrMalformedResponse, err)
	}

	classes := make([]domain.Class, 0, len(list.Data))
	for _, c := range list.Data {
		classes = append(classes, domain.Class{
			ID:         c.ID,
			Name:       c.Name,
			FriendlyID: c.FriendlyID,
		})
	}
	return classes, nil
}

// FetchClassStructure maps assignment ID to section label by reading the
// class's unit layout.
func (p *Provider) FetchClassStructure(ctx context.Context, session domain.Session, classID string) (map[string]string, error) {
	body, err := p.getEnvelope(ctx, session, p.baseURL+"/v1/classes/"+classID, classID)
	if err != nil {
		return nil, fmt.Errorf("fetching class structure: %w", err)
	}

	var detail classDetailResponse
	if err := json.Unmarshal(body, &detail); err != nil {
		return nil, fmt.Errorf("%w: decoding class detail: %v", domain.ErrMalformedResponse, err)
	}

	sections := make(map[string]string)
	if len(detail.Data) == 0 {
		return sections, nil
	}
	for _, unit := range detail.Data[0].Units {
		for _, assignmentID := range unit.Assignments {
			sections[assignmentID] = unit.Name
		}
	}
	logger.Debug("class %s: %d assignments carry section info", classID, len(sections))
	return sections, nil
}

// FetchProgressPage fetches one page of progress records, newest
// completion first.
func (p *Provider) FetchProgressPage(ctx context.Context, session domain.Session, classID string, page int) (*domain.ProgressPage, error) {
	url := fmt.Sprintf("%s/v1/classes/%s/progressions?return_count=%d&page=%d&sort_by_completed_at=-1",
		p.baseURL, classID, p.pageSize, page)

	body, err := p.getEnvelope(ctx, session, url, classID)
	if err != nil {
		return nil, fmt.Errorf("fetching progressions page %d: %w", page, err)
	}

	var resp progressionResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("%w: class %s page %d: %v: %s", domain.ErrMalformedResponse, classID, page, err, truncate(body))
	}

	entries := make([]domain.ProgressEntry, 0, len(resp.Data))
	for i := range resp.Data {
		entry, err := resp.Data[i].toEntry(classID)
		if err != nil {
			// Fatal for the page: dropping records here would silently
			// corrupt the analytics.
			return nil, fmt.Errorf("class %s page %d: %w", classID, page, err)
		}
		entries = append(entries, entry)
	}

	return &domain.ProgressPage{
		Entries:     entries,
		Total:       resp.Metadata.Total,
		Page:        resp.Metadata.Page,
		CanLoadMore: resp.Metadata.CanLoadMore,
	}, nil
}

// getEnvelope performs an authenticated GET, maps error statuses to
// domain errors and unwraps the double-encoded payload.
func (p *Provider) getEnvelope(ctx context.Context, session domain.Session, url, classID string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("building request: %w", err)
	}
	p.setSessionHeaders(req, session)

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("reading response: %w", err)
	}

	switch resp.StatusCode {
	case http.StatusOK:
	case http.StatusUnauthorized, http.StatusForbidden:
		return nil, domain.ErrUnauthorized
	case http.StatusNotFound:
		if classID != "" {
			return nil, fmt.Errorf("%w: %s", domain.ErrClassNotFound, classID)
		}
		return nil, fmt.Errorf("status %d: %s", resp.StatusCode, truncate(body))
	default:
		return nil, fmt.Errorf("status %d: %s", resp.StatusCode, truncate(body))
	}

	inner, err := innerPayload(body)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrMalformedResponse, err)
	}
	return inner, nil
}
