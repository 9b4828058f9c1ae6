package openclass

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/cohort-tools/cohort-tracker/internal/core/domain"
)

// Wire types for the OpenClass API. The API wraps its payloads twice:
// the outer response carries the real JSON document re-encoded as a
// string inside result.objects. The helpers below unwrap that envelope
// before the typed decode.

// loginResponse is the outer body of POST /v1/auth/login.
type loginResponse struct {
	Result struct {
		Token string `json:"token"`
	} `json:"result"`
}

// envelope is the generic outer body of the data endpoints.
// Objects is either a JSON string or an array whose first element is a
// JSON string, depending on the endpoint.
type envelope struct {
	Result struct {
		Objects json.RawMessage `json:"objects"`
	} `json:"result"`
}

// innerPayload unwraps the nested JSON string from an envelope body.
func innerPayload(body []byte) ([]byte, error) {
	var outer envelope
	if err := json.Unmarshal(body, &outer); err != nil {
		return nil, fmt.Errorf("decoding envelope: %w", err)
	}
	if len(outer.Result.Objects) == 0 {
		return nil, fmt.Errorf("envelope has no result.objects")
	}

	// Try the string form first, then the array-of-strings form.
	var inner string
	if err := json.Unmarshal(outer.Result.Objects, &inner); err == nil {
		return []byte(inner), nil
	}
	var list []string
	if err := json.Unmarshal(outer.Result.Objects, &list); err != nil || len(list) == 0 {
		return nil, fmt.Errorf("unexpected result.objects shape")
	}
	return []byte(list[0]), nil
}

// decodeLoginToken extracts the bearer token from a login response body.
func decodeLoginToken(body []byte) (string, error) {
	var resp loginResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return "", fmt.Errorf("decoding login response: %w", err)
	}
	if resp.Result.Token == "" {
		return "", fmt.Errorf("login response carries no token")
	}
	return resp.Result.Token, nil
}

// recordID is the provider's record identifier, either a plain string or
// a Mongo ObjectId document {"$oid": "..."}.
type recordID string

func (r *recordID) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		*r = recordID(s)
		return nil
	}
	var oid struct {
		OID string `json:"$oid"`
	}
	if err := json.Unmarshal(data, &oid); err != nil || oid.OID == "" {
		return fmt.Errorf("unsupported record id shape: %s", data)
	}
	*r = recordID(oid.OID)
	return nil
}

// wireUser is the embedded student sub-record.
type wireUser struct {
	ID        string `json:"id"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	Email     string `json:"email"`
}

// wireAssignment is the embedded assignment sub-record.
type wireAssignment struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	Type string `json:"type"`
}

// wireProgression is one record of the progressions feed.
type wireProgression struct {
	ID         recordID       `json:"_id"`
	User       wireUser       `json:"user"`
	Assignment wireAssignment `json:"assignment"`

	Grade       *float64 `json:"grade"`
	StartedAt   *string  `json:"started_assignment_at"`
	CompletedAt *string  `json:"completed_assignment_at"`
	ReviewedAt  *string  `json:"reviewed_at"`
}

// progressionResponse is the unwrapped body of the progressions endpoint.
type progressionResponse struct {
	Metadata struct {
		Total          int  `json:"total"`
		Page           int  `json:"page"`
		ResultsPerPage int  `json:"results_per_page"`
		CanLoadMore    bool `json:"can_load_more"`
	} `json:"metadata"`
	Data []wireProgression `json:"data"`
}

// classListResponse is the unwrapped body of the class listing.
type classListResponse struct {
	Data []struct {
		ID         string `json:"id"`
		Name       string `json:"name"`
		FriendlyID string `json:"friendly_id"`
	} `json:"data"`
}

// classDetailResponse is the unwrapped body of the class detail endpoint.
// Units carry the section labels for their assignment IDs.
type classDetailResponse struct {
	Data []struct {
		Units []struct {
			Name        string   `json:"name"`
			Assignments []string `json:"assignments"`
		} `json:"units"`
	} `json:"data"`
}

// parseRequiredTime parses an RFC 3339 timestamp that the schema marks
// as required.
func parseRequiredTime(value *string) (time.Time, error) {
	if value == nil || *value == "" {
		return time.Time{}, fmt.Errorf("missing required timestamp")
	}
	t, err := time.Parse(time.RFC3339, *value)
	if err != nil {
		return time.Time{}, err
	}
	return t, nil
}

// parseOptionalTime parses a nullable RFC 3339 timestamp.
func parseOptionalTime(value *string) (*time.Time, error) {
	if value == nil || *value == "" {
		return nil, nil
	}
	t, err := time.Parse(time.RFC3339, *value)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

// toEntry converts a wire progression into a domain entry.
// Records without the required timestamps are schema drift, surfaced as
// domain.ErrMalformedResponse rather than silently dropped.
func (p *wireProgression) toEntry(classID string) (domain.ProgressEntry, error) {
	if p.ID == "" || p.User.ID == "" || p.Assignment.ID == "" {
		return domain.ProgressEntry{}, fmt.Errorf("%w: record missing identifiers", domain.ErrMalformedResponse)
	}

	startedAt, err := parseRequiredTime(p.StartedAt)
	if err != nil {
		return domain.ProgressEntry{}, fmt.Errorf("%w: record %s started_assignment_at: %v", domain.ErrMalformedResponse, p.ID, err)
	}
	completedAt, err := parseRequiredTime(p.CompletedAt)
	if err != nil {
		return domain.ProgressEntry{}, fmt.Errorf("%w: record %s completed_assignment_at: %v", domain.ErrMalformedResponse, p.ID, err)
	}
	reviewedAt, err := parseOptionalTime(p.ReviewedAt)
	if err != nil {
		return domain.ProgressEntry{}, fmt.Errorf("%w: record %s reviewed_at: %v", domain.ErrMalformedResponse, p.ID, err)
	}

	return domain.ProgressEntry{
		ID: string(p.ID),
		Student: domain.Student{
			ID:        p.User.ID,
			ClassID:   classID,
			FirstName: p.User.FirstName,
			LastName:  p.User.LastName,
			Email:     p.User.Email,
		},
		Assignment: domain.Assignment{
			ID:      p.Assignment.ID,
			ClassID: classID,
			Name:    p.Assignment.Name,
			Type:    domain.AssignmentType(p.Assignment.Type),
		},
		Grade:       p.Grade,
		StartedAt:   startedAt,
		CompletedAt: completedAt,
		ReviewedAt:  reviewedAt,
	}, nil
}
