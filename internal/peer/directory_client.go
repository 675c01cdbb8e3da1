package peer

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"meetrelay/internal/core/domain"
	"meetrelay/pkg/retry"

	"github.com/carlmjohnson/requests"
)

// DirectoryClient talks to the relay's meeting directory API.
type DirectoryClient struct {
	baseURL    string
	httpClient *http.Client
	retry      retry.Config
}

func NewDirectoryClient(baseURL string, httpClient *http.Client) *DirectoryClient {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 10 * time.Second}
	}

	cfg := retry.DefaultConfig()
	cfg.Retryable = func(err error) bool {
		return errors.Is(err, domain.ErrStoreUnavailable)
	}
	return &DirectoryClient{baseURL: baseURL, httpClient: httpClient, retry: cfg}
}

// WithRetry replaces the backoff used when a lookup gets a 503.
func (c *DirectoryClient) WithRetry(cfg retry.Config) *DirectoryClient {
	retryable := c.retry.Retryable
	c.retry = cfg
	if c.retry.Retryable == nil {
		c.retry.Retryable = retryable
	}
	return c
}

type createMeetingRequest struct {
	HostName string `json:"hostName"`
}

type createMeetingResponse struct {
	MeetingID domain.MeetingID `json:"meetingId"`
}

type getMeetingResponse struct {
	MeetingRoom string `json:"meetingRoom"`
}

// CreateMeeting makes a single attempt. A 503 may follow a write that
// landed, so retrying could create a second meeting.
func (c *DirectoryClient) CreateMeeting(ctx context.Context, hostName string) (domain.MeetingID, error) {
	var resp createMeetingResponse
	err := requests.
		URL(c.baseURL).
		Path("/api/meeting/create-meeting").
		Client(c.httpClient).
		BodyJSON(createMeetingRequest{HostName: hostName}).
		CheckStatus(http.StatusCreated).
		ToJSON(&resp).
		Fetch(ctx)
	if err != nil {
		return "", classify("create meeting", err)
	}
	if resp.MeetingID == "" {
		return "", fmt.Errorf("create meeting: response has no meetingId")
	}
	return resp.MeetingID, nil
}

// GetMeeting fetches the record for id. ErrMeetingNotFound is returned as is.
func (c *DirectoryClient) GetMeeting(ctx context.Context, id domain.MeetingID) (*domain.MeetingRecord, error) {
	return retry.DoWithResult(ctx, c.retry, func() (*domain.MeetingRecord, error) {
		var resp getMeetingResponse
		err := requests.
			URL(c.baseURL).
			Path("/api/meeting/get-meeting/" + url.PathEscape(string(id))).
			Client(c.httpClient).
			CheckStatus(http.StatusOK).
			ToJSON(&resp).
			Fetch(ctx)
		if err != nil {
			return nil, classify("get meeting", err)
		}

		var record domain.MeetingRecord
		if err := json.Unmarshal([]byte(resp.MeetingRoom), &record); err != nil {
			return nil, fmt.Errorf("get meeting: invalid meetingRoom: %w", err)
		}
		if record.ID == "" {
			record.ID = id
		}
		return &record, nil
	})
}

func classify(op string, err error) error {
	switch {
	case requests.HasStatusErr(err, http.StatusNotFound):
		return fmt.Errorf("%s: %w", op, domain.ErrMeetingNotFound)
	case requests.HasStatusErr(err, http.StatusBadRequest):
		return fmt.Errorf("%s: %w", op, domain.ErrInvalidHostName)
	case requests.HasStatusErr(err, http.StatusServiceUnavailable):
		return fmt.Errorf("%s: %w", op, domain.ErrStoreUnavailable)
	default:
		return fmt.Errorf("%s: %w", op, err)
	}
}
