package calendar

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"golang.org/x/oauth2"
)

const defaultBaseURL = "https://www.googleapis.com/calendar/v3"

// DefaultMaxResults bounds the events listing like the original client did.
const DefaultMaxResults = 10

// EventTime is either a dateTime (timed event) or a date (all-day event).
type EventTime struct {
	DateTime string `json:"dateTime,omitempty"`
	Date     string `json:"date,omitempty"`
}

// Event is a calendar event as returned by the events listing. Relayed to
// callers verbatim; this service does not interpret it.
type Event struct {
	ID       string    `json:"id"`
	Summary  string    `json:"summary,omitempty"`
	Location string    `json:"location,omitempty"`
	HTMLLink string    `json:"htmlLink,omitempty"`
	Start    EventTime `json:"start"`
	End      EventTime `json:"end"`
}

type eventList struct {
	Items []Event `json:"items"`
}

// Client lists upcoming events from the user's primary calendar. The base URL
// is injectable for tests; token refresh belongs to the oauth2 token source,
// not to this client.
type Client struct {
	baseURL string
	now     func() time.Time
}

func NewClient(baseURL string) *Client {
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	return &Client{baseURL: baseURL, now: time.Now}
}

// ListUpcomingEvents returns up to maxResults events from the primary
// calendar, ordered by start time ascending, starting from now. The caller's
// ctx bounds the call; cancellation does not unwind any stored state.
func (c *Client) ListUpcomingEvents(ctx context.Context, ts oauth2.TokenSource, maxResults int) ([]Event, error) {
	if maxResults <= 0 {
		maxResults = DefaultMaxResults
	}

	q := url.Values{}
	q.Set("timeMin", c.now().UTC().Format(time.RFC3339))
	q.Set("maxResults", strconv.Itoa(maxResults))
	q.Set("singleEvents", "true")
	q.Set("orderBy", "startTime")

	endpoint := c.baseURL + "/calendars/primary/events?" + q.Encode()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, err
	}

	resp, err := oauth2.NewClient(ctx, ts).Do(req)
	if err != nil {
		return nil, fmt.Errorf("calendar request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		b, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("calendar API returned %d: %s", resp.StatusCode, string(b))
	}

	var list eventList
	if err := json.NewDecoder(resp.Body).Decode(&list); err != nil {
		return nil, fmt.Errorf("decode calendar response: %w", err)
	}
	return list.Items, nil
}
