// Package client is an HTTP client of the availability API.
//
// A Client satisfies the gateway used by editing sessions, so an editor can run
// against a remote server exactly as it runs against the in-process service.
package client

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sort"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/example/group-availability/internal/aggregate"
	"github.com/example/group-availability/internal/slotgrid"
)

// ErrNotFound is returned for 404 responses.
var ErrNotFound = errors.New("client: not found")

// APIError is a non-2xx response decoded from the server's error body.
type APIError struct {
	StatusCode int               `json:"-"`
	Code       string            `json:"error_code"`
	Message    string            `json:"message"`
	Fields     map[string]string `json:"errors"`
}

func (e *APIError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("client: %d %s: %s", e.StatusCode, e.Code, e.Message)
	}
	return fmt.Sprintf("client: %d: %s", e.StatusCode, e.Message)
}

// Unwrap lets errors.Is(err, ErrNotFound) match 404 responses.
func (e *APIError) Unwrap() error {
	if e.StatusCode == http.StatusNotFound {
		return ErrNotFound
	}
	return nil
}

// Option configures a Client.
type Option func(*resty.Client)

// WithTimeout bounds every request.
func WithTimeout(d time.Duration) Option {
	return func(c *resty.Client) { c.SetTimeout(d) }
}

// WithRetry sets how many times failed requests are retried and the initial wait.
func WithRetry(count int, wait time.Duration) Option {
	return func(c *resty.Client) {
		c.SetRetryCount(count).SetRetryWaitTime(wait)
	}
}

// Client talks to one server.
type Client struct {
	http *resty.Client
}

// New returns a client for baseURL with a 10s timeout and two retries.
func New(baseURL string, opts ...Option) *Client {
	rc := resty.New().
		SetBaseURL(strings.TrimSuffix(baseURL, "/")).
		SetTimeout(10*time.Second).
		SetRetryCount(2).
		SetRetryWaitTime(200*time.Millisecond).
		SetRetryMaxWaitTime(2*time.Second).
		SetHeader("Content-Type", "application/json").
		SetHeader("Accept", "application/json")
	for _, opt := range opts {
		opt(rc)
	}
	return &Client{http: rc}
}

// Room is a scheduling poll as returned by the server.
type Room struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"created_at"`
}

// Participant is one participant's stored availability.
type Participant struct {
	RoomID           string `json:"room_id"`
	Name             string `json:"name"`
	ScheduleEncoding string `json:"schedule_encoding"`
	Submitted        bool   `json:"submitted"`
	AvailableSlots   int    `json:"available_slots"`
}

// Grid decodes the participant's encoding.
func (p Participant) Grid() (slotgrid.WeekGrid, error) {
	return slotgrid.Decode(p.ScheduleEncoding)
}

// Heatmap is the aggregate view of a room. ETag identifies the record set and
// can be passed back to HeatmapIfChanged.
type Heatmap struct {
	RoomID            string                 `json:"room_id"`
	Respondents       int                    `json:"respondents"`
	MaxAttendance     int                    `json:"max_attendance"`
	Attendance        slotgrid.WeekGrid      `json:"attendance"`
	Attendees         aggregate.AttendeeGrid `json:"attendees"`
	EncodedAttendance string                 `json:"encoded_attendance"`
	Skipped           []string               `json:"skipped"`
	ETag              string                 `json:"-"`
}

// Result converts the heat-map into an aggregate result.
func (h Heatmap) Result() aggregate.Result {
	return aggregate.Result{
		Attendance:  h.Attendance,
		Attendees:   h.Attendees,
		Respondents: h.Respondents,
		Skipped:     h.Skipped,
	}
}

type roomEnvelope struct {
	Room Room `json:"room"`
}

type participantEnvelope struct {
	Participant Participant `json:"participant"`
}

type participantsEnvelope struct {
	Participants []Participant `json:"participants"`
}

func (c *Client) request(ctx context.Context) *resty.Request {
	return c.http.R().SetContext(ctx).SetError(&APIError{})
}

func check(resp *resty.Response, err error, op string) error {
	if err != nil {
		return fmt.Errorf("client: %s: %w", op, err)
	}
	if !resp.IsError() {
		return nil
	}
	apiErr, ok := resp.Error().(*APIError)
	if !ok || apiErr == nil {
		apiErr = &APIError{}
	}
	apiErr.StatusCode = resp.StatusCode()
	if apiErr.Message == "" {
		apiErr.Message = strings.TrimSpace(resp.String())
	}
	return apiErr
}

// CreateRoom creates a room with the given name.
func (c *Client) CreateRoom(ctx context.Context, name string) (Room, error) {
	var out roomEnvelope
	resp, err := c.request(ctx).
		SetBody(map[string]string{"name": name}).
		SetResult(&out).
		Post("/rooms")
	if err := check(resp, err, "create room"); err != nil {
		return Room{}, err
	}
	return out.Room, nil
}

// GetRoom fetches a room.
func (c *Client) GetRoom(ctx context.Context, roomID string) (Room, error) {
	var out roomEnvelope
	resp, err := c.request(ctx).
		SetPathParam("roomID", roomID).
		SetResult(&out).
		Get("/rooms/{roomID}")
	if err := check(resp, err, "get room"); err != nil {
		return Room{}, err
	}
	return out.Room, nil
}

// ListParticipants returns every participant that saved a grid, ordered by name.
func (c *Client) ListParticipants(ctx context.Context, roomID string) ([]Participant, error) {
	var out participantsEnvelope
	resp, err := c.request(ctx).
		SetPathParam("roomID", roomID).
		SetResult(&out).
		Get("/rooms/{roomID}/participants")
	if err := check(resp, err, "list participants"); err != nil {
		return nil, err
	}
	return out.Participants, nil
}

// FetchAllAvailability returns every stored record of the room.
func (c *Client) FetchAllAvailability(ctx context.Context, roomID string) ([]aggregate.Record, error) {
	participants, err := c.ListParticipants(ctx, roomID)
	if err != nil {
		return nil, err
	}
	records := make([]aggregate.Record, 0, len(participants))
	for _, p := range participants {
		records = append(records, aggregate.Record{Name: p.Name, Encoded: p.ScheduleEncoding})
	}
	sort.Slice(records, func(i, j int) bool { return records[i].Name < records[j].Name })
	return records, nil
}

// GetAvailability fetches one participant. Unknown names come back with
// Submitted=false and the empty grid.
func (c *Client) GetAvailability(ctx context.Context, roomID, name string) (Participant, error) {
	var out participantEnvelope
	resp, err := c.request(ctx).
		SetPathParams(map[string]string{"roomID": roomID, "name": name}).
		SetResult(&out).
		Get("/rooms/{roomID}/participants/{name}")
	if err := check(resp, err, "get availability"); err != nil {
		return Participant{}, err
	}
	return out.Participant, nil
}

// UpsertAvailability replaces the participant's grid.
func (c *Client) UpsertAvailability(ctx context.Context, roomID, name, encoded string) error {
	resp, err := c.request(ctx).
		SetPathParams(map[string]string{"roomID": roomID, "name": name}).
		SetBody(map[string]string{"schedule_encoding": encoded}).
		Put("/rooms/{roomID}/participants/{name}")
	return check(resp, err, "upsert availability")
}

// Heatmap fetches the room heat-map.
func (c *Client) Heatmap(ctx context.Context, roomID string) (Heatmap, error) {
	heatmap, _, err := c.HeatmapIfChanged(ctx, roomID, "")
	return heatmap, err
}

// HeatmapIfChanged fetches the heat-map unless its ETag still equals etag, in
// which case changed is false and the returned Heatmap is zero.
func (c *Client) HeatmapIfChanged(ctx context.Context, roomID, etag string) (heatmap Heatmap, changed bool, err error) {
	req := c.request(ctx).
		SetPathParam("roomID", roomID).
		SetResult(&heatmap)
	if etag != "" {
		req.SetHeader("If-None-Match", etag)
	}
	resp, err := req.Get("/rooms/{roomID}/heatmap")
	if err := check(resp, err, "heatmap"); err != nil {
		return Heatmap{}, false, err
	}
	if resp.StatusCode() == http.StatusNotModified {
		return Heatmap{}, false, nil
	}
	heatmap.ETag = resp.Header().Get("ETag")
	return heatmap, true, nil
}

// HeatmapWorkbook downloads the spreadsheet export.
func (c *Client) HeatmapWorkbook(ctx context.Context, roomID string) ([]byte, error) {
	resp, err := c.request(ctx).
		SetPathParam("roomID", roomID).
		SetHeader("Accept", "*/*").
		Get("/rooms/{roomID}/heatmap.xlsx")
	if err := check(resp, err, "heatmap workbook"); err != nil {
		return nil, err
	}
	return resp.Body(), nil
}
