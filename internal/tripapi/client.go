package tripapi

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/F1Square/TripGo-Adv-client/internal/track"
)

// Client speaks to the remote trip-record REST API. All responses use the
// envelope {success, data, error}; non-2xx and success=false both map to
// errors, which callers translate per their propagation policy.
type Client struct {
	baseURL string
	token   string
	http    *http.Client
}

func NewClient(baseURL, token string) *Client {
	return &Client{
		baseURL: baseURL,
		token:   token,
		http:    &http.Client{Timeout: 15 * time.Second},
	}
}

// ListResult is one page of trips.
type ListResult struct {
	Data  []track.Trip `json:"data"`
	Count int          `json:"count"`
	Total int          `json:"total"`
	Page  int          `json:"page"`
	Pages int          `json:"pages"`
}

type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Error   string          `json:"error"`
}

type createTripRequest struct {
	Purpose       string             `json:"purpose"`
	StartOdometer float64            `json:"startOdometer"`
	Route         []track.RoutePoint `json:"route,omitempty"`
}

type updateTripRequest struct {
	Route []track.RoutePoint `json:"route"`
}

type endTripRequest struct {
	EndOdometer float64 `json:"endOdometer"`
}

// CreateTrip creates an active trip seeded with initialRoute.
func (c *Client) CreateTrip(ctx context.Context, purpose string, startOdometer float64, initialRoute []track.RoutePoint) (track.Trip, error) {
	var trip track.Trip
	body := createTripRequest{Purpose: purpose, StartOdometer: startOdometer, Route: initialRoute}
	if err := c.do(ctx, http.MethodPost, "/trips", body, &trip); err != nil {
		return track.Trip{}, err
	}
	return trip, nil
}

// GetActiveTrip returns the active trip, or nil when none exists.
func (c *Client) GetActiveTrip(ctx context.Context) (*track.Trip, error) {
	page, err := c.ListTrips(ctx, track.StatusActive, 1, 1)
	if err != nil {
		return nil, err
	}
	if len(page.Data) == 0 {
		return nil, nil
	}
	trip := page.Data[0]
	return &trip, nil
}

// UpdateRoute overwrites the trip's route in full.
func (c *Client) UpdateRoute(ctx context.Context, tripID string, route []track.RoutePoint) (track.Trip, error) {
	var trip track.Trip
	if err := c.do(ctx, http.MethodPut, "/trips/"+url.PathEscape(tripID), updateTripRequest{Route: route}, &trip); err != nil {
		return track.Trip{}, err
	}
	return trip, nil
}

// EndTrip completes the trip; the server computes the authoritative
// distance, duration and average speed.
func (c *Client) EndTrip(ctx context.Context, tripID string, endOdometer float64) (track.Trip, error) {
	var trip track.Trip
	if err := c.do(ctx, http.MethodPut, "/trips/"+url.PathEscape(tripID)+"/end", endTripRequest{EndOdometer: endOdometer}, &trip); err != nil {
		return track.Trip{}, err
	}
	return trip, nil
}

func (c *Client) DeleteTrip(ctx context.Context, tripID string) error {
	return c.do(ctx, http.MethodDelete, "/trips/"+url.PathEscape(tripID), nil, nil)
}

// ListTrips returns one page of trips, optionally filtered by status.
func (c *Client) ListTrips(ctx context.Context, status track.Status, page, limit int) (ListResult, error) {
	params := url.Values{}
	if status != "" {
		params.Set("status", string(status))
	}
	params.Set("page", strconv.Itoa(page))
	params.Set("limit", strconv.Itoa(limit))

	var result ListResult
	if err := c.do(ctx, http.MethodGet, "/trips?"+params.Encode(), nil, &result); err != nil {
		return ListResult{}, err
	}
	return result, nil
}

// TokenExpired inspects the configured bearer token's claims without
// verifying the signature. Tokens without an exp claim never expire here.
func (c *Client) TokenExpired() bool {
	if c.token == "" {
		return false
	}

	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(c.token, claims); err != nil {
		return false
	}
	exp, err := claims.GetExpirationTime()
	if err != nil || exp == nil {
		return false
	}
	return exp.Before(time.Now())
}

func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Request-ID", uuid.NewString())
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("%s %s: read body: %w", method, path, err)
	}

	var env envelope
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, &env); err != nil {
			if resp.StatusCode >= 300 {
				return fmt.Errorf("%s %s: status %d", method, path, resp.StatusCode)
			}
			return fmt.Errorf("%s %s: decode response: %w", method, path, err)
		}
	}

	if resp.StatusCode >= 300 || (len(raw) > 0 && !env.Success) {
		msg := env.Error
		if msg == "" {
			msg = fmt.Sprintf("status %d", resp.StatusCode)
		}
		return fmt.Errorf("%s %s: %s", method, path, msg)
	}

	if out != nil && len(env.Data) > 0 {
		if err := json.Unmarshal(env.Data, out); err != nil {
			return fmt.Errorf("%s %s: decode data: %w", method, path, err)
		}
	}
	return nil
}
