package CalCom

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"KaufmannHealth/Models"

	"github.com/go-resty/resty/v2"
)

type Slot struct {
	DateISO   string `json:"date_iso"`
	TimeLabel string `json:"time_label"`
}

type Client struct {
	http       *resty.Client
	cache      SlotCache
	dbFallback bool
}

var defaultClient *Client

func Setup() {
	defaultClient = NewClient(
		os.Getenv("CAL_BASE_URL"),
		os.Getenv("CAL_API_KEY"),
		NewSlotCacheFromEnv(),
		os.Getenv("CAL_DB_FALLBACK") == "true",
	)
}

func Default() *Client {
	if defaultClient == nil {
		Setup()
	}
	return defaultClient
}

func NewClient(baseURL, apiKey string, cache SlotCache, dbFallback bool) *Client {
	if baseURL == "" {
		baseURL = "https://api.cal.com"
	}
	http := resty.New().
		SetBaseURL(baseURL).
		SetTimeout(10 * time.Second).
		SetHeader("Accept", "application/json").
		SetQueryParam("apiKey", apiKey)
	return &Client{http: http, cache: cache, dbFallback: dbFallback}
}

type availabilityResponse struct {
	Slots []struct {
		Date string `json:"date"`
		Time string `json:"time"`
	} `json:"slots"`
}

// GetAvailability asks Cal.com first (it knows about buffers and pending
// reservations), falls back to the slots table when allowed, and caches the
// result for 60 seconds.
func (c *Client) GetAvailability(ctx context.Context, profile *Models.TherapistProfile, kind, start, end string) ([]Slot, error) {
	key := CacheKey(profile.ID, kind, start, end)
	if c.cache != nil {
		if slots, ok := c.cache.Get(key); ok {
			return slots, nil
		}
	}

	slots, err := c.fetchRemote(ctx, profile, kind, start, end)
	if err != nil && c.dbFallback {
		slots, err = fetchFromDatabase(profile.ID, kind)
	}
	if err != nil {
		return nil, err
	}

	if c.cache != nil {
		c.cache.Set(key, slots, DefaultCacheTTL)
	}
	return slots, nil
}

func (c *Client) fetchRemote(ctx context.Context, profile *Models.TherapistProfile, kind, start, end string) ([]Slot, error) {
	if profile.CalUsername == "" {
		return nil, errors.New("therapist has no cal.com username")
	}
	var body availabilityResponse
	resp, err := c.http.R().
		SetContext(ctx).
		SetQueryParams(map[string]string{
			"username":  profile.CalUsername,
			"eventType": kind,
			"startTime": start,
			"endTime":   end,
		}).
		SetResult(&body).
		Get("/v1/availability")
	if err != nil {
		return nil, err
	}
	if resp.IsError() {
		return nil, fmt.Errorf("cal.com availability returned %d", resp.StatusCode())
	}

	slots := make([]Slot, 0, len(body.Slots))
	for _, s := range body.Slots {
		slots = append(slots, Slot{DateISO: s.Date, TimeLabel: s.Time})
	}
	return slots, nil
}

func fetchFromDatabase(therapistID uint, kind string) ([]Slot, error) {
	var rows []Models.TherapistSlot
	err := Models.DB.Where("therapist_id = ? AND kind = ? AND taken = ?", therapistID, kind, false).
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	slots := make([]Slot, 0, len(rows))
	for _, row := range rows {
		slots = append(slots, Slot{DateISO: row.DateISO, TimeLabel: row.TimeLabel})
	}
	return slots, nil
}

type createBookingPayload struct {
	Username  string `json:"username"`
	EventType string `json:"eventType"`
	Start     string `json:"start"`
	Name      string `json:"name"`
	Email     string `json:"email"`
}

// CreateBooking consumes the slot on Cal.com. Dry-run bookings never reach
// this call.
func (c *Client) CreateBooking(ctx context.Context, profile *Models.TherapistProfile, kind, start, name, email string) (string, error) {
	var body struct {
		UID string `json:"uid"`
	}
	resp, err := c.http.R().
		SetContext(ctx).
		SetBody(createBookingPayload{
			Username:  profile.CalUsername,
			EventType: kind,
			Start:     start,
			Name:      name,
			Email:     email,
		}).
		SetResult(&body).
		Post("/v1/bookings")
	if err != nil {
		return "", err
	}
	if resp.IsError() {
		return "", fmt.Errorf("cal.com booking returned %d", resp.StatusCode())
	}
	return body.UID, nil
}
