package openf1

import (
	"context"
	"strconv"
	"time"
)

// Recognized API endpoints
const (
	endpointSessions = "sessions"
	endpointDrivers  = "drivers"
	endpointLaps     = "laps"
	endpointStints   = "stints"
	endpointWeather  = "weather"
	endpointLocation = "location"
)

// Sessions fetches the sessions of a year filtered by session type
func (c *Client) Sessions(ctx context.Context, year int, sessionType string) ([]Session, error) {
	records, err := c.Get(ctx, endpointSessions, Params{
		"year":         strconv.Itoa(year),
		"session_type": sessionType,
	})
	if err != nil {
		return nil, err
	}
	return decodeList[Session](records, c.logger), nil
}

// Drivers fetches the driver entries for a session
func (c *Client) Drivers(ctx context.Context, sessionKey int) ([]Driver, error) {
	records, err := c.Get(ctx, endpointDrivers, Params{
		"session_key": strconv.Itoa(sessionKey),
	})
	if err != nil {
		return nil, err
	}
	return decodeList[Driver](records, c.logger), nil
}

// Laps fetches all laps of one driver in a session
func (c *Client) Laps(ctx context.Context, sessionKey, driverNumber int) ([]Lap, error) {
	records, err := c.Get(ctx, endpointLaps, Params{
		"session_key":   strconv.Itoa(sessionKey),
		"driver_number": strconv.Itoa(driverNumber),
	})
	if err != nil {
		return nil, err
	}
	return decodeList[Lap](records, c.logger), nil
}

// Stints fetches all stints of a session
func (c *Client) Stints(ctx context.Context, sessionKey int) ([]Stint, error) {
	records, err := c.Get(ctx, endpointStints, Params{
		"session_key": strconv.Itoa(sessionKey),
	})
	if err != nil {
		return nil, err
	}
	return decodeList[Stint](records, c.logger), nil
}

// Weather fetches the full weather timeline of a session
func (c *Client) Weather(ctx context.Context, sessionKey int) ([]WeatherSample, error) {
	records, err := c.Get(ctx, endpointWeather, Params{
		"session_key": strconv.Itoa(sessionKey),
	})
	if err != nil {
		return nil, err
	}
	return decodeList[WeatherSample](records, c.logger), nil
}

// Locations fetches position samples for a driver within an open time
// interval (from < date < to)
func (c *Client) Locations(ctx context.Context, sessionKey, driverNumber int, from, to time.Time) ([]LocationSample, error) {
	records, err := c.Get(ctx, endpointLocation, Params{
		"session_key":   strconv.Itoa(sessionKey),
		"driver_number": strconv.Itoa(driverNumber),
		"date>":         from.UTC().Format(time.RFC3339),
		"date<":         to.UTC().Format(time.RFC3339),
	})
	if err != nil {
		return nil, err
	}
	return decodeList[LocationSample](records, c.logger), nil
}
