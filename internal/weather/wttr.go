// Package weather looks up current conditions in Fahrenheit from wttr.in.
package weather

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

const DefaultBaseURL = "https://wttr.in"

var ErrNoData = errors.New("weather provider returned no data")

type Report struct {
	Location     string
	CurrentTempF float64
	HighF        float64
	LowF         float64
	Condition    string
}

type Client struct {
	BaseURL string
	HTTP    *http.Client
}

func NewClient(baseURL string, hc *http.Client) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	if hc == nil {
		hc = &http.Client{Timeout: 10 * time.Second}
	}
	return &Client{BaseURL: strings.TrimRight(baseURL, "/"), HTTP: hc}
}

type value struct {
	Value string `json:"value"`
}

type j1 struct {
	Current []struct {
		TempF string  `json:"temp_F"`
		Desc  []value `json:"weatherDesc"`
	} `json:"current_condition"`
	Weather []struct {
		MaxF string `json:"maxtempF"`
		MinF string `json:"mintempF"`
	} `json:"weather"`
}

// Lookup fetches one report. The returned Location is the one asked for.
func (c *Client) Lookup(ctx context.Context, location string) (Report, error) {
	u := c.BaseURL + "/" + url.PathEscape(location) + "?format=j1"

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return Report{}, err
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.HTTP.Do(req)
	if err != nil {
		return Report{}, fmt.Errorf("weather request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 256))
		return Report{}, fmt.Errorf("weather provider: %s: %s", resp.Status, strings.TrimSpace(string(body)))
	}

	var data j1
	if err := json.NewDecoder(resp.Body).Decode(&data); err != nil {
		return Report{}, fmt.Errorf("decode weather: %w", err)
	}
	if len(data.Current) == 0 || len(data.Weather) == 0 {
		return Report{}, ErrNoData
	}

	cur, day := data.Current[0], data.Weather[0]

	r := Report{Location: location}
	if r.CurrentTempF, err = num(cur.TempF); err != nil {
		return Report{}, err
	}
	if r.HighF, err = num(day.MaxF); err != nil {
		return Report{}, err
	}
	if r.LowF, err = num(day.MinF); err != nil {
		return Report{}, err
	}
	if len(cur.Desc) > 0 {
		r.Condition = strings.TrimSpace(cur.Desc[0].Value)
	}
	return r, nil
}

func num(s string) (float64, error) {
	v, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil {
		return 0, fmt.Errorf("bad temperature %q: %w", s, err)
	}
	return v, nil
}
