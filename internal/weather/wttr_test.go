package weather

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
)

const sample = `{
  "current_condition": [{"temp_F": "63", "weatherDesc": [{"value": "Partly cloudy "}]}],
  "nearest_area": [{"areaName": [{"value": "San Francisco"}]}],
  "weather": [{"maxtempF": "68", "mintempF": "55"}]
}`

func TestLookup(t *testing.T) {
	var gotPath, gotQuery string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath, gotQuery = r.URL.EscapedPath(), r.URL.RawQuery
		w.Write([]byte(sample))
	}))
	defer srv.Close()

	c := NewClient(srv.URL+"/", srv.Client())
	rep, err := c.Lookup(context.Background(), "San Francisco")
	if err != nil {
		t.Fatalf("Lookup: %v", err)
	}

	if gotPath != "/San%20Francisco" || gotQuery != "format=j1" {
		t.Errorf("request = %s?%s", gotPath, gotQuery)
	}

	want := Report{Location: "San Francisco", CurrentTempF: 63, HighF: 68, LowF: 55, Condition: "Partly cloudy"}
	if rep != want {
		t.Errorf("report = %+v, want %+v", rep, want)
	}
}

func TestLookupFailures(t *testing.T) {
	cases := []struct {
		name   string
		status int
		body   string
	}{
		{"server error", http.StatusInternalServerError, "oops"},
		{"bad json", http.StatusOK, "{"},
		{"empty", http.StatusOK, `{"current_condition": [], "weather": []}`},
		{"bad number", http.StatusOK, `{"current_condition": [{"temp_F": "warm"}], "weather": [{"maxtempF": "1", "mintempF": "0"}]}`},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tc.status)
				w.Write([]byte(tc.body))
			}))
			defer srv.Close()

			if _, err := NewClient(srv.URL, nil).Lookup(context.Background(), "Nowhere"); err == nil {
				t.Fatal("expected error")
			}
		})
	}
}

func TestLookupNoData(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{}`))
	}))
	defer srv.Close()

	_, err := NewClient(srv.URL, nil).Lookup(context.Background(), "Nowhere")
	if !errors.Is(err, ErrNoData) {
		t.Fatalf("err = %v, want ErrNoData", err)
	}
}
