package fundclient

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vikasavnish/mfbroker/internal/config"
	"github.com/vikasavnish/mfbroker/internal/logging"
	"github.com/vikasavnish/mfbroker/internal/models"
)

var sampleRecords = []models.SchemeRecord{
	{SchemeCode: 119551, SchemeName: "Aditya Birla Sun Life Banking & PSU Debt Fund", SchemeType: models.OpenEndedSchemes, MutualFundFamily: "Aditya Birla Sun Life Mutual Fund", Date: "14-Mar-2025", NetAssetValue: 352.1234},
	{SchemeCode: 120503, SchemeName: "Axis ELSS Tax Saver Fund", SchemeType: models.OpenEndedSchemes, MutualFundFamily: "Axis Mutual Fund", Date: "14-Mar-2025", NetAssetValue: 91.5},
}

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return New(config.RapidAPIConfig{
		URL:     srv.URL + "/latest",
		Key:     "test-key",
		Host:    "latest-mutual-fund-nav.p.rapidapi.com",
		Timeout: 2 * time.Second,
	}, logging.Discard())
}

func TestFetchAllOpenEnded_SendsFilterAndHeaders(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/latest", r.URL.Path)
		assert.Equal(t, models.OpenEndedSchemes, r.URL.Query().Get("Scheme_Type"))
		assert.Equal(t, "Debt", r.URL.Query().Get("Scheme_Category"))
		assert.Equal(t, "test-key", r.Header.Get("x-rapidapi-key"))
		assert.Equal(t, "latest-mutual-fund-nav.p.rapidapi.com", r.Header.Get("x-rapidapi-host"))
		json.NewEncoder(w).Encode(sampleRecords)
	})

	records, err := client.FetchAllOpenEnded(context.Background(), map[string]string{"Scheme_Category": "Debt"})
	require.NoError(t, err)
	assert.Len(t, records, 2)
	assert.Equal(t, 119551, records[0].SchemeCode)
}

func TestFetchAllOpenEnded_FixedFilterWins(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, models.OpenEndedSchemes, r.URL.Query().Get("Scheme_Type"))
		w.Write([]byte("[]"))
	})

	records, err := client.FetchAllOpenEnded(context.Background(), map[string]string{"Scheme_Type": "Close Ended Schemes"})
	require.NoError(t, err)
	assert.Empty(t, records)
}

func TestFetchByFamily(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Axis Mutual Fund", r.URL.Query().Get("Mutual_Fund_Family"))
		json.NewEncoder(w).Encode(sampleRecords[1:])
	})

	records, err := client.FetchByFamily(context.Background(), "Axis Mutual Fund")
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "Axis Mutual Fund", records[0].MutualFundFamily)
}

func TestFetchSchemeByCode(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(sampleRecords)
	})

	record, err := client.FetchSchemeByCode(context.Background(), 120503)
	require.NoError(t, err)
	require.NotNil(t, record)
	assert.Equal(t, 91.5, record.NetAssetValue)

	record, err = client.FetchSchemeByCode(context.Background(), 1)
	require.NoError(t, err)
	assert.Nil(t, record)
}

func TestFetch_Non200(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		w.Write([]byte(`{"message":"quota exceeded"}`))
	})

	_, err := client.FetchAllOpenEnded(context.Background(), nil)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrExternalAPI))

	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, http.StatusTooManyRequests, apiErr.StatusCode)
	assert.Contains(t, apiErr.Body, "quota exceeded")
	assert.False(t, apiErr.Network)
}

func TestFetch_InvalidBody(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"not":"a list"}`))
	})

	_, err := client.FetchAllOpenEnded(context.Background(), nil)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrInvalidResponseFormat))
	assert.False(t, errors.Is(err, ErrExternalAPI))
}

func TestFetch_NetworkFailure(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	client := New(config.RapidAPIConfig{URL: url, Timeout: time.Second}, logging.Discard())
	_, err := client.FetchAllOpenEnded(context.Background(), nil)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrExternalAPI))

	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr))
	assert.True(t, apiErr.Network)
}

func TestFetch_NoRetry(t *testing.T) {
	var calls int32
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusBadGateway)
	})

	_, err := client.FetchAllOpenEnded(context.Background(), nil)
	require.Error(t, err)
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
}

func TestFindScheme(t *testing.T) {
	assert.Nil(t, FindScheme(nil, 119551))
	found := FindScheme(sampleRecords, 119551)
	require.NotNil(t, found)
	assert.Equal(t, "Aditya Birla Sun Life Mutual Fund", found.MutualFundFamily)
}

func TestFetch_SharedRequestSurvivesCallerCancel(t *testing.T) {
	var calls int32
	entered := make(chan struct{}, 1)
	release := make(chan struct{})
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		entered <- struct{}{}
		<-release
		json.NewEncoder(w).Encode(sampleRecords)
	})

	ctxA, cancelA := context.WithCancel(context.Background())
	errA := make(chan error, 1)
	go func() {
		_, err := client.FetchAllOpenEnded(ctxA, nil)
		errA <- err
	}()
	<-entered

	type result struct {
		records []models.SchemeRecord
		err     error
	}
	resB := make(chan result, 1)
	go func() {
		records, err := client.FetchAllOpenEnded(context.Background(), nil)
		resB <- result{records, err}
	}()
	time.Sleep(50 * time.Millisecond)

	cancelA()
	select {
	case err := <-errA:
		require.Error(t, err)
		assert.True(t, errors.Is(err, context.Canceled))
	case <-time.After(time.Second):
		t.Fatal("cancelled caller did not return")
	}

	close(release)
	select {
	case res := <-resB:
		require.NoError(t, res.err)
		assert.Len(t, res.records, 2)
	case <-time.After(2 * time.Second):
		t.Fatal("second caller did not return")
	}
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
}
