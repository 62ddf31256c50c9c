package contxtapi

import (
	"context"
	"net/url"
	"testing"
	"time"

	"github.com/h2non/gock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jake-scott/contxt-cli/internal/pkg/auth"
	"github.com/jake-scott/contxt-cli/internal/pkg/models"
)

const testBase = "https://iot.example.com/v1"

func newTestAPI() *API {
	return NewAPI(testBase).
		WithTokenProvider(auth.Static("tok"), "client", "aud").
		WithRetries(3, time.Millisecond)
}

func TestGetSendsBearerAndDecodes(t *testing.T) {
	defer gock.Off()

	gock.New(testBase).
		Get("/feeds/7").
		MatchHeader("Authorization", "^Bearer tok$").
		MatchHeader("X-Request-ID", ".+").
		Reply(200).
		JSON(map[string]interface{}{"id": 7, "key": "meter-7", "facility_id": 12})

	feed, err := NewIoTService(newTestAPI()).GetFeedWithID(context.Background(), 7)
	require.NoError(t, err)
	assert.Equal(t, 7, feed.ID)
	assert.Equal(t, "meter-7", feed.Key)
	assert.Equal(t, 12, feed.FacilityID)
	assert.True(t, gock.IsDone())
}

func TestRetriesGatewayErrors(t *testing.T) {
	defer gock.Off()

	gock.New(testBase).Get("/feeds/1").Times(2).Reply(502)
	gock.New(testBase).Get("/feeds/1").Reply(200).JSON(map[string]interface{}{"id": 1})

	feed, err := NewIoTService(newTestAPI()).GetFeedWithID(context.Background(), 1)
	require.NoError(t, err)
	assert.Equal(t, 1, feed.ID)
	assert.True(t, gock.IsDone())
}

func TestRetriesAreBounded(t *testing.T) {
	defer gock.Off()

	gock.New(testBase).Get("/feeds/1").Times(4).Reply(500)

	_, err := NewIoTService(newTestAPI()).GetFeedWithID(context.Background(), 1)
	require.Error(t, err)
	assert.True(t, gock.IsDone())
}

func TestClientErrorIsPermanent(t *testing.T) {
	defer gock.Off()

	gock.New(testBase).
		Get("/feeds/404").
		Times(1).
		Reply(404).
		JSON(map[string]string{"message": "feed not found"})
	gock.New(testBase).Get("/feeds/404").Reply(200).JSON(map[string]interface{}{"id": 404})

	var out models.Feed
	err := newTestAPI().Get(context.Background(), "feeds/404", nil, &out)
	require.Error(t, err)

	httpErr, ok := err.(*HTTPError)
	require.True(t, ok, "expected *HTTPError, got %T", err)
	assert.Equal(t, 404, httpErr.StatusCode)
	assert.Equal(t, "feed not found", httpErr.Message)
	assert.Contains(t, err.Error(), "feed not found")

	// the second mock was never reached
	assert.False(t, gock.IsDone())
}

func TestRejectsNonJSONResponse(t *testing.T) {
	defer gock.Off()

	gock.New(testBase).
		Get("/feeds/2").
		Reply(200).
		SetHeader("Content-Type", "text/html").
		BodyString("<html></html>")

	var out models.Feed
	err := newTestAPI().Get(context.Background(), "feeds/2", nil, &out)
	assert.Error(t, err)
}

func TestPostEncodesBody(t *testing.T) {
	defer gock.Off()

	gock.New(testBase).
		Post("/groupings").
		MatchType("json").
		JSON(map[string]interface{}{"label": "Chillers"}).
		Reply(201).
		JSON(map[string]interface{}{"id": "g-1", "label": "Chillers"})

	var out models.FieldGrouping
	err := newTestAPI().Post(context.Background(), "/groupings", map[string]interface{}{"label": "Chillers"}, &out)
	require.NoError(t, err)
	assert.Equal(t, "g-1", out.ID)
}

func TestTokenProviderFailure(t *testing.T) {
	api := NewAPI(testBase).WithTokenProvider(auth.NewClientCredentials(nil), "client", "aud")

	err := api.Get(context.Background(), "feeds", nil, nil)
	assert.Error(t, err)
}

func TestURLBuilding(t *testing.T) {
	api := NewAPI("https://x.example.com/api")
	assert.Equal(t, "https://x.example.com/api/", api.BaseURL())
	assert.Equal(t, "https://x.example.com/api/a/b?k=v", api.url("/a/b", url.Values{"k": {"v"}}))
}

func TestPagerWalksAllPages(t *testing.T) {
	defer gock.Off()

	gock.New(testBase).
		Get("/providers").
		MatchParam("limit", "2").
		MatchParam("offset", "0").
		Reply(200).
		JSON(map[string]interface{}{
			"_metadata": map[string]int{"offset": 0, "totalRecords": 3},
			"records":   []map[string]interface{}{{"id": 1}, {"id": 2}},
		})
	gock.New(testBase).
		Get("/providers").
		MatchParam("limit", "2").
		MatchParam("offset", "2").
		Reply(200).
		JSON(map[string]interface{}{
			"_metadata": map[string]int{"offset": 2, "totalRecords": 3},
			"records":   []map[string]interface{}{{"id": 3}},
		})

	providers, err := NewRatesService(newTestAPI()).GetProviders(context.Background(), PageOptions{PageSize: 2})
	require.NoError(t, err)
	require.Len(t, providers, 3)
	assert.Equal(t, 3, providers[2].ID)
	assert.True(t, gock.IsDone())
}

func TestPagerStopsAtMaxRecords(t *testing.T) {
	defer gock.Off()

	gock.New(testBase).
		Get("/schedules").
		MatchParam("utility_provider_id", "9").
		MatchParam("limit", "1").
		MatchParam("offset", "0").
		Reply(200).
		JSON(map[string]interface{}{
			"_metadata": map[string]int{"offset": 0, "totalRecords": 50},
			"records":   []map[string]interface{}{{"id": 100, "label": "TOU-8"}},
		})

	schedules, err := NewRatesService(newTestAPI()).GetSchedulesForProvider(context.Background(), 9, PageOptions{PageSize: 10, MaxRecords: 1})
	require.NoError(t, err)
	require.Len(t, schedules, 1)
	assert.Equal(t, "TOU-8", schedules[0].Label)
}

func TestGetFeedWithKey(t *testing.T) {
	defer gock.Off()

	gock.New(testBase).
		Get("/feeds").
		MatchParam("key", "meter").
		Reply(200).
		JSON([]map[string]interface{}{{"id": 1, "key": "meter"}})
	gock.New(testBase).
		Get("/feeds").
		MatchParam("key", "dup").
		Reply(200).
		JSON([]map[string]interface{}{{"id": 1}, {"id": 2}})
	gock.New(testBase).
		Get("/feeds").
		MatchParam("key", "none").
		Reply(200).
		JSON([]map[string]interface{}{})

	svc := NewIoTService(newTestAPI())

	feed, err := svc.GetFeedWithKey(context.Background(), "meter")
	require.NoError(t, err)
	assert.Equal(t, 1, feed.ID)

	_, err = svc.GetFeedWithKey(context.Background(), "dup")
	assert.Error(t, err)

	feed, err = svc.GetFeedWithKey(context.Background(), "none")
	require.NoError(t, err)
	assert.Nil(t, feed)
}

func TestGetFieldData(t *testing.T) {
	defer gock.Off()

	start := time.Unix(1600000000, 0)
	gock.New(testBase).
		Get("/outputs/5/fields/temperature/data").
		MatchParam("timeStart", "1600000000").
		MatchParam("window", "3600").
		Reply(200).
		JSON(map[string]interface{}{
			"records": []map[string]interface{}{
				{"event_time": "2020-09-13T12:26:40.000Z", "value": "21.5"},
			},
		})

	svc := NewIoTService(newTestAPI())
	data, err := svc.GetFieldData(context.Background(), models.Field{OutputID: 5, FieldHumanName: "temperature"}, start, time.Time{}, models.WindowHourly, 0)
	require.NoError(t, err)
	require.Len(t, data.Records, 1)
	assert.Equal(t, "21.5", data.Records[0].Value)

	// an unaddressable field never reaches the network
	_, err = svc.GetFieldData(context.Background(), models.Field{}, start, time.Time{}, models.WindowRaw, 0)
	assert.Error(t, err)
}
