package api

import (
	"context"
	"net/http"
	"net/url"
	"testing"
	"time"

	billinghttp "github.com/saasbill/billing/http"
	"github.com/stretchr/testify/require"
)

func TestListParams_Values(t *testing.T) {
	t.Parallel()

	require.Empty(t, ListParams{}.Values())

	start := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	p := ListParams{
		Page:     3,
		PageSize: 50,
		Query:    "acme",
		Ordering: []string{"-created", "name"},
		StartAt:  start,
		EndsAt:   start.AddDate(0, 1, 0),
		Timezone: "Europe/Paris",
	}
	require.Equal(t, url.Values{
		"page":      {"3"},
		"page_size": {"50"},
		"q":         {"acme"},
		"o":         {"-created", "name"},
		"start_at":  {"2024-03-01T00:00:00Z"},
		"ends_at":   {"2024-04-01T00:00:00Z"},
		"timezone":  {"Europe/Paris"},
	}, p.Values())
}

func TestListParams_ToggleOrdering(t *testing.T) {
	t.Parallel()

	var p ListParams
	p.ToggleOrdering("name")
	require.Equal(t, []string{"name"}, p.Ordering)

	p.ToggleOrdering("name")
	require.Equal(t, []string{"-name"}, p.Ordering)

	p.ToggleOrdering("created")
	require.Equal(t, []string{"created", "-name"}, p.Ordering)

	p.ToggleOrdering("-name")
	require.Equal(t, []string{"name", "created"}, p.Ordering)

	p.ToggleOrdering("name")
	require.Equal(t, []string{"-name", "created"}, p.Ordering)
}

func TestClientList(t *testing.T) {
	t.Parallel()

	ts := billinghttp.NewTestServer(t, map[string]http.Handler{
		"/invoices/": billinghttp.JSONHandler(http.StatusOK, map[string]interface{}{
			"count":    3,
			"next":     "http://127.0.0.1/api/invoices/?page=2",
			"previous": nil,
			"results":  []interface{}{map[string]interface{}{"id": 1}, map[string]interface{}{"id": 2}},
		}),
	})
	client := testClient(t, ts)

	page, err := client.List(context.Background(), "/invoices/", ListParams{PageSize: 2, Ordering: []string{"-due"}})
	require.NoError(t, err)
	require.Equal(t, 3, page.Count)
	require.True(t, page.HasNext())
	require.Empty(t, page.Previous)
	require.Len(t, page.Results, 2)

	last, _ := ts.Recorder.Last()
	require.Equal(t, url.Values{"page_size": {"2"}, "o": {"-due"}}, last.Query)

	var none *Collection
	require.False(t, none.HasNext())
}

func TestClientList_error(t *testing.T) {
	t.Parallel()

	ts := billinghttp.NewTestServer(t, nil)
	client := testClient(t, ts)

	list := &MessageList{}
	client.SetNotifier(list)

	page, err := client.List(context.Background(), "/missing/", ListParams{})
	require.Error(t, err)
	require.Nil(t, page)
	require.Equal(t, []string{"Not found."}, list.Messages())
}
