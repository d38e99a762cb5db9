package pagination

import (
	"context"
	"encoding/json"
	"net/http"
	"testing"

	"github.com/Sternrassler/exorde-client/internal/testutil"
	"github.com/Sternrassler/exorde-client/pkg/client"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sentimentPath = "/v1/sentiment/history"

func TestCollectKeywordGroups_SingleGroup(t *testing.T) {
	mock := newMockAPI(t)
	mock.SetResponse(historyPath, testutil.NewHealthyResponse(
		`{"items": [{"volume": 4}, {"volume": 7}]}`))
	f := newTestFetcher(t, DefaultConfig())

	collection, err := f.CollectKeywordGroups(context.Background(), GroupRequest{
		Spec:      testSpec(mock.Endpoint(historyPath)),
		Groups:    []KeywordGroup{{Label: "btc", Keywords: []string{"$btc", "bitcoin"}}},
		Condition: ConditionOr,
	})
	require.NoError(t, err)

	require.Len(t, collection.Groups, 1)
	items := collection.Groups["btc"]
	require.Len(t, items, 2)
	assert.JSONEq(t, `{"volume": 4}`, string(items[0]))
	assert.JSONEq(t, `{"volume": 7}`, string(items[1]))
	assert.Nil(t, collection.ByEndpoint)
	assert.Empty(t, collection.Text)

	query := mock.Calls()[0].Query
	assert.Equal(t, "$btc,bitcoin", query.Get(ParamKeywords))
	assert.Equal(t, "or", query.Get(ParamKeywordsCondition))
}

func TestCollectKeywordGroups_GroupsInInputOrder(t *testing.T) {
	mock := newMockAPI(t)
	mock.SetPages(historyPath, makePages(1, 1)...)
	f := newTestFetcher(t, DefaultConfig())

	collection, err := f.CollectKeywordGroups(context.Background(), GroupRequest{
		Spec: testSpec(mock.Endpoint(historyPath)),
		Groups: []KeywordGroup{
			{Label: "eth", Keywords: []string{"ethereum"}},
			{Label: "btc", Keywords: []string{"bitcoin", "btc"}},
		},
		Condition: ConditionAnd,
	})
	require.NoError(t, err)
	assert.Len(t, collection.Groups["eth"], 2)
	assert.Len(t, collection.Groups["btc"], 2)

	var keywords []string
	for _, call := range mock.Calls() {
		if kw := call.Query.Get(ParamKeywords); kw != "" {
			keywords = append(keywords, kw)
			assert.Equal(t, "and", call.Query.Get(ParamKeywordsCondition))
		}
	}
	assert.Equal(t, []string{"ethereum", "bitcoin,btc"}, keywords)
}

func TestCollectKeywordGroups_TwoEndpointsSequential(t *testing.T) {
	mock := newMockAPI(t)
	mock.SetPages(historyPath, makePages(1, 2)...)
	mock.SetPages(sentimentPath, makePages(2)...)
	f := newTestFetcher(t, DefaultConfig())

	volume := mock.Endpoint(historyPath)
	sentiment := mock.Endpoint(sentimentPath)

	collection, err := f.CollectKeywordGroups(context.Background(), GroupRequest{
		Endpoints: []string{volume, sentiment},
		Spec:      testSpec(""),
		Groups:    []KeywordGroup{{Label: "btc", Keywords: []string{"$btc", "bitcoin"}}},
		Condition: ConditionOr,
	})
	require.NoError(t, err)

	assert.Nil(t, collection.Groups)
	require.Len(t, collection.ByEndpoint, 2)
	require.Len(t, collection.ByEndpoint[volume], 1)
	require.Len(t, collection.ByEndpoint[sentiment], 1)
	assert.Len(t, collection.ByEndpoint[volume]["btc"], 3)
	assert.Len(t, collection.ByEndpoint[sentiment]["btc"], 2)

	assert.Equal(t, []string{historyPath, historyPath, sentimentPath}, mock.CallPaths())
}

func TestCollectKeywordGroups_FailedGroupDoesNotStopSiblings(t *testing.T) {
	mock := newMockAPI(t)
	mock.SetPages(historyPath, makePages(2)...)
	mock.SetPagesWithFailure(sentimentPath, 1, testutil.NewServerErrorResponse(), makePages(1, 1)...)
	f := newTestFetcher(t, DefaultConfig())

	volume := mock.Endpoint(historyPath)
	sentiment := mock.Endpoint(sentimentPath)

	collection, err := f.CollectKeywordGroups(context.Background(), GroupRequest{
		Endpoints: []string{sentiment, volume},
		Spec:      testSpec(""),
		Groups: []KeywordGroup{
			{Label: "btc", Keywords: []string{"bitcoin"}},
			{Label: "eth", Keywords: []string{"ethereum"}},
		},
		Condition: ConditionOr,
	})
	require.Error(t, err)

	apiErr, ok := client.IsAPIError(err)
	require.True(t, ok)
	assert.Equal(t, http.StatusInternalServerError, apiErr.StatusCode)
	assert.Contains(t, err.Error(), "[btc]")
	assert.Contains(t, err.Error(), "[eth]")

	// Partial items of the failed groups are kept.
	assert.Len(t, collection.ByEndpoint[sentiment]["btc"], 1)
	assert.Len(t, collection.ByEndpoint[sentiment]["eth"], 1)
	assert.Len(t, collection.ByEndpoint[volume]["btc"], 2)
	assert.Len(t, collection.ByEndpoint[volume]["eth"], 2)

	assert.Equal(t, []string{
		sentimentPath, sentimentPath,
		sentimentPath, sentimentPath,
		historyPath, historyPath,
	}, mock.CallPaths())
}

func TestCollectKeywordGroups_TextRoundTrip(t *testing.T) {
	mock := newMockAPI(t)
	mock.SetPages(historyPath, makePages(2, 1)...)
	mock.SetPages(sentimentPath, makePages(1)...)
	f := newTestFetcher(t, DefaultConfig())

	tests := []struct {
		name      string
		endpoints []string
	}{
		{"single endpoint", nil},
		{"two endpoints", []string{mock.Endpoint(historyPath), mock.Endpoint(sentimentPath)}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := GroupRequest{
				Endpoints: tt.endpoints,
				Spec:      testSpec(mock.Endpoint(historyPath)),
				Groups: []KeywordGroup{
					{Label: "btc", Keywords: []string{"$btc", "bitcoin"}},
					{Label: "sol", Keywords: []string{"solana"}},
				},
				Condition: ConditionOr,
			}

			structured, err := f.CollectKeywordGroups(context.Background(), req)
			require.NoError(t, err)

			req.Format = FormatText
			text, err := f.CollectKeywordGroups(context.Background(), req)
			require.NoError(t, err)
			require.NotEmpty(t, text.Text)
			assert.Contains(t, text.Text, "\n    \"", "text is indented with four spaces")

			var decoded any
			require.NoError(t, json.Unmarshal([]byte(text.Text), &decoded))

			raw, err := json.Marshal(structured.Value())
			require.NoError(t, err)
			var want any
			require.NoError(t, json.Unmarshal(raw, &want))

			assert.Equal(t, want, decoded)
		})
	}
}

func TestCollectKeywordGroups_InvalidArgumentsMakeNoRequest(t *testing.T) {
	mock := newMockAPI(t)
	mock.SetPages(historyPath, makePages(1)...)
	f := newTestFetcher(t, DefaultConfig())
	endpoint := mock.Endpoint(historyPath)

	valid := func() GroupRequest {
		return GroupRequest{
			Spec:      testSpec(endpoint),
			Groups:    []KeywordGroup{{Label: "btc", Keywords: []string{"bitcoin"}}},
			Condition: ConditionOr,
			Format:    FormatStructured,
		}
	}

	tests := []struct {
		name   string
		mutate func(*GroupRequest)
	}{
		{"condition xor", func(r *GroupRequest) { r.Condition = "xor" }},
		{"condition upper case", func(r *GroupRequest) { r.Condition = "OR" }},
		{"empty condition", func(r *GroupRequest) { r.Condition = "" }},
		{"unknown format", func(r *GroupRequest) { r.Format = "yaml" }},
		{"no groups", func(r *GroupRequest) { r.Groups = nil }},
		{"empty label", func(r *GroupRequest) { r.Groups = []KeywordGroup{{Keywords: []string{"x"}}} }},
		{"duplicate label", func(r *GroupRequest) {
			r.Groups = append(r.Groups, KeywordGroup{Label: "btc", Keywords: []string{"btc"}})
		}},
		{"group without keywords", func(r *GroupRequest) { r.Groups = []KeywordGroup{{Label: "btc"}} }},
		{"blank keyword", func(r *GroupRequest) { r.Groups[0].Keywords = []string{"bitcoin", " "} }},
		{"bad shared filters", func(r *GroupRequest) { r.Spec.Filters.Interval = 0 }},
		{"bad second endpoint", func(r *GroupRequest) { r.Endpoints = []string{endpoint, "not a url"} }},
		{"duplicate endpoint", func(r *GroupRequest) { r.Endpoints = []string{endpoint, endpoint} }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := valid()
			tt.mutate(&req)

			collection, err := f.CollectKeywordGroups(context.Background(), req)
			assert.ErrorIs(t, err, ErrInvalidArgument)
			assert.Nil(t, collection)
		})
	}

	assert.Equal(t, 0, mock.GetRequestCount())
}

func TestFetchKeywordGroups(t *testing.T) {
	mock := newMockAPI(t)
	mock.SetPages(historyPath, makePages(1, 1)...)
	f := newTestFetcher(t, DefaultConfig())

	results, err := f.FetchKeywordGroups(context.Background(), testSpec(mock.Endpoint(historyPath)),
		[]KeywordGroup{{Label: "btc", Keywords: []string{"$btc", "bitcoin"}}}, ConditionAnd)
	require.NoError(t, err)
	assert.Equal(t, []int{0, 1}, ids(t, results["btc"]))

	_, err = f.FetchKeywordGroups(context.Background(), testSpec(mock.Endpoint(historyPath)),
		[]KeywordGroup{{Label: "btc", Keywords: []string{"bitcoin"}}}, "nand")
	assert.ErrorIs(t, err, ErrInvalidArgument)
	assert.Equal(t, 2, mock.GetRequestCount())
}

func TestRender(t *testing.T) {
	text, err := Render(GroupResults{"btc": {Record(`{"a":1}`)}})
	require.NoError(t, err)
	assert.Equal(t, "{\n    \"btc\": [\n        {\n            \"a\": 1\n        }\n    ]\n}", text)
}
