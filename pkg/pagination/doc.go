// Package pagination fetches every page of a paginated analytics resource and
// flattens the pages into one ordered collection.
//
// The API answers with a JSON body holding an "items" array and an optional
// "pagination.next" link. The fetcher follows that link until it is absent:
//
//	fetcher := pagination.NewFetcher(apiClient, pagination.DefaultConfig())
//	result, err := fetcher.FetchAll(ctx, pagination.RequestSpec{
//		Endpoint: "https://api.exorde.io/volume/history",
//		Filters: pagination.Filters{
//			StartDate: "2024-07-01T00:00:00.000Z",
//			EndDate:   "2024-08-01T00:00:00.000Z",
//			Interval:  60,
//			Limit:     1000,
//			Keywords:  "msft,$msft,microsoft",
//			Condition: pagination.ConditionOr,
//		},
//	})
//
// Filters go out with the first request only; the "next" link already carries
// them. Pages are fetched one at a time. A failed page stops the loop and the
// items gathered so far are returned together with the error.
//
// CollectKeywordGroups runs FetchAll once per keyword group, and once per
// endpoint when several endpoints are given, strictly in input order.
package pagination
