package pagination

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodePage(t *testing.T) {
	tests := []struct {
		name      string
		body      string
		wantItems int
		wantNext  string
		wantErr   bool
	}{
		{
			name:      "items and next",
			body:      `{"items": [{"a": 1}, {"a": 2}], "pagination": {"next": "https://api.exorde.io/v1/volume/history?cursor=abc"}}`,
			wantItems: 2,
			wantNext:  "https://api.exorde.io/v1/volume/history?cursor=abc",
		},
		{name: "no pagination", body: `{"items": [{"a": 1}]}`, wantItems: 1},
		{name: "null pagination", body: `{"items": [], "pagination": null}`},
		{name: "pagination without next", body: `{"items": [{}], "pagination": {"total": 4}}`, wantItems: 1},
		{name: "null next", body: `{"items": [{}], "pagination": {"next": null}}`, wantItems: 1},
		{name: "empty next", body: `{"items": [{}], "pagination": {"next": ""}}`, wantItems: 1},
		{name: "missing items", body: `{"pagination": {"next": "x"}}`, wantErr: true},
		{name: "null items", body: `{"items": null}`, wantErr: true},
		{name: "items not an array", body: `{"items": {"a": 1}}`, wantErr: true},
		{name: "pagination not an object", body: `{"items": [], "pagination": "next"}`, wantErr: true},
		{name: "next not a string", body: `{"items": [], "pagination": {"next": 2}}`, wantErr: true},
		{name: "array body", body: `[{"a": 1}]`, wantErr: true},
		{name: "invalid json", body: `{"items": [`, wantErr: true},
		{name: "empty body", body: ``, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			page, err := DecodePage([]byte(tt.body))
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrDecode)
				return
			}
			require.NoError(t, err)
			assert.Len(t, page.Items, tt.wantItems)
			assert.Equal(t, tt.wantNext, page.Next)
			assert.Equal(t, tt.wantNext != "", page.HasNext)
		})
	}
}

func TestDecodePage_RecordsPassThrough(t *testing.T) {
	page, err := DecodePage([]byte(`{"items": [{"endDate": "2024-07-01T00:15:00.000Z", "nested": {"x": [1, 2]}, "s": "é"}]}`))
	require.NoError(t, err)
	require.Len(t, page.Items, 1)
	assert.JSONEq(t, `{"endDate": "2024-07-01T00:15:00.000Z", "nested": {"x": [1, 2]}, "s": "é"}`, string(page.Items[0]))
}

func TestRecordTime(t *testing.T) {
	tests := []struct {
		name   string
		record string
		want   time.Time
		wantOK bool
	}{
		{
			name:   "milliseconds",
			record: `{"endDate": "2024-07-01T00:15:00.000Z"}`,
			want:   time.Date(2024, 7, 1, 0, 15, 0, 0, time.UTC),
			wantOK: true,
		},
		{
			name:   "microseconds",
			record: `{"endDate": "2024-07-01T00:15:00.123456Z"}`,
			want:   time.Date(2024, 7, 1, 0, 15, 0, 123456000, time.UTC),
			wantOK: true,
		},
		{name: "missing field", record: `{"startDate": "2024-07-01T00:15:00.000Z"}`},
		{name: "not a string", record: `{"endDate": 17}`},
		{name: "not a timestamp", record: `{"endDate": "soon"}`},
		{name: "invalid record", record: `{`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := RecordTime(Record(tt.record), EndDateField)
			assert.Equal(t, tt.wantOK, ok)
			if tt.wantOK {
				assert.True(t, tt.want.Equal(got), "RecordTime() = %v, want %v", got, tt.want)
			}
		})
	}
}
