package generator_test

import (
	"testing"
	"time"

	"github.com/datasynth/datasynth/internal/generator"
	"github.com/stretchr/testify/require"
)

func TestParseDate(t *testing.T) {
	t.Parallel()

	now := time.Date(2024, 7, 15, 10, 30, 0, 0, time.UTC)

	tests := map[string]struct {
		value any

		want    time.Time
		wantErr bool
	}{
		"Today":                 {value: "today", want: now},
		"Now":                   {value: "now", want: now},
		"Years ago":             {value: "-2y", want: now.AddDate(-2, 0, 0)},
		"Days ahead":            {value: "+30d", want: now.AddDate(0, 0, 30)},
		"Unsigned is ahead":     {value: "1w", want: now.AddDate(0, 0, 7)},
		"Compound offset":       {value: "-1y6M", want: now.AddDate(-1, -6, 0)},
		"Hours minutes seconds": {value: "+1h2m3s", want: now.Add(time.Hour + 2*time.Minute + 3*time.Second)},
		"ISO date":              {value: "2020-02-29", want: time.Date(2020, 2, 29, 0, 0, 0, 0, time.UTC)},
		"RFC 3339":              {value: "2020-02-29T08:00:00Z", want: time.Date(2020, 2, 29, 8, 0, 0, 0, time.UTC)},

		"Error on unknown unit": {value: "-2q", wantErr: true},
		"Error on garbage":      {value: "yesterday-ish", wantErr: true},
		"Error on number":       {value: 12.0, wantErr: true},
	}

	for name, tc := range tests {
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			got, err := generator.ParseDate(tc.value, now)
			if tc.wantErr {
				require.Error(t, err, "ParseDate should return an error")
				return
			}
			require.NoError(t, err, "ParseDate should not return an error")
			require.True(t, tc.want.Equal(got), "ParseDate should return %v, got %v", tc.want, got)
		})
	}
}

func TestMethodName(t *testing.T) {
	t.Parallel()

	tests := map[string]struct {
		in, want string
	}{
		"Single word":       {in: "company", want: "Company"},
		"Snake case":        {in: "hacker_phrase", want: "HackerPhrase"},
		"Initialism":        {in: "ipv4_address", want: "IPv4Address"},
		"Only initialism":   {in: "uuid", want: "UUID"},
		"Camel case kept":   {in: "firstName", want: "FirstName"},
		"Repeated separator": {in: "job__title", want: "JobTitle"},
		"Empty":             {in: "", want: ""},
	}

	for name, tc := range tests {
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			require.Equal(t, tc.want, generator.MethodName(tc.in), "MethodName should convert to the Go spelling")
		})
	}
}

func TestTruncateText(t *testing.T) {
	t.Parallel()

	tests := map[string]struct {
		in  string
		max int

		want string
	}{
		"Short text is kept":       {in: "Lorem ipsum.", max: 20, want: "Lorem ipsum."},
		"Cut on word boundary":     {in: "Lorem ipsum dolor sit amet.", max: 15, want: "Lorem ipsum."},
		"Trailing comma removed":   {in: "Lorem, ipsum dolor.", max: 10, want: "Lorem."},
		"Single long word is cut":  {in: "Loremipsumdolor", max: 6, want: "Lorem."},
	}

	for name, tc := range tests {
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			got := generator.TruncateText(tc.in, tc.max)
			require.Equal(t, tc.want, got, "TruncateText should cut the text")
			require.LessOrEqual(t, len(got), tc.max, "TruncateText should respect the bound")
		})
	}
}
