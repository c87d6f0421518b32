package service_test

import (
	"bytes"
	"context"
	"encoding/csv"
	"sync"
	"testing"

	"github.com/datasynth/datasynth/internal/apperr"
	"github.com/datasynth/datasynth/internal/cache"
	"github.com/datasynth/datasynth/internal/export"
	"github.com/datasynth/datasynth/internal/provider"
	"github.com/datasynth/datasynth/internal/ratelimit"
	"github.com/datasynth/datasynth/internal/schemagen"
	"github.com/datasynth/datasynth/internal/service"
	"github.com/datasynth/datasynth/internal/synth"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const healthcareDescription = "Healthcare patient records with blood types and departments"

var (
	bloodTypes  = []string{"A+", "A-", "B+", "B-", "AB+", "AB-", "O+", "O-"}
	departments = []string{"Cardiology", "Neurology", "Orthopedics", "Pediatrics", "Emergency"}
)

type staticClient string

func (c staticClient) GenerateText(context.Context, provider.Request) (string, error) {
	return string(c), nil
}

func newService(t *testing.T, client provider.Client, perMinute int) *service.Service {
	t.Helper()

	gov, err := ratelimit.New(perMinute, 100)
	require.NoError(t, err, "Setup: governor creation should not fail")

	schemas := schemagen.New(client, gov, schemagen.WithCache(cache.NewMemStore()))
	return service.New(schemas, synth.New(synth.WithSeed(7)), export.New())
}

func TestGenerateHealthcareEndToEnd(t *testing.T) {
	t.Parallel()

	client := staticClient(`{"domain": "healthcare", "fields": {"blood_type": {"faker_method": "healthcare"}, "department": {"faker_method": "healthcare"}}}`)
	s := newService(t, client, 3)

	res, err := s.Generate(context.Background(), healthcareDescription, 5)
	require.NoError(t, err)

	assert.Equal(t, schemagen.FromProvider, res.Schema.Source)
	assert.Equal(t, 5, res.Dataset.RowCount)
	require.Len(t, res.Dataset.Rows, 5)
	for i, row := range res.Dataset.Rows {
		assert.Contains(t, bloodTypes, row["blood_type"], "Row %d: unexpected blood type", i)
		assert.Contains(t, departments, row["department"], "Row %d: unexpected department", i)
	}

	assert.Equal(t, "healthcare_healthcare_patient_records_blood_types_departments.csv", res.Document.Filename)
	records, err := csv.NewReader(bytes.NewReader(res.Document.Content)).ReadAll()
	require.NoError(t, err, "Exported document should be valid CSV")
	require.Len(t, records, 6)
	assert.Equal(t, []string{"blood_type", "department"}, records[0])

	again, err := s.Generate(context.Background(), healthcareDescription, 5)
	require.NoError(t, err)
	assert.Equal(t, schemagen.FromCache, again.Schema.Source)
}

func TestGenerateWithDemoProvider(t *testing.T) {
	t.Parallel()

	s := newService(t, provider.NewDemo(), 3)

	res, err := s.Generate(context.Background(), "Employee directory with salaries", 20)
	require.NoError(t, err)

	assert.Equal(t, "business", res.Dataset.Domain)
	assert.Equal(t, []string{"employee_name", "job_title", "department", "salary", "hire_date", "email"}, res.Dataset.FieldNames)
	for _, row := range res.Dataset.Rows {
		salary, ok := row["salary"].(int)
		require.True(t, ok, "Salary should be an integer, got %T", row["salary"])
		assert.GreaterOrEqual(t, salary, 40000)
		assert.LessOrEqual(t, salary, 200000)
	}
}

func TestGenerateErrors(t *testing.T) {
	t.Parallel()

	tests := map[string]struct {
		description string
		rows        int
		client      provider.Client

		wantKind apperr.Kind
	}{
		"Validation error on zero rows":         {description: healthcareDescription, rows: 0, wantKind: apperr.KindValidation},
		"Validation error on too many rows":     {description: healthcareDescription, rows: 10001, wantKind: apperr.KindValidation},
		"Validation error on short description": {description: "short", rows: 5, wantKind: apperr.KindValidation},
		"Generation failure on unusable schema": {description: healthcareDescription, rows: 5, client: staticClient("no json here"), wantKind: apperr.KindGenerationFailure},
	}

	for name, tc := range tests {
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			if tc.client == nil {
				tc.client = provider.NewDemo()
			}
			s := newService(t, tc.client, 3)

			_, err := s.Generate(context.Background(), tc.description, tc.rows)
			require.Error(t, err)
			assert.Equal(t, tc.wantKind, apperr.KindOf(err))
		})
	}
}

// countingClient counts the calls reaching the provider.
type countingClient struct {
	mu    sync.Mutex
	calls int
}

func (c *countingClient) GenerateText(ctx context.Context, req provider.Request) (string, error) {
	c.mu.Lock()
	c.calls++
	c.mu.Unlock()
	return provider.NewDemo().GenerateText(ctx, req)
}

func TestGenerateRejectsRowCountBeforeAcquisition(t *testing.T) {
	t.Parallel()

	tests := map[string]struct {
		rows int
	}{
		"Zero rows":     {rows: 0},
		"Negative rows": {rows: -3},
		"Too many rows": {rows: 10001},
	}
	for name, tc := range tests {
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			gov, err := ratelimit.New(3, 100)
			require.NoError(t, err, "Setup: governor creation should not fail")
			client := &countingClient{}
			store := cache.NewMemStore()
			s := service.New(schemagen.New(client, gov, schemagen.WithCache(store)), synth.New(), export.New())

			_, err = s.Generate(context.Background(), healthcareDescription, tc.rows)
			require.Error(t, err)
			assert.Equal(t, apperr.KindValidation, apperr.KindOf(err))

			assert.Zero(t, client.calls, "Provider should not be called for an invalid row count")
			assert.Zero(t, gov.Usage().Today, "No quota should be spent for an invalid row count")
			keys, err := store.Keys()
			require.NoError(t, err)
			assert.Empty(t, keys, "Nothing should be cached for an invalid row count")
		})
	}
}
