package postgres

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/ajitpratap0/facilityfeed/pkg/errors"
)

func TestBuildQuery(t *testing.T) {
	tests := []struct {
		name    string
		table   string
		query   string
		want    string
		wantErr bool
	}{
		{
			name: "default table",
			want: "SELECT id, name, phone, url, latitude, longitude, country, locality, region, postal_code, street_address " +
				`FROM "facility" ORDER BY id`,
		},
		{
			name:  "schema qualified",
			table: "feeds.facility",
			want: "SELECT id, name, phone, url, latitude, longitude, country, locality, region, postal_code, street_address " +
				`FROM "feeds"."facility" ORDER BY id`,
		},
		{
			name:  "quoted identifier",
			table: `odd"name`,
			want: "SELECT id, name, phone, url, latitude, longitude, country, locality, region, postal_code, street_address " +
				`FROM "odd""name" ORDER BY id`,
		},
		{
			name:  "custom query",
			table: "ignored",
			query: "  SELECT * FROM facility_view ORDER BY id; ",
			want:  "SELECT * FROM facility_view ORDER BY id",
		},
		{name: "too many parts", table: "a.b.c", wantErr: true},
		{name: "empty part", table: "a.", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := BuildQuery(tt.table, tt.query)
			if tt.wantErr {
				require.Error(t, err)
				assert.True(t, errors.IsType(err, errors.ErrorTypeConfig))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestNewRejectsBadURL(t *testing.T) {
	_, err := New(context.Background(), Config{URL: "postgres://%zz"}, zaptest.NewLogger(t))
	require.Error(t, err)
	assert.True(t, errors.IsType(err, errors.ErrorTypeConfig))
}
