package appstore

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/arthur-debert/appsweep/pkg/errors"
	"github.com/arthur-debert/appsweep/pkg/testutil"
)

func TestParsePercent(t *testing.T) {
	tests := []struct {
		line string
		want float64
		ok   bool
	}{
		{"==> Downloading Pages  45.5%", 0.455, true},
		{"10% 20 % 30%", 0.30, true},
		{"100%", 1, true},
		{"no progress", 0, false},
		{"250%", 0, false},
	}
	for _, tt := range tests {
		t.Run(tt.line, func(t *testing.T) {
			got, ok := parsePercent(tt.line)
			assert.Equal(t, tt.ok, ok)
			assert.InDelta(t, tt.want, got, 1e-9)
		})
	}
}

func TestDownloaderReportsMonotonicProgress(t *testing.T) {
	r := testutil.NewRecordingRunner().On("mas upgrade 409201541", testutil.Response{
		Lines: []string{"==> Downloading Pages", "20%", "10%", "60%", "100%", "==> Installed Pages"},
	})

	var seen []float64
	err := NewDownloader(r, "").Update(context.Background(), "409201541", func(f float64) { seen = append(seen, f) })
	require.NoError(t, err)

	require.NotEmpty(t, seen)
	for i := 1; i < len(seen); i++ {
		assert.Greater(t, seen[i], seen[i-1])
	}
	assert.Equal(t, 1.0, seen[len(seen)-1])
}

func TestDownloaderFailure(t *testing.T) {
	r := testutil.NewRecordingRunner().On("mas", testutil.Response{Err: errors.New(errors.ErrCommandFailed, "not signed in")})
	err := NewDownloader(r, "mas").Update(context.Background(), "1", nil)
	assert.True(t, errors.IsErrorCode(err, errors.ErrUpdateFailed))

	err = NewDownloader(r, "mas").Update(context.Background(), "", nil)
	assert.True(t, errors.IsErrorCode(err, errors.ErrInvalidInput))
}

func TestArchiveFetcher(t *testing.T) {
	r := testutil.NewRecordingRunner()
	path, err := NewArchiveFetcher(r, "").Fetch(context.Background(), "com.example.game", "/tmp/work", nil)
	require.NoError(t, err)
	assert.Equal(t, "/tmp/work/com.example.game.ipa", path)
	assert.Equal(t, []string{
		"ipatool download --bundle-identifier com.example.game --output /tmp/work/com.example.game.ipa --non-interactive",
	}, r.Calls())
}
