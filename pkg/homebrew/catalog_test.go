package homebrew

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/arthur-debert/appsweep/pkg/testutil"
)

func catalogBody() string {
	// padded past the minimum cache size
	desc := strings.Repeat("x", 1200)
	return `[{"token":"firefox","name":["Mozilla Firefox"],"version":"121.0","desc":"` + desc + `"},{"token":"slack","version":"4.36.140"}]`
}

func TestCatalogFetchesThenCaches(t *testing.T) {
	srv := testutil.NewJSONServer(t, map[string]string{"/api/cask.json": catalogBody()})
	fs := afero.NewMemMapFs()
	c := NewCatalog(srv.Fetch(), fs, srv.URL+"/api", "/cache/appsweep/cask.json")

	casks, err := c.Casks(context.Background(), false)
	require.NoError(t, err)
	require.Len(t, casks, 2)
	assert.Equal(t, "Mozilla Firefox", casks[0].DisplayName())
	assert.Equal(t, "slack", casks[1].DisplayName())

	_, err = c.Casks(context.Background(), false)
	require.NoError(t, err)
	assert.Equal(t, 1, srv.Hits("/api/cask.json"))

	_, err = c.Casks(context.Background(), true)
	require.NoError(t, err)
	assert.Equal(t, 2, srv.Hits("/api/cask.json"))
}

func TestCatalogRefetchesStaleCache(t *testing.T) {
	srv := testutil.NewJSONServer(t, map[string]string{"/api/cask.json": catalogBody()})
	fs := afero.NewMemMapFs()
	c := NewCatalog(srv.Fetch(), fs, srv.URL+"/api", "/cache/cask.json")

	_, err := c.Casks(context.Background(), false)
	require.NoError(t, err)

	c.now = func() time.Time { return time.Now().Add(2 * CatalogMaxAge) }
	_, err = c.Casks(context.Background(), false)
	require.NoError(t, err)
	assert.Equal(t, 2, srv.Hits("/api/cask.json"))
}

func TestCaskAppArtifactsWithTarget(t *testing.T) {
	var c Cask
	require.NoError(t, jsonUnmarshal(`{"token":"x","artifacts":[{"app":["Foo.app",{"target":"Renamed.app"}]},{"binary":["foo"]}]}`, &c))
	assert.Equal(t, []string{"Foo.app", "Renamed.app"}, c.AppArtifacts())
}
