package homebrew

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/arthur-debert/appsweep/pkg/command"
	"github.com/arthur-debert/appsweep/pkg/errors"
	"github.com/arthur-debert/appsweep/pkg/testutil"
)

func jsonUnmarshal(s string, v interface{}) error {
	return json.Unmarshal([]byte(s), v)
}

func TestBrewUpgrade(t *testing.T) {
	r := testutil.NewRecordingRunner().
		On("/opt/homebrew/bin/brew upgrade --cask firefox", testutil.Response{Lines: []string{"==> Upgrading firefox"}})
	b := NewBrew(r, "", "/opt/homebrew")

	var lines []string
	require.NoError(t, b.Upgrade(context.Background(), "firefox", true, func(l string) { lines = append(lines, l) }))
	require.NoError(t, b.Upgrade(context.Background(), "wget", false, nil))
	require.NoError(t, b.Adopt(context.Background(), "slack", nil))

	assert.Equal(t, []string{
		"/opt/homebrew/bin/brew upgrade --cask firefox",
		"/opt/homebrew/bin/brew upgrade wget",
		"/opt/homebrew/bin/brew install --cask --adopt slack",
	}, r.Calls())
	assert.Equal(t, []string{"==> Upgrading firefox"}, lines)
	assert.Contains(t, r.Specs()[0].Env, "HOMEBREW_NO_AUTO_UPDATE=1")
}

func TestBrewUpgradeFailure(t *testing.T) {
	r := &testutil.MockRunner{}
	r.On("Run", mock.Anything, mock.MatchedBy(func(s command.Spec) bool { return s.Name == "/usr/local/bin/brew" })).
		Return(command.Result{Stderr: "Error: no such cask"}, errors.New(errors.ErrCommandFailed, "brew failed"))

	err := NewBrew(r, "/usr/local/bin/brew", "").Upgrade(context.Background(), "nope", true, nil)
	assert.True(t, errors.IsErrorCode(err, errors.ErrUpdateFailed))
	assert.True(t, errors.IsErrorCode(err, errors.ErrCommandFailed))
	r.AssertExpectations(t)
}

func TestMaintenanceCommand(t *testing.T) {
	assert.Equal(t,
		"'/opt/homebrew/bin/brew' update && '/opt/homebrew/bin/brew' upgrade && '/opt/homebrew/bin/brew' cleanup",
		MaintenanceCommand("/opt/homebrew/bin/brew"))
}
