package command

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingRunner struct {
	specs []Spec
}

func (r *recordingRunner) Run(_ context.Context, spec Spec) (Result, error) {
	r.specs = append(r.specs, spec)
	return Result{}, nil
}

func TestPrivilegedRunners(t *testing.T) {
	tests := []struct {
		mode     string
		wantName string
		wantArgs []string
	}{
		{"sudo", "sudo", []string{"-n", "/bin/sh", "-c", "id -u"}},
		{"applescript", "osascript", []string{"-e", `do shell script "id -u" with administrator privileges`}},
		{"none", "/bin/sh", []string{"-c", "id -u"}},
	}

	for _, tt := range tests {
		t.Run(tt.mode, func(t *testing.T) {
			rec := &recordingRunner{}
			_, err := NewPrivilegedRunner(tt.mode, rec).RunScript(context.Background(), "id -u")
			require.NoError(t, err)
			require.Len(t, rec.specs, 1)
			assert.Equal(t, tt.wantName, rec.specs[0].Name)
			assert.Equal(t, tt.wantArgs, rec.specs[0].Args)
		})
	}
}

func TestAppleScriptCommandEscapes(t *testing.T) {
	got := AppleScriptCommand(`mv "/a b" '/c' \x`)
	assert.Equal(t, `do shell script "mv \"/a b\" '/c' \\x" with administrator privileges`, got)
}

func TestQuote(t *testing.T) {
	assert.Equal(t, "''", Quote(""))
	assert.Equal(t, "'/Applications/My App.app'", Quote("/Applications/My App.app"))
	assert.Equal(t, `'it'\''s'`, Quote("it's"))
}

func TestShellRunnerRunsScript(t *testing.T) {
	res, err := ShellRunner{Runner: NewExecRunner()}.RunScript(context.Background(), "echo $((1+2))")
	require.NoError(t, err)
	assert.Equal(t, "3\n", res.Stdout)
}
