package system

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/arthur-debert/appsweep/pkg/command"
)

type fakeRunner struct {
	out   string
	err   error
	calls int
}

func (f *fakeRunner) Run(context.Context, command.Spec) (command.Result, error) {
	f.calls++
	return command.Result{Stdout: f.out}, f.err
}

func TestOSVersionIsCached(t *testing.T) {
	r := &fakeRunner{out: "14.4.1\n"}
	info := New(r)

	assert.Equal(t, "14.4.1", info.OSVersion(context.Background()))
	assert.Equal(t, "14.4.1", info.OSVersion(context.Background()))
	assert.Equal(t, 1, r.calls)
}

func TestSatisfiesMinimum(t *testing.T) {
	info := NewStatic("13.6")
	ctx := context.Background()

	assert.True(t, info.SatisfiesMinimum(ctx, ""))
	assert.True(t, info.SatisfiesMinimum(ctx, "13.6"))
	assert.True(t, info.SatisfiesMinimum(ctx, "12"))
	assert.False(t, info.SatisfiesMinimum(ctx, "14.0"))
	assert.True(t, NewStatic("").SatisfiesMinimum(ctx, "99"))
}

func TestCountry(t *testing.T) {
	t.Setenv("LC_ALL", "")
	t.Setenv("LC_MESSAGES", "")
	t.Setenv("LANG", "en_GB.UTF-8")

	assert.Equal(t, "DE", Country("de"))
	assert.Equal(t, "GB", Country(""))

	t.Setenv("LANG", "C")
	assert.Equal(t, DefaultCountry, Country(""))
}

func TestRegionFromLocale(t *testing.T) {
	tests := map[string]string{
		"en_GB.UTF-8": "GB",
		"pt-br":       "BR",
		"de_DE@euro":  "DE",
		"C":           "",
		"zh_Hans_CN":  "",
		"":            "",
		"en_12":       "",
	}
	for in, want := range tests {
		assert.Equal(t, want, regionFromLocale(in), in)
	}
}
