package overrides

import (
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mapResolver(values map[string]string) Resolver {
	return func(ref Ref) (string, error) {
		v, ok := values[ref.String()]
		if !ok {
			return "", fmt.Errorf("no value for %s", ref)
		}
		return v, nil
	}
}

func TestRender(t *testing.T) {
	resolve := mapResolver(map[string]string{
		"${system}":               "3wrobot_kin",
		"${checkpoint:critic}":    "/data/critic_it_00011",
		"${env:USER}":             "ops",
		"${disallow_uncommitted}": "false",
	})

	tests := []struct {
		name string
		tmpl string
		want string
	}{
		{"plain text", "ic_stochastic", "ic_stochastic"},
		{"param", "ic_${system}_stochastic", "ic_3wrobot_kin_stochastic"},
		{"checkpoint", "${checkpoint:critic}", "/data/critic_it_00011"},
		{"env", "runs/${env:USER}", "runs/ops"},
		{"several", "${system}-${disallow_uncommitted}", "3wrobot_kin-false"},
		{"escape", "$${system}", "${system}"},
		{"escape beside a reference", "$${oc.env:HOME}/${system}", "${oc.env:HOME}/3wrobot_kin"},
		{"lone dollar", "cost$", "cost$"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Render(tt.tmpl, resolve)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestRenderEmptyValue(t *testing.T) {
	got, err := Render("ic_${system}_stochastic", mapResolver(map[string]string{"${system}": ""}))
	require.NoError(t, err)
	assert.Equal(t, "ic__stochastic", got)
	assert.NotContains(t, got, "${")
}

func TestRenderLeavesNoReferences(t *testing.T) {
	resolve := mapResolver(map[string]string{
		"${system}":            "pendulum",
		"${checkpoint:policy}": "",
		"${env:HOME}":          "/home/ops",
	})
	for _, tmpl := range []string{
		"${system}",
		"ic_${system}_stochastic",
		"${checkpoint:policy}",
		"${env:HOME}/${system}/${checkpoint:policy}",
		"$${system}x${system}",
	} {
		got, err := Render(tmpl, resolve)
		require.NoError(t, err)
		want := strings.Count(tmpl, "$${")
		assert.Equal(t, want, strings.Count(got, "${"), "%q rendered as %q", tmpl, got)
	}
}

func TestRenderErrors(t *testing.T) {
	resolve := mapResolver(nil)

	for _, tmpl := range []string{"ic_${system", "${}", "${secret:x}", "${a b}"} {
		_, err := Render(tmpl, resolve)
		assert.ErrorIs(t, err, ErrBadPlaceholder, tmpl)
	}

	sentinel := errors.New("boom")
	_, err := Render("${system}", func(Ref) (string, error) { return "", sentinel })
	assert.ErrorIs(t, err, sentinel)

	_, err = Render("${system}", resolve)
	assert.Error(t, err)
}

func TestPlaceholders(t *testing.T) {
	refs, err := Placeholders("ic_${system}_${checkpoint:policy}_$${literal}_${env:HOME}")
	require.NoError(t, err)
	assert.Equal(t, []Ref{
		{Scope: ScopeParam, Name: "system"},
		{Scope: ScopeCheckpoint, Name: "policy"},
		{Scope: ScopeEnv, Name: "HOME"},
	}, refs)

	refs, err = Placeholders("no references")
	require.NoError(t, err)
	assert.Empty(t, refs)
}
