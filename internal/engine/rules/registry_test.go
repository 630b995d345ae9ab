package rules_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
	"go.trai.ch/forge/internal/adapters/cas"
	"go.trai.ch/forge/internal/core/domain"
	"go.trai.ch/forge/internal/engine/rules"
)

func noopBody(context.Context, *rules.Context) (any, error) { return nil, nil }

func TestRegistry_RegisterAndLookup(t *testing.T) {
	reg := rules.NewRegistry()

	require.NoError(t, reg.Register(rules.Rule{Output: "Sources", Body: noopBody}))

	rule, err := reg.Lookup("Sources")
	require.NoError(t, err)
	require.Equal(t, "Sources", rule.Output)
}

func TestRegistry_DuplicateOutputRejected(t *testing.T) {
	reg := rules.NewRegistry()

	require.NoError(t, reg.Register(rules.Rule{Output: "Sources", Body: noopBody}))
	err := reg.Register(rules.Rule{Output: "Sources", Body: noopBody})
	require.ErrorIs(t, err, domain.ErrRuleExists)
}

func TestRegistry_LookupUnknownOutput(t *testing.T) {
	reg := rules.NewRegistry()

	_, err := reg.Lookup("Nowhere")
	require.ErrorIs(t, err, domain.ErrNoRule)
}

func TestRegistry_RejectsInvalidRules(t *testing.T) {
	reg := rules.NewRegistry()

	require.Error(t, reg.Register(rules.Rule{Body: noopBody}))
	require.Error(t, reg.Register(rules.Rule{Output: "NoBody"}))
}

func TestRegistry_OutputsSorted(t *testing.T) {
	reg := rules.NewRegistry()

	for _, output := range []string{"Zeta", "Alpha", "Mid"} {
		require.NoError(t, reg.Register(rules.Rule{Output: output, Body: noopBody}))
	}
	require.Equal(t, []string{"Alpha", "Mid", "Zeta"}, reg.Outputs())
}

// recordingRequester answers subrequests from a canned table and records the
// demanded keys.
type recordingRequester struct {
	values map[string]any
	keys   []domain.NodeKey
}

func (r *recordingRequester) Subrequest(_ context.Context, key domain.NodeKey) (any, error) {
	r.keys = append(r.keys, key)
	return r.values[key.ID()], nil
}

func TestContext_ReadFileRoutesThroughRequester(t *testing.T) {
	store, err := cas.NewStore(t.TempDir())
	require.NoError(t, err)

	digest, err := store.Put([]byte("package main\n"))
	require.NoError(t, err)

	req := &recordingRequester{values: map[string]any{"file:main.go": digest}}
	rc := rules.NewContext(req, store)

	content, err := rc.ReadFile(context.Background(), "main.go")
	require.NoError(t, err)
	require.Equal(t, "package main\n", string(content))
	require.Len(t, req.keys, 1)
	require.Equal(t, "FileContent", req.keys[0].Kind())
}

func TestContext_GetBuildsRuleKey(t *testing.T) {
	req := &recordingRequester{values: map[string]any{`rule:Compiled("lib",2)`: "ok"}}
	rc := rules.NewContext(req, nil)

	value, err := rc.Get(context.Background(), "Compiled", "lib", 2)
	require.NoError(t, err)
	require.Equal(t, "ok", value)
	require.Equal(t, `rule:Compiled("lib",2)`, req.keys[0].ID())
}

func TestContext_GetRejectsUnencodableParams(t *testing.T) {
	rc := rules.NewContext(&recordingRequester{}, nil)

	_, err := rc.Get(context.Background(), "Compiled", func() {})
	require.ErrorIs(t, err, domain.ErrParamEncoding)
}

func TestContext_ExecuteCollapsesOnFingerprint(t *testing.T) {
	req := &recordingRequester{values: map[string]any{}}
	rc := rules.NewContext(req, nil)

	a := &domain.ProcessRequest{Argv: []string{"cc", "main.c"}}
	b := &domain.ProcessRequest{Argv: []string{"cc", "main.c"}, Description: "compile main"}

	req.values["exec:"+a.Fingerprint()] = domain.ProcessResult{ExitCode: 0}

	_, err := rc.Execute(context.Background(), a)
	require.NoError(t, err)
	_, err = rc.Execute(context.Background(), b)
	require.NoError(t, err)

	require.Equal(t, req.keys[0].ID(), req.keys[1].ID())
}

func TestContext_ParamsAccess(t *testing.T) {
	rc := rules.NewContext(&recordingRequester{}, nil, "lib", 2)

	require.Equal(t, []any{"lib", 2}, rc.Params())
	require.Equal(t, "lib", rc.Param(0))
	require.Equal(t, 2, rc.Param(1))
	require.Nil(t, rc.Param(2))
	require.Nil(t, rc.Param(-1))
}

func TestContext_ListDir(t *testing.T) {
	req := &recordingRequester{values: map[string]any{"dir:src": []string{"a.go", "b.go"}}}
	rc := rules.NewContext(req, nil)

	names, err := rc.ListDir(context.Background(), "src")
	require.NoError(t, err)
	require.Equal(t, []string{"a.go", "b.go"}, names)
}
