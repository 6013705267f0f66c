package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tidwall/gjson"

	"github.com/dshills/varlens/internal/memory"
)

const metadata = "testdata/list.toml"

// writeSnapshot saves a stopped list program: head -> 1 -> 2 -> 3, with
// main's cursor on the second node.
func writeSnapshot(t *testing.T) string {
	t.Helper()

	snap := memory.NewSnapshot()
	for _, r := range []struct {
		base memory.Address
		kind memory.RegionKind
	}{
		{0x1000, memory.RegionGlobal},
		{0x10000, memory.RegionHeap},
		{0x7f000, memory.RegionStack},
	} {
		_, err := snap.Map(r.base, 0x1000, r.kind)
		require.NoError(t, err)
	}

	require.NoError(t, snap.WriteInt(0x1000, 4, 3))
	require.NoError(t, snap.WritePointer(0x1008, 0x10000))
	for i, addr := range []memory.Address{0x10000, 0x10010, 0x10020} {
		require.NoError(t, snap.WriteInt(addr, 4, int64(i+1)))
		if i < 2 {
			require.NoError(t, snap.WritePointer(addr+8, addr+0x10))
		}
	}
	require.NoError(t, snap.Write(0x1200, []byte("hi\x00")))
	require.NoError(t, snap.WritePointer(0x1010, 0x1200))

	require.NoError(t, snap.WritePointer(0x7f800-8, 0x10010))
	require.NoError(t, snap.WriteInt(0x7f800-12, 4, 2))

	path := filepath.Join(t.TempDir(), "list.snap")
	require.NoError(t, memory.SaveSnapshotFile(path, &memory.SnapshotFile{
		Snapshot: snap,
		Frames:   []memory.StackFrame{{Function: "main", Base: 0x7f800}},
	}))
	return path
}

// varlens runs the CLI against the list program with an isolated
// configuration and returns stdout.
func varlens(t *testing.T, args ...string) (string, error) {
	t.Helper()

	abs, err := filepath.Abs(metadata)
	require.NoError(t, err)

	dir := t.TempDir()
	t.Setenv("HOME", dir)
	t.Setenv("XDG_CONFIG_HOME", filepath.Join(dir, ".config"))
	wd, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { _ = os.Chdir(wd) })
	full := append([]string{"--metadata", abs, "--snapshot", writeSnapshot(t)}, args...)

	var stdout, stderr bytes.Buffer
	cmd := newRootCmd(&stdout, &stderr)
	cmd.SetArgs(full)
	err = cmd.Execute()
	return stdout.String(), err
}

func lines(s string) []string {
	return strings.Split(strings.TrimRight(s, "\n"), "\n")
}

func TestGlobals(t *testing.T) {
	out, err := varlens(t, "globals")
	require.NoError(t, err)
	assert.Equal(t, []string{
		"count = 3",
		"head = 0x10000 -> {data = 1, next = 0x10010 -> {data = 2, next = 0x10020 -> {data = 3, next = 0x0 <NullPointer>}}}",
		`message = 0x1200 "hi"`,
	}, lines(out))
}

func TestInspect(t *testing.T) {
	out, err := varlens(t, "inspect", "head->next->data", "count")
	require.NoError(t, err)
	assert.Equal(t, []string{"head->next->data = 2", "count = 3"}, lines(out))

	out, err = varlens(t, "inspect", "--address", "0x10020", "--type", "Node")
	require.NoError(t, err)
	assert.Contains(t, out, "{data = 3, next = 0x0 <NullPointer>}")

	out, err = varlens(t, "--format", "json", "inspect", "count")
	require.NoError(t, err)
	assert.Equal(t, "3", gjson.Get(out, "value").String())
	assert.Equal(t, "Global", gjson.Get(out, "scope").String())

	_, err = varlens(t, "inspect", "head->missing")
	assert.Error(t, err)
	_, err = varlens(t, "inspect")
	assert.Error(t, err)
}

func TestLocals(t *testing.T) {
	out, err := varlens(t, "locals")
	require.NoError(t, err)
	assert.Equal(t, []string{
		"cursor = 0x10010 -> {data = 2, next = 0x10020 -> {data = 3, next = 0x0 <NullPointer>}}",
		"n = 2",
	}, lines(out))

	out, err = varlens(t, "--frame", "main", "inspect", "cursor->data")
	require.NoError(t, err)
	assert.Equal(t, "cursor->data = 2\n", out)

	_, err = varlens(t, "--frame", "other", "locals")
	assert.ErrorContains(t, err, "no active frame for other")
}

func TestWatch(t *testing.T) {
	out, err := varlens(t, "--frame", "main@0x7f800", "watch", "n", "nope", "head->data")
	require.NoError(t, err)

	got := lines(out)
	require.Len(t, got, 3)
	assert.Equal(t, "#0 n = 2", got[0])
	assert.True(t, strings.HasPrefix(got[1], "#1 nope: error: "), got[1])
	assert.Equal(t, "#2 head->data = 1", got[2])
}

func TestLimitFlags(t *testing.T) {
	out, err := varlens(t, "--max-depth", "1", "inspect", "head")
	require.NoError(t, err)
	assert.Equal(t, "head = 0x10000 -> {data = 1, next = 0x10010 <DepthExceeded>}\n", out)
}

func TestVisualize(t *testing.T) {
	out, err := varlens(t, "--frame", "main", "visualize", "--struct", "Node", "--values", "data", "--points", "next")
	require.NoError(t, err)

	assert.Equal(t, int64(3), gjson.Get(out, "nodes.#").Int())
	assert.Equal(t, []string{"1", "2", "3"}, stringsOf(gjson.Get(out, "nodes.#.values.0.value")))
	assert.Equal(t, []string{"head", "cursor"}, stringsOf(gjson.Get(out, "points.#.name")))

	out, err = varlens(t, "visualize", "--point-vars", "head")
	require.NoError(t, err)
	assert.Equal(t, "0x10000", gjson.Get(out, "points.0.value").String())

	_, err = varlens(t, "visualize")
	assert.Error(t, err)
}

func stringsOf(r gjson.Result) []string {
	var out []string
	for _, e := range r.Array() {
		out = append(out, e.String())
	}
	return out
}

func TestTypes(t *testing.T) {
	out, err := varlens(t, "types")
	require.NoError(t, err)
	assert.Contains(t, lines(out), "Node")

	out, err = varlens(t, "types", "Node")
	require.NoError(t, err)
	assert.Contains(t, out, "Node (struct, size 16, align 8)")
	assert.Contains(t, out, "next")

	_, err = varlens(t, "types", "Missing")
	assert.Error(t, err)
}

func TestConfig(t *testing.T) {
	t.Setenv("VARLENS_MAX_ARRAY_ELEMENTS", "9")
	out, err := varlens(t, "--max-depth", "4", "config")
	require.NoError(t, err)

	settings := map[string][]string{}
	for _, l := range lines(out) {
		f := strings.Fields(l)
		settings[f[0]] = f[1:]
	}
	assert.Equal(t, []string{"4", "arguments"}, settings["limits.max_depth"])
	assert.Equal(t, []string{"9", "environment"}, settings["limits.max_array_elements"])
	assert.Equal(t, []string{"1024", "builtin"}, settings["limits.max_string_scan"])

	out, err = varlens(t, "--ignore-env", "config", "limits.max_array_elements", "limits.max_depth")
	require.NoError(t, err)
	rows := lines(out)
	require.Len(t, rows, 2)
	assert.Equal(t, []string{"limits.max_array_elements", "200", "builtin"}, strings.Fields(rows[0]))
	assert.Equal(t, []string{"limits.max_depth", "64", "builtin"}, strings.Fields(rows[1]))

	_, err = varlens(t, "config", "limits.nope")
	assert.ErrorContains(t, err, `unknown setting "limits.nope"`)
}

func TestSummarizerScripts(t *testing.T) {
	scripts := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(scripts, "node.lua"), []byte(`
varlens.summarizer("Node", function(v) return "node " .. v.fields.data.value end)
`), 0o600))

	out, err := varlens(t, "--scripts", scripts, "inspect", "*head")
	require.NoError(t, err)
	assert.Equal(t, "*head = node 1\n", out)
}

func TestErrors(t *testing.T) {
	var stdout, stderr bytes.Buffer
	cmd := newRootCmd(&stdout, &stderr)
	cmd.SetArgs([]string{"globals"})
	assert.ErrorContains(t, cmd.Execute(), "--metadata")

	_, err := varlens(t, "--format", "yaml", "globals")
	assert.ErrorContains(t, err, "unknown output format")

	_, err = varlens(t, "--log-level", "loud", "globals")
	assert.Error(t, err)
}
