package payload

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const extracted = `{
	"tipoDocumento": "RG",
	"titular": {"nome": "Maria", "documentos": [{"tipoDocumento": "CPF", "numero": 123}]},
	"confianca": 0.93,
	"legivel": true,
	"observacoes": null
}`

func decode(t *testing.T, raw string) Value {
	t.Helper()
	var v Value
	require.NoError(t, json.Unmarshal([]byte(raw), &v))
	return v
}

func TestUnmarshal_Structure(t *testing.T) {
	v := decode(t, extracted)

	assert.Equal(t, KindObject, v.Kind())

	name, ok := v.Lookup("titular", "nome")
	require.True(t, ok)
	s, _ := name.Str()
	assert.Equal(t, "Maria", s)

	conf, ok := v.Lookup("confianca")
	require.True(t, ok)
	n, _ := conf.Num()
	assert.InDelta(t, 0.93, n, 1e-9)

	legible, _ := v.Lookup("legivel")
	b, ok := legible.Truthy()
	assert.True(t, ok)
	assert.True(t, b)

	obs, ok := v.Lookup("observacoes")
	assert.True(t, ok)
	assert.True(t, obs.IsNull())

	_, ok = v.Lookup("titular", "nome", "deeper")
	assert.False(t, ok)
}

func TestFindString_PrefersShallowestMatch(t *testing.T) {
	v := decode(t, extracted)

	found, ok := v.FindString("tipoDocumento")
	assert.True(t, ok)
	assert.Equal(t, "RG", found)

	nested := decode(t, `{"a": {"b": {"detectedType": "CNH"}}}`)
	found, ok = nested.FindString("tipoDocumento", "detectedType")
	assert.True(t, ok)
	assert.Equal(t, "CNH", found)

	_, ok = nested.FindString("missing")
	assert.False(t, ok)
}

func TestWalk_VisitsListsByIndex(t *testing.T) {
	v := decode(t, `{"items": ["x", {"k": "y"}]}`)

	var paths []string
	v.Walk(func(path []string, node Value) bool {
		if s, ok := node.Str(); ok {
			paths = append(paths, joinPath(path)+"="+s)
		}
		return true
	})
	assert.Equal(t, []string{"items.0=x", "items.1.k=y"}, paths)
}

func TestEqual_AfterRoundTrip(t *testing.T) {
	v := decode(t, extracted)

	raw, err := json.Marshal(v)
	require.NoError(t, err)

	again := decode(t, string(raw))
	assert.True(t, v.Equal(again))
	assert.False(t, v.Equal(String("RG")))
}

func joinPath(path []string) string {
	out := ""
	for i, p := range path {
		if i > 0 {
			out += "."
		}
		out += p
	}
	return out
}
