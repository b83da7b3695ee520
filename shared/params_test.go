package shared

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestListParamsFrom(t *testing.T) {
	args := Arguments{
		"returnOnlyIds": true,
		"pageSize":      float64(10), // JSON numbers arrive as float64
		"pageToken":     "tok-1",
		"fields":        []interface{}{"name", "email"},
		"query":         "acme", // operation-specific, ignored here
	}
	params, err := ListParamsFrom(args)
	require.NoError(t, err)
	assert.True(t, params.ReturnOnlyIDs)
	assert.Equal(t, 10, params.PageSize)
	assert.Equal(t, "tok-1", params.PageToken)
	assert.Equal(t, []string{"name", "email"}, params.Fields)
}

func TestMutationParamsFrom(t *testing.T) {
	params, err := MutationParamsFrom(Arguments{"dryRun": true, "confirmToken": "abc"})
	require.NoError(t, err)
	assert.True(t, params.DryRun)
	assert.Equal(t, "abc", params.ConfirmToken)

	empty, err := MutationParamsFrom(nil)
	require.NoError(t, err)
	assert.False(t, empty.DryRun)
}

func TestCanonicalJSON(t *testing.T) {
	a := Arguments{"b": 1, "a": "x"}
	b := Arguments{"a": "x", "b": 1}
	assert.Equal(t, CanonicalJSON(a), CanonicalJSON(b))
	assert.Equal(t, `{"a":"x","b":1}`, CanonicalJSON(b))
	assert.Equal(t, "{}", CanonicalJSON(nil))
}

func TestHashFingerprint(t *testing.T) {
	assert.Equal(t, "", HashFingerprint(""))
	assert.Len(t, HashFingerprint("contacts_delete"), 64)
	assert.NotEqual(t, HashFingerprint("a"), HashFingerprint("b"))
}
