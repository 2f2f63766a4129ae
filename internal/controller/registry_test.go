// File: internal/controller/registry_test.go
package controller

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestKindsIsSortedAndComplete(t *testing.T) {
	kinds := Kinds()
	require.Len(t, kinds, 11)
	assert.IsIncreasing(t, kinds)
	assert.Contains(t, kinds, KindClickElement)
	assert.Contains(t, kinds, KindDone)
}

func TestParseAction(t *testing.T) {
	cases := []struct {
		name    string
		payload string
		check   func(t *testing.T, a interface{ Kind() string })
	}{
		{
			name:    "click with index",
			payload: `{"click_element": {"index": 3}}`,
			check: func(t *testing.T, a interface{ Kind() string }) {
				click, ok := a.(*ClickElement)
				require.True(t, ok)
				assert.Equal(t, 3, click.ElementIndex)
				assert.True(t, click.RequiresIndex())
			},
		},
		{
			name:    "input text",
			payload: `{"input_text": {"index": 5, "text": "cheap flights"}}`,
			check: func(t *testing.T, a interface{ Kind() string }) {
				input, ok := a.(*InputText)
				require.True(t, ok)
				assert.Equal(t, 5, input.ElementIndex)
				assert.Equal(t, "cheap flights", input.Text)
			},
		},
		{
			name:    "go back with null params",
			payload: `{"go_back": null}`,
			check: func(t *testing.T, a interface{ Kind() string }) {
				assert.IsType(t, &GoBack{}, a)
				assert.False(t, a.(*GoBack).RequiresIndex())
			},
		},
		{
			name:    "done",
			payload: `{"done": {"success": true, "text": "booked"}}`,
			check: func(t *testing.T, a interface{ Kind() string }) {
				done, ok := a.(*Done)
				require.True(t, ok)
				assert.True(t, done.Success)
				assert.Equal(t, "booked", done.Text)
			},
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			action, err := ParseAction(json.RawMessage(tc.payload))
			require.NoError(t, err)
			tc.check(t, action)
		})
	}
}

func TestParseActionRejectsMalformed(t *testing.T) {
	cases := []struct {
		name    string
		payload string
	}{
		{"not an object", `"click_element"`},
		{"empty object", `{}`},
		{"two keys", `{"click_element": {"index": 1}, "go_back": {}}`},
		{"unknown kind", `{"teleport": {}}`},
		{"bad params", `{"click_element": {"index": "three"}}`},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := ParseAction(json.RawMessage(tc.payload))
			assert.Error(t, err)
		})
	}
}

func TestParseActionsFailsOnFirstBadEntry(t *testing.T) {
	raw := []json.RawMessage{
		json.RawMessage(`{"scroll": {"down": true}}`),
		json.RawMessage(`{"bogus": {}}`),
	}
	_, err := ParseActions(raw)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "action 1")
}

func TestEncodeActionRoundTrip(t *testing.T) {
	original := &InputText{ElementIndex: 7, Text: "hello"}

	raw, err := EncodeAction(original)
	require.NoError(t, err)

	decoded, err := ParseAction(raw)
	require.NoError(t, err)
	input, ok := decoded.(*InputText)
	require.True(t, ok)
	assert.Equal(t, original.ElementIndex, input.ElementIndex)
	assert.Equal(t, original.Text, input.Text)
}

func TestSetIndexRewrite(t *testing.T) {
	click := &ClickElement{ElementIndex: 2}
	click.SetIndex(9)
	assert.Equal(t, 9, click.Index())

	// Index-free actions ignore rewrites.
	back := &GoBack{}
	back.SetIndex(9)
	assert.Equal(t, -1, back.Index())
}
