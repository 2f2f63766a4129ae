// File: internal/controller/registry.go
package controller

import (
	"encoding/json"
	"fmt"
	"sort"

	jsoniter "github.com/json-iterator/go"

	"github.com/xkilldash9x/waypoint-cli/api/schemas"
)

var jsonFast = jsoniter.ConfigCompatibleWithStandardLibrary

// constructors maps wire names to typed action factories. The vocabulary is
// closed; unknown kinds are rejected at parse time so malformed model output
// never reaches the dispatcher.
var constructors = map[string]func() schemas.Action{
	KindClickElement:   func() schemas.Action { return &ClickElement{} },
	KindInputText:      func() schemas.Action { return &InputText{} },
	KindGoToURL:        func() schemas.Action { return &GoToURL{} },
	KindGoBack:         func() schemas.Action { return &GoBack{} },
	KindScroll:         func() schemas.Action { return &Scroll{} },
	KindSendKeys:       func() schemas.Action { return &SendKeys{} },
	KindSwitchTab:      func() schemas.Action { return &SwitchTab{} },
	KindOpenTab:        func() schemas.Action { return &OpenTab{} },
	KindExtractContent: func() schemas.Action { return &ExtractContent{} },
	KindWait:           func() schemas.Action { return &Wait{} },
	KindDone:           func() schemas.Action { return &Done{} },
}

// Kinds returns the sorted wire names of the full action vocabulary.
func Kinds() []string {
	kinds := make([]string, 0, len(constructors))
	for k := range constructors {
		kinds = append(kinds, k)
	}
	sort.Strings(kinds)
	return kinds
}

// ParseAction decodes one raw action payload of the form
//
//	{"click_element": {"index": 3}}
//
// into its typed variant. Exactly one key is expected.
func ParseAction(raw json.RawMessage) (schemas.Action, error) {
	var envelope map[string]json.RawMessage
	if err := jsonFast.Unmarshal(raw, &envelope); err != nil {
		return nil, fmt.Errorf("action payload is not an object: %w", err)
	}
	if len(envelope) != 1 {
		return nil, fmt.Errorf("action payload must have exactly one key, got %d", len(envelope))
	}

	for kind, params := range envelope {
		ctor, ok := constructors[kind]
		if !ok {
			return nil, fmt.Errorf("unknown action kind %q", kind)
		}
		action := ctor()
		if len(params) > 0 && string(params) != "null" {
			if err := jsonFast.Unmarshal(params, action); err != nil {
				return nil, fmt.Errorf("invalid parameters for action %q: %w", kind, err)
			}
		}
		return action, nil
	}
	return nil, fmt.Errorf("empty action payload")
}

// ParseActions decodes a batch of raw action payloads, failing on the first
// invalid entry.
func ParseActions(raw []json.RawMessage) ([]schemas.Action, error) {
	actions := make([]schemas.Action, 0, len(raw))
	for i, r := range raw {
		a, err := ParseAction(r)
		if err != nil {
			return nil, fmt.Errorf("action %d: %w", i, err)
		}
		actions = append(actions, a)
	}
	return actions, nil
}

// EncodeAction renders a typed action back to its wire envelope. Used when
// persisting rewritten replay actions.
func EncodeAction(a schemas.Action) (json.RawMessage, error) {
	body, err := jsonFast.Marshal(a)
	if err != nil {
		return nil, fmt.Errorf("marshal action %q: %w", a.Kind(), err)
	}
	envelope := map[string]json.RawMessage{a.Kind(): body}
	out, err := jsonFast.Marshal(envelope)
	if err != nil {
		return nil, fmt.Errorf("marshal envelope for %q: %w", a.Kind(), err)
	}
	return out, nil
}
