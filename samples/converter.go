package samples

import (
	"sync"

	"github.com/wippyai/afb-runtime/transcoder"
)

// SimpleDataUID is the native type uid of SimpleData.
const SimpleDataUID = "simple_data"

// SimpleData is the custom type exchanged by verb_typed.
type SimpleData struct {
	Name string `json:"name"`
	X    int32  `json:"x"`
	Y    int32  `json:"y"`
}

var registerMu sync.Mutex

// RegisterSimpleData installs the SimpleData converter once per transcoder.
// It is safe for concurrent use.
func RegisterSimpleData(tc *transcoder.Transcoder) error {
	registerMu.Lock()
	defer registerMu.Unlock()
	if _, ok := tc.Converter(SimpleDataUID); ok {
		return nil
	}
	_, err := transcoder.Register[SimpleData](tc, SimpleDataUID)
	return err
}
