package database

import (
	"github.com/fxamacker/cbor/v2"
)

// Records stored as raw bytes (Badger values) are CBOR with core
// deterministic encoding, so the same record always yields the same bytes.
var (
	encMode cbor.EncMode
	decMode cbor.DecMode
)

func init() {
	var err error

	encOptions := cbor.CoreDetEncOptions()
	encOptions.Time = cbor.TimeRFC3339Nano
	encMode, err = encOptions.EncMode()
	if err != nil {
		panic("database: CBOR encoder initialization failed: " + err.Error())
	}

	decMode, err = cbor.DecOptions{}.DecMode()
	if err != nil {
		panic("database: CBOR decoder initialization failed: " + err.Error())
	}
}

func encodeRecord(v any) ([]byte, error) {
	return encMode.Marshal(v)
}

func decodeRecord(data []byte, v any) error {
	return decMode.Unmarshal(data, v)
}
