package bsml

import (
	"github.com/calvinalkan/smlio/pkg/smlio"
)

// Header is the binary preamble as seen by [smlio.Handle]. A new file also
// gets the start tag of the root element named Root.
type Header struct {
	Root string
}

func (Header) ProbeSize() int { return PreambleSize }

func (Header) Validate(start []byte) (int, error) {
	if err := CheckPreamble(start); err != nil {
		return 0, err
	}

	return PreambleSize, nil
}

func (h Header) Encode() ([]byte, int, error) {
	return AppendElementStart(Preamble(), h.Root), PreambleSize, nil
}

var _ smlio.Header = Header{}
