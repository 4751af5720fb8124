package qualitygate

import (
	"errors"
	"fmt"
)

var (
	ErrTaskURLMissing        = errors.New("ceTaskUrl not found")
	ErrQualityGateURLMissing = errors.New("qualityGate url not found")
	ErrQualityGateTimeout    = errors.New("timed out waiting for the background task")
)

// RemoteAPIError is returned when the server answers with an errors list.
type RemoteAPIError struct {
	Msg string
}

func (e *RemoteAPIError) Error() string {
	return e.Msg
}

// TransportError wraps network and decoding failures of a single request.
type TransportError struct {
	URL string
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("request %s: %v", e.URL, e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}
