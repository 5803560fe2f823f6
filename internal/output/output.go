package output

import (
	"context"
	"fmt"
)

// Sink durably stores one attachment payload under name and returns where
// it was written.
type Sink interface {
	Write(ctx context.Context, name string, data []byte, contentType string) (string, error)
}

// MultiSink writes to every sink in order and stops at the first failure.
// The location reported is the one from the first sink.
type MultiSink []Sink

func (m MultiSink) Write(ctx context.Context, name string, data []byte, contentType string) (string, error) {
	if len(m) == 0 {
		return "", fmt.Errorf("no output sink configured")
	}

	var location string
	for i, s := range m {
		loc, err := s.Write(ctx, name, data, contentType)
		if err != nil {
			return "", err
		}
		if i == 0 {
			location = loc
		}
	}
	return location, nil
}
