package ai

import (
	"errors"
	"fmt"
	"testing"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		err  error
		want ErrorKind
	}{
		{errors.New("429 too many requests"), KindRateLimited},
		{errors.New("rate limit exceeded, please slow down"), KindRateLimited},
		{errors.New("dial tcp 127.0.0.1:1234: connection refused"), KindNetwork},
		{errors.New("context deadline exceeded"), KindNetwork},
		{errors.New("unexpected EOF"), KindNetwork},
		{errors.New("invalid character '<' looking for beginning of value"), KindProtocol},
		{errors.New("cannot unmarshal chunk"), KindProtocol},
		{errors.New("model exploded"), KindUnknown},
		{&TransportError{Kind: KindProtocol, Message: "no choices"}, KindProtocol},
		{fmt.Errorf("chat: %w", &TransportError{Kind: KindRateLimited, Message: "throttled"}), KindRateLimited},
	}

	for _, tt := range tests {
		if got := Classify(tt.err); got != tt.want {
			t.Errorf("Classify(%q) = %v, want %v", tt.err, got, tt.want)
		}
	}
}
