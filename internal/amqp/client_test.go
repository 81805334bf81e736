package amqp

import (
	"context"
	"testing"

	"tempo/internal/core"
)

func TestNilClientIsSafe(t *testing.T) {
	var client *Client

	entry := core.OpEntry{ID: 1, TS: 1000, Type: "start_session"}

	if err := client.PublishOp(context.Background(), entry); err != nil {
		t.Errorf("PublishOp on nil client = %v, want nil", err)
	}

	if err := client.Close(); err != nil {
		t.Errorf("Close on nil client = %v, want nil", err)
	}
}
