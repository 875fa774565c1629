package pubsub

import (
	"context"
	"testing"

	"cloud.google.com/go/pubsub"
	"cloud.google.com/go/pubsub/pstest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/api/option"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
)

type note struct {
	Dataset string `json:"dataset"`
}

func (n note) Attributes() map[string]string {
	return map[string]string{"dataset": n.Dataset}
}

func TestPublisherRoundTrip(t *testing.T) {
	ctx := context.Background()
	srv := pstest.NewServer()
	t.Cleanup(func() { _ = srv.Close() })

	conn, err := grpc.NewClient(srv.Addr, grpc.WithTransportCredentials(insecure.NewCredentials()))
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })

	client, err := pubsub.NewClient(ctx, "harvest-test", option.WithGRPCConn(conn))
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Close() })

	_, err = client.CreateTopic(ctx, "datasets")
	require.NoError(t, err)

	pub := New(client)
	defer pub.Stop()

	id, err := pub.Publish(ctx, "datasets", note{Dataset: "ICML2019"})
	require.NoError(t, err)
	assert.NotEmpty(t, id)

	msgs := srv.Messages()
	require.Len(t, msgs, 1)
	assert.JSONEq(t, `{"dataset":"ICML2019"}`, string(msgs[0].Data))
	assert.Equal(t, "ICML2019", msgs[0].Attributes["dataset"])
}

func TestPublisherValidation(t *testing.T) {
	_, err := New(nil).Publish(context.Background(), "datasets", note{})
	assert.ErrorContains(t, err, "not configured")
}
