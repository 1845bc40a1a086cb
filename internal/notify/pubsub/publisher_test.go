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

func TestPublishDeliversJSON(t *testing.T) {
	ctx := context.Background()

	srv := pstest.NewServer()
	defer func() { _ = srv.Close() }()

	conn, err := grpc.NewClient(srv.Addr, grpc.WithTransportCredentials(insecure.NewCredentials()))
	require.NoError(t, err)
	defer func() { _ = conn.Close() }()

	client, err := pubsub.NewClient(ctx, "project-id", option.WithGRPCConn(conn))
	require.NoError(t, err)
	defer func() { _ = client.Close() }()

	topic, err := client.CreateTopic(ctx, "uploads")
	require.NoError(t, err)

	pub := New(topic, map[string]string{"scraper": "dreal-paca"})
	id, err := pub.Publish(ctx, map[string]string{"source_file_url": "https://example.org/a.pdf"})
	require.NoError(t, err)
	assert.NotEmpty(t, id)

	msgs := srv.Messages()
	require.Len(t, msgs, 1)
	assert.JSONEq(t, `{"source_file_url":"https://example.org/a.pdf"}`, string(msgs[0].Data))
	assert.Equal(t, "dreal-paca", msgs[0].Attributes["scraper"])

	require.NoError(t, pub.Close())
}

func TestPublishWithoutTopic(t *testing.T) {
	t.Parallel()

	_, err := New(nil, nil).Publish(context.Background(), "x")
	assert.Error(t, err)
}

func TestPublishRejectsUnmarshalablePayload(t *testing.T) {
	t.Parallel()

	pub := &Publisher{topic: &pubsub.Topic{}}
	_, err := pub.Publish(context.Background(), make(chan int))
	assert.ErrorContains(t, err, "marshal payload")
}

func TestConnectValidates(t *testing.T) {
	t.Parallel()

	_, err := Connect(context.Background(), "", "topic", nil)
	assert.Error(t, err)
}
