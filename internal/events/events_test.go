package events

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"docservice/internal/config"
	"docservice/internal/model"
)

type fakeJetStream struct {
	subject string
	data    []byte
	err     error
}

func (f *fakeJetStream) Publish(subj string, data []byte, _ ...nats.PubOpt) (*nats.PubAck, error) {
	if f.err != nil {
		return nil, f.err
	}
	f.subject, f.data = subj, data
	return &nats.PubAck{Stream: "document-events", Sequence: 1}, nil
}

func TestNewEvent(t *testing.T) {
	now := time.Date(2024, 1, 2, 3, 4, 5, 0, time.FixedZone("X", 3600))
	doc := &model.Document{ID: 7, ExternalID: "ext", DisplayName: "a.png", ClassifiedType: model.TypePNG, ContentKey: "c", ThumbnailKey: "t"}

	e := NewEvent(Created, doc, now)

	assert.NotEmpty(t, e.ID)
	assert.Equal(t, Created, e.Type)
	assert.Equal(t, time.UTC, e.OccurredAt.Location())
	assert.Equal(t, int64(7), e.DocumentID)
	assert.True(t, e.HasThumbnail)
	assert.NotEqual(t, e.ID, NewEvent(Created, doc, now).ID)
}

func TestNATS_Publish(t *testing.T) {
	js := &fakeJetStream{}
	n := &NATS{js: js, prefix: "documents"}

	e := NewEvent(Updated, &model.Document{ID: 3, DisplayName: "r.pdf", ClassifiedType: model.TypePDF}, time.Now())
	require.NoError(t, n.Publish(context.Background(), e))

	assert.Equal(t, "documents.updated", js.subject)
	var got map[string]any
	require.NoError(t, json.Unmarshal(js.data, &got))
	assert.Equal(t, "updated", got["type"])
	assert.Equal(t, "r.pdf", got["file_name"])
	assert.Equal(t, float64(3), got["document_id"])

	js.err = errors.New("no responders")
	assert.ErrorContains(t, n.Publish(context.Background(), e), "publish documents.updated")
}

func TestNewNATS_RequiresURL(t *testing.T) {
	_, err := NewNATS(config.NATSConfig{Stream: "document-events"}, nil)
	assert.Error(t, err)
}

func TestNoop(t *testing.T) {
	var p Publisher = Noop{}
	assert.NoError(t, p.Publish(context.Background(), Event{}))
	p.Close()
}
