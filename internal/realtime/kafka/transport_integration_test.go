//go:build integration

package kafka_test

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/suite"
	"github.com/twmb/franz-go/pkg/kgo"

	"github.com/docsales/realstate-docgen-front-sub000/internal/realtime"
	rtkafka "github.com/docsales/realstate-docgen-front-sub000/internal/realtime/kafka"
	"github.com/docsales/realstate-docgen-front-sub000/pkg/testutil/containers"
)

type TransportSuite struct {
	suite.Suite
	redpanda  *containers.RedpandaContainer
	prefix    string
	transport *rtkafka.Transport
	producer  *kgo.Client
}

func TestTransportSuite(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	suite.Run(t, new(TransportSuite))
}

func (s *TransportSuite) SetupSuite() {
	s.redpanda = containers.GetManager().GetRedpanda(s.T())

	s.prefix = "docgen-" + uuid.NewString()[:8]
	s.transport = s.newTransport()

	producer, err := kgo.NewClient(kgo.SeedBrokers(s.redpanda.Broker), kgo.AllowAutoTopicCreation())
	s.Require().NoError(err)
	s.producer = producer
}

func (s *TransportSuite) newTransport() *rtkafka.Transport {
	tr, err := rtkafka.New(rtkafka.Config{
		Brokers:     []string{s.redpanda.Broker},
		TopicPrefix: s.prefix,
		ClientOpts:  []kgo.Opt{kgo.AllowAutoTopicCreation()},
	})
	s.Require().NoError(err)
	return tr
}

func (s *TransportSuite) TearDownSuite() {
	if s.producer != nil {
		s.producer.Close()
	}
}

func (s *TransportSuite) TestRecordsAreDelivered() {
	ctx := context.Background()
	manager := realtime.NewManager(s.transport)
	defer manager.Close()

	h, err := manager.Acquire(ctx, realtime.NamespaceOCR)
	s.Require().NoError(err)
	defer h.Release()

	topic := s.transport.Topic(realtime.NamespaceOCR)
	value := []byte(`{"event":"ocr_error","documentId":"R7","data":{"error":"unreadable"}}`)

	// The consumer starts at the log end, so keep producing until one lands.
	ticker := time.NewTicker(250 * time.Millisecond)
	defer ticker.Stop()
	deadline := time.After(20 * time.Second)
	for {
		select {
		case <-ticker.C:
			rec := &kgo.Record{Topic: topic, Key: []byte(uuid.NewString()), Value: value}
			s.Require().NoError(s.producer.ProduceSync(ctx, rec).FirstErr())
		case ev := <-h.Events():
			if ev.Name == realtime.EventReconnected {
				continue
			}
			s.Equal(realtime.EventOCRError, ev.Name)
			s.Equal("R7", ev.RemoteID)
			s.NotEmpty(ev.ID, "record key becomes the event id")
			return
		case <-deadline:
			s.FailNow("no record delivered")
		}
	}
}

// Each process keeps its own registry, so two processes on the same topic
// must both receive a record instead of splitting partitions between them.
func (s *TransportSuite) TestEveryProcessSeesEveryRecord() {
	ctx := context.Background()
	first := realtime.NewManager(s.newTransport())
	defer first.Close()
	second := realtime.NewManager(s.newTransport())
	defer second.Close()

	h1, err := first.Acquire(ctx, realtime.NamespaceCoupleValidation)
	s.Require().NoError(err)
	defer h1.Release()
	h2, err := second.Acquire(ctx, realtime.NamespaceCoupleValidation)
	s.Require().NoError(err)
	defer h2.Release()

	topic := s.transport.Topic(realtime.NamespaceCoupleValidation)
	value := []byte(`{"event":"couple_validation_started","dealId":"deal-1","coupleId":"C1"}`)

	seen := map[int]bool{}
	ticker := time.NewTicker(250 * time.Millisecond)
	defer ticker.Stop()
	deadline := time.After(20 * time.Second)
	for !seen[1] || !seen[2] {
		select {
		case <-ticker.C:
			rec := &kgo.Record{Topic: topic, Key: []byte(uuid.NewString()), Value: value}
			s.Require().NoError(s.producer.ProduceSync(ctx, rec).FirstErr())
		case ev := <-h1.Events():
			seen[1] = seen[1] || ev.Name == realtime.EventCoupleValidationStarted
		case ev := <-h2.Events():
			seen[2] = seen[2] || ev.Name == realtime.EventCoupleValidationStarted
		case <-deadline:
			s.FailNow("records not delivered to both consumers", "seen=%v", seen)
		}
	}
}
