package events

import (
	"context"
	"encoding/json"
	"errors"
	"strings"

	"cloud.google.com/go/pubsub"
	"github.com/cidco-records/apiserver/config"
	"github.com/cidco-records/apiserver/types"
	"google.golang.org/api/option"
)

// PubSubPublisher publishes audit events to a Google Cloud Pub/Sub topic.
type PubSubPublisher struct {
	client *pubsub.Client
}

// NewPubSubPublisher constructs a Pub/Sub publisher from config.
func NewPubSubPublisher(ctx context.Context, cfg config.PubSubConfig) (*PubSubPublisher, error) {
	if strings.TrimSpace(cfg.ProjectID) == "" {
		return nil, errors.New("pubsub project id is required")
	}

	var opts []option.ClientOption
	if strings.TrimSpace(cfg.CredentialsFile) != "" {
		opts = append(opts, option.WithCredentialsFile(cfg.CredentialsFile))
	}

	client, err := pubsub.NewClient(ctx, cfg.ProjectID, opts...)
	if err != nil {
		return nil, err
	}

	return &PubSubPublisher{client: client}, nil
}

// Publish sends the event to the audit topic as JSON.
func (p *PubSubPublisher) Publish(ctx context.Context, event types.RecordEvent) error {
	topic, err := p.ensureTopic(ctx, AuditChannel)
	if err != nil {
		return err
	}

	body, err := json.Marshal(event)
	if err != nil {
		return err
	}

	result := topic.Publish(ctx, &pubsub.Message{
		Data:       body,
		Attributes: map[string]string{"type": event.Type},
	})
	_, err = result.Get(ctx)
	return err
}

// Close closes the underlying Pub/Sub client.
func (p *PubSubPublisher) Close() error {
	return p.client.Close()
}

func (p *PubSubPublisher) ensureTopic(ctx context.Context, name string) (*pubsub.Topic, error) {
	topic := p.client.Topic(name)
	exists, err := topic.Exists(ctx)
	if err != nil {
		return nil, err
	}
	if !exists {
		return p.client.CreateTopic(ctx, name)
	}
	return topic, nil
}
