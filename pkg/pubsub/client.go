package pubsub

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	pubsub "cloud.google.com/go/pubsub/v2"
	"cloud.google.com/go/pubsub/v2/apiv1/pubsubpb"
	"go.uber.org/multierr"

	"github.com/zerohunger/zerohunger-backend/pkg/config"
	"github.com/zerohunger/zerohunger-backend/pkg/gcp"
	"github.com/zerohunger/zerohunger-backend/pkg/logger"
)

// Client owns the Pub/Sub connection for the donation lifecycle topic and
// its per-consumer subscriptions. Publisher handles are cached per topic so
// their batching goroutines are shared.
type Client struct {
	client  *pubsub.Client
	project string
	cfg     config.PubSubConfig

	mu         sync.Mutex
	publishers map[string]*pubsub.Publisher
}

// resource is one topic or subscription the backend expects to exist.
type resource struct {
	collection string
	id         string
}

// NewClient connects to Pub/Sub and fails unless the topic and every
// configured subscription already exist. Provisioning is left to infra.
func NewClient(ctx context.Context, gcpCfg config.GCPConfig, cfg config.PubSubConfig, logg *logger.Logger) (*Client, error) {
	project := strings.TrimSpace(gcpCfg.ProjectID)
	if project == "" {
		return nil, errors.New("gcp project id is required")
	}
	conn, err := pubsub.NewClient(ctx, project, gcp.ClientOptions(gcpCfg)...)
	if err != nil {
		return nil, fmt.Errorf("creating pubsub client: %w", err)
	}
	c := &Client{client: conn, project: project, cfg: cfg, publishers: map[string]*pubsub.Publisher{}}
	if err := c.Ping(ctx); err != nil {
		_ = conn.Close()
		return nil, err
	}
	if logg != nil {
		logg.Info(logg.WithFields(ctx, map[string]any{
			"project": project,
			"topic":   cfg.DonationTopic,
		}), "pubsub client ready")
	}
	return c, nil
}

func (c *Client) resources() []resource {
	var out []resource
	add := func(collection, id string) {
		if id = strings.TrimSpace(id); id != "" {
			out = append(out, resource{collection: collection, id: id})
		}
	}
	add("topics", c.cfg.DonationTopic)
	add("subscriptions", c.cfg.NotificationSubscription)
	add("subscriptions", c.cfg.ImpactSubscription)
	add("subscriptions", c.cfg.AnalyticsSubscription)
	return out
}

// Ping checks that every expected topic and subscription is reachable and
// reports all that are not.
func (c *Client) Ping(ctx context.Context) error {
	if c == nil || c.client == nil {
		return errors.New("pubsub client not initialized")
	}
	expected := c.resources()
	if len(expected) == 0 {
		return errors.New("no pubsub topic or subscription configured")
	}
	var errs error
	for _, r := range expected {
		errs = multierr.Append(errs, c.check(ctx, r))
	}
	return errs
}

func (c *Client) check(ctx context.Context, r resource) error {
	name := gcp.ResourceName(c.project, r.collection, r.id)
	var err error
	if r.collection == "topics" {
		_, err = c.client.TopicAdminClient.GetTopic(ctx, &pubsubpb.GetTopicRequest{Topic: name})
	} else {
		_, err = c.client.SubscriptionAdminClient.GetSubscription(ctx, &pubsubpb.GetSubscriptionRequest{Subscription: name})
	}
	switch {
	case err == nil:
		return nil
	case gcp.IsNotFound(err):
		return fmt.Errorf("%s does not exist", name)
	default:
		return fmt.Errorf("checking %s: %w", name, err)
	}
}

// Subscription returns a receiver for a subscription id or full name, or nil
// when it cannot be resolved.
func (c *Client) Subscription(id string) *pubsub.Subscriber {
	if c == nil || c.client == nil {
		return nil
	}
	name := gcp.ResourceName(c.project, "subscriptions", id)
	if name == "" {
		return nil
	}
	return c.client.Subscriber(name)
}

func (c *Client) NotificationSubscription() *pubsub.Subscriber {
	return c.Subscription(c.cfg.NotificationSubscription)
}

func (c *Client) ImpactSubscription() *pubsub.Subscriber {
	return c.Subscription(c.cfg.ImpactSubscription)
}

func (c *Client) AnalyticsSubscription() *pubsub.Subscriber {
	return c.Subscription(c.cfg.AnalyticsSubscription)
}

// Publisher returns the shared publisher for a topic id or full name, or nil
// when it cannot be resolved.
func (c *Client) Publisher(id string) *pubsub.Publisher {
	if c == nil || c.client == nil {
		return nil
	}
	name := gcp.ResourceName(c.project, "topics", id)
	if name == "" {
		return nil
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if p, ok := c.publishers[name]; ok {
		return p
	}
	p := c.client.Publisher(name)
	c.publishers[name] = p
	return p
}

func (c *Client) DonationPublisher() *pubsub.Publisher {
	return c.Publisher(c.cfg.DonationTopic)
}

// Close flushes cached publishers, then closes the connection.
func (c *Client) Close() error {
	if c == nil || c.client == nil {
		return nil
	}
	c.mu.Lock()
	for _, p := range c.publishers {
		p.Stop()
	}
	c.publishers = map[string]*pubsub.Publisher{}
	c.mu.Unlock()
	return c.client.Close()
}
