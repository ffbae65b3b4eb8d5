package pubsub

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/zerohunger/zerohunger-backend/pkg/config"
)

func TestResourcesSkipBlankNames(t *testing.T) {
	c := &Client{cfg: config.PubSubConfig{
		DonationTopic:            "zh-donation-events",
		NotificationSubscription: " notification-sub ",
		AnalyticsSubscription:    "analytics-sub",
	}}
	assert.Equal(t, []resource{
		{collection: "topics", id: "zh-donation-events"},
		{collection: "subscriptions", id: "notification-sub"},
		{collection: "subscriptions", id: "analytics-sub"},
	}, c.resources())
}

func TestUninitializedClient(t *testing.T) {
	var c *Client
	assert.Error(t, c.Ping(context.Background()))
	assert.Nil(t, c.Publisher("zh-donation-events"))
	assert.Nil(t, c.NotificationSubscription())
	assert.NoError(t, c.Close())

	empty := &Client{project: "zh-prod"}
	assert.Nil(t, empty.Subscription("impact-sub"))
}
