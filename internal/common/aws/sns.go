// internal/common/aws/sns.go
package aws

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	awssdk "github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/sns"
	"github.com/aws/aws-sdk-go-v2/service/sns/types"
)

// EventDocumentDelivered is published for every accepted delivery.
const EventDocumentDelivered = "document.delivered"

type SNSService interface {
	Publish(ctx context.Context, params *sns.PublishInput, optFns ...func(*sns.Options)) (*sns.PublishOutput, error)
}

// NewSNSClient loads the default AWS credential chain for region.
func NewSNSClient(ctx context.Context, region string) (*sns.Client, error) {
	cfg, err := config.LoadDefaultConfig(ctx, config.WithRegion(region))
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}
	return sns.NewFromConfig(cfg), nil
}

// Delivery describes an accepted document delivery. The document itself is
// never published.
type Delivery struct {
	TriggerPath        string    `json:"triggerPath"`
	ProcessID          string    `json:"processId,omitempty"`
	ProcessInstanceKey int64     `json:"processInstanceKey,omitempty"`
	FileName           string    `json:"fileName,omitempty"`
	MimeType           string    `json:"mimeType"`
	FileSize           int       `json:"fileSize"`
	DeliveredAt        time.Time `json:"deliveredAt"`
}

// DeliveryNotifier publishes delivery events to an SNS topic.
type DeliveryNotifier struct {
	client   SNSService
	topicARN string
}

func NewDeliveryNotifier(client SNSService, topicARN string) *DeliveryNotifier {
	return &DeliveryNotifier{client: client, topicARN: topicARN}
}

func (n *DeliveryNotifier) NotifyDelivered(ctx context.Context, delivery Delivery) (string, error) {
	if delivery.DeliveredAt.IsZero() {
		delivery.DeliveredAt = time.Now().UTC()
	}

	body, err := json.Marshal(delivery)
	if err != nil {
		return "", fmt.Errorf("encode delivery event: %w", err)
	}

	out, err := n.client.Publish(ctx, &sns.PublishInput{
		TopicArn: awssdk.String(n.topicARN),
		Message:  awssdk.String(string(body)),
		Subject:  awssdk.String(EventDocumentDelivered),
		MessageAttributes: map[string]types.MessageAttributeValue{
			"event": {
				DataType:    awssdk.String("String"),
				StringValue: awssdk.String(EventDocumentDelivered),
			},
			"mimeType": {
				DataType:    awssdk.String("String"),
				StringValue: awssdk.String(delivery.MimeType),
			},
		},
	})
	if err != nil {
		return "", fmt.Errorf("publish %s to %s: %w", EventDocumentDelivered, n.topicARN, err)
	}
	return awssdk.ToString(out.MessageId), nil
}
