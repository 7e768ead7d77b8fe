package pub

import (
	"context"
	"notigate/internal/types"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sns"
	snsTypes "github.com/aws/aws-sdk-go-v2/service/sns/types"
	"github.com/goccy/go-json"
)

const (
	AttrContentType = "content-type"
	AttrDecision    = "decision"
	AttrReason      = "reason"
	AttrEventType   = "event_type"
	AttrChannel     = "channel"

	fifoSuffix = ".fifo"
)

// DecisionPayload is the body published for every decision.
type DecisionPayload struct {
	Event    types.NotificationEvent `json:"event"`
	Decision types.DecisionResponse  `json:"decision"`
}

// DecisionMessage builds the outbound message for an audited decision. The attributes let SNS
// subscriptions filter on decision, event type and channel without parsing the body.
func DecisionMessage(rec types.AuditRecord) (types.OutboundMessage, error) {
	body, err := json.Marshal(DecisionPayload{Event: rec.Event, Decision: rec.Decision})
	if err != nil {
		return types.OutboundMessage{}, err
	}
	return types.OutboundMessage{
		Body: body,
		Attributes: map[string]string{
			AttrContentType: "application/json",
			AttrDecision:    string(rec.Decision.Decision),
			AttrReason:      rec.Decision.Reason,
			AttrEventType:   rec.Event.EventType,
			AttrChannel:     rec.Event.Channel,
		},
		GroupID:  rec.Event.UserID,
		DedupeID: rec.ID,
	}, nil
}

type SNS struct{ cli *sns.Client }

func NewSNS(c *sns.Client) *SNS { return &SNS{cli: c} }

// Publish sends msg to the topic arn. Group and dedupe ids are sent to FIFO topics only; standard
// topics reject them.
func (s *SNS) Publish(ctx context.Context, arn string, msg types.OutboundMessage) error {
	_, err := s.cli.Publish(ctx, publishInput(arn, msg))
	return err
}

func publishInput(arn string, msg types.OutboundMessage) *sns.PublishInput {
	in := &sns.PublishInput{
		TopicArn:          &arn,
		Message:           aws.String(string(msg.Body)),
		MessageAttributes: make(map[string]snsTypes.MessageAttributeValue, len(msg.Attributes)),
	}
	for k, v := range msg.Attributes {
		if v == "" {
			// SNS rejects empty attribute values
			continue
		}
		in.MessageAttributes[k] = snsTypes.MessageAttributeValue{DataType: aws.String("String"), StringValue: aws.String(v)}
	}
	if strings.HasSuffix(arn, fifoSuffix) {
		if msg.GroupID != "" {
			in.MessageGroupId = aws.String(msg.GroupID)
		}
		if msg.DedupeID != "" {
			in.MessageDeduplicationId = aws.String(msg.DedupeID)
		}
	}
	return in
}
