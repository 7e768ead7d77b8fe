//go:build lambda

package main

import (
	"context"
	"fmt"
	"notigate/cmd/notigate/cmds"
	"notigate/internal/api"
	"notigate/internal/backends"
	"notigate/internal/config"
	"notigate/internal/flow"
	"notigate/internal/pub"

	"github.com/aws/aws-lambda-go/events"
	"github.com/aws/aws-lambda-go/lambda"
	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/sns"
	log "github.com/sirupsen/logrus"
)

// LambdaHandler decides every SQS record through the same Service as the HTTP server.
type LambdaHandler struct {
	Service *api.Service
}

func main() {
	settings, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to read settings: %v", err)
	}
	settings.ConfigureLogging()

	ctx := context.Background()

	store, err := backends.StateStoreFromSettings(ctx, settings)
	if err != nil {
		log.Fatalf("Failed to initialize state store: %v", err)
	}

	opts := []api.ServiceOption{}
	if settings.AdvisorEnabled {
		var hintRules []flow.HintRule
		if settings.AdvisorRulesFile != "" {
			hintRules, err = cmds.LoadHintRules(settings.AdvisorRulesFile)
			if err != nil {
				log.Fatalf("Failed to load advisor rules: %v", err)
			}
		}
		opts = append(opts, api.WithAdvisor(flow.NewExprAdvisor(hintRules), settings.AdvisorTimeout))
	}
	if settings.DecisionTopicARN != "" {
		awsCfg, err := backends.AWSConfig(ctx, settings)
		if err != nil {
			log.Fatalf("Failed to load AWS config: %v", err)
		}
		snsClient := sns.NewFromConfig(awsCfg, func(o *sns.Options) {
			if settings.SNSEndpoint != "" {
				o.BaseEndpoint = aws.String(settings.SNSEndpoint)
				o.Credentials = credentials.NewStaticCredentialsProvider("test", "test", "")
			}
		})
		opts = append(opts, api.WithPublisher(pub.NewSNS(snsClient), settings.DecisionTopicARN))
	}

	handler := &LambdaHandler{
		Service: api.NewService(flow.NewEngine(store), opts...),
	}

	// Start Lambda runtime
	lambda.Start(handler.HandleSQSEvent)
}

// HandleSQSEvent processes a batch. Records that cannot be parsed or hit a backend failure are
// reported back so SQS redelivers only those.
func (h *LambdaHandler) HandleSQSEvent(ctx context.Context, sqsEvent events.SQSEvent) (events.SQSEventResponse, error) {
	log.Infof("Processing batch of %d messages", len(sqsEvent.Records))

	var batchItemFailures []events.SQSBatchItemFailure

	for _, record := range sqsEvent.Records {
		if err := h.processMessage(ctx, record); err != nil {
			log.WithError(err).Errorf("Failed to process message %s", record.MessageId)
			batchItemFailures = append(batchItemFailures, events.SQSBatchItemFailure{
				ItemIdentifier: record.MessageId,
			})
		}
	}

	return events.SQSEventResponse{
		BatchItemFailures: batchItemFailures,
	}, nil
}

func (h *LambdaHandler) processMessage(ctx context.Context, record events.SQSMessage) error {
	event, err := api.ParseEvent([]byte(record.Body))
	if err != nil {
		return fmt.Errorf("parse message body: %w", err)
	}

	resp, err := h.Service.Process(ctx, event)
	if err != nil {
		return fmt.Errorf("decide: %w", err)
	}

	log.WithFields(log.Fields{
		"user_id":   event.UserID,
		"decision":  resp.Decision,
		"reason":    resp.Reason,
		"messageID": record.MessageId,
		"groupID":   record.Attributes["MessageGroupId"],
	}).Debug("Message decided")
	return nil
}
