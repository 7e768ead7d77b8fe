package ddb

import (
	"context"
	"notigate/internal/types"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	ddbTypes "github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

const tableWaitTimeout = 30 * time.Second

// RuleStore keeps the active RuleConfig as a single item. PutItem replaces it whole.
type RuleStore struct {
	table string
	cli   *dynamodb.Client
}

func NewRuleStore(table string, cli *dynamodb.Client) *RuleStore {
	// Creates the table only if it doesn't exist.
	createTableIfNotExists(cli, table)
	return &RuleStore{table: table, cli: cli}
}

func (s *RuleStore) GetRules(ctx context.Context) (types.RuleConfig, error) {
	out, err := s.cli.GetItem(ctx, &dynamodb.GetItemInput{
		TableName: &s.table,
		Key: map[string]ddbTypes.AttributeValue{
			"PK": &ddbTypes.AttributeValueMemberS{Value: pkRules()},
			"SK": &ddbTypes.AttributeValueMemberS{Value: skActive()},
		},
		ConsistentRead: awsBool(true),
	})
	if err != nil {
		return types.RuleConfig{}, err
	}
	cfg := types.DefaultRuleConfig()
	if out.Item == nil {
		return cfg, nil
	}
	if err := attributevalue.UnmarshalMap(out.Item, &cfg); err != nil {
		return types.RuleConfig{}, err
	}
	return cfg, nil
}

func (s *RuleStore) SetRules(ctx context.Context, cfg types.RuleConfig) (types.RuleConfig, error) {
	if err := cfg.Validate(); err != nil {
		return types.RuleConfig{}, types.Err(types.ErrInvalidRuleConfig, err, "")
	}
	item, err := attributevalue.MarshalMap(struct {
		PK string `dynamodbav:"PK"`
		SK string `dynamodbav:"SK"`
		types.RuleConfig
	}{
		PK:         pkRules(),
		SK:         skActive(),
		RuleConfig: cfg,
	})
	if err != nil {
		return types.RuleConfig{}, err
	}
	_, err = s.cli.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: &s.table,
		Item:      item,
	})
	if err != nil {
		return types.RuleConfig{}, err
	}
	return cfg.Clone(), nil
}

// ClearAll drops and recreates the table. Used in tests only.
func (s *RuleStore) ClearAll(ctx context.Context) error {
	_, err := s.cli.DeleteTable(ctx, &dynamodb.DeleteTableInput{
		TableName: &s.table,
	})
	if err != nil {
		return err
	}
	err = dynamodb.NewTableNotExistsWaiter(s.cli).Wait(ctx, &dynamodb.DescribeTableInput{
		TableName: aws.String(s.table),
	}, tableWaitTimeout)
	if err != nil {
		return err
	}
	createTableIfNotExists(s.cli, s.table)
	return nil
}
