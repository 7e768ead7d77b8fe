package ddb

import (
	"context"
	"notigate/internal/types"
	"slices"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	ddbTypes "github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

// AuditStore implements ports.AuditStore with one item per record under the user's partition.
// Rows carry a ttl so DynamoDB drops them after types.AuditRetention.
type AuditStore struct {
	table string
	cli   *dynamodb.Client
	now   func() time.Time
}

type auditItem struct {
	PK        string `dynamodbav:"PK"`
	SK        string `dynamodbav:"SK"`
	ExpiresAt int64  `dynamodbav:"ttl"`
	types.AuditRecord
}

func NewAuditStore(table string, cli *dynamodb.Client) *AuditStore {
	createTableIfNotExists(cli, table)
	return &AuditStore{table: table, cli: cli, now: time.Now}
}

func (s *AuditStore) AddAudit(ctx context.Context, userID string, record types.AuditRecord) error {
	av, err := attributevalue.MarshalMap(auditItem{
		PK:          pkUser(userID),
		SK:          skAudit(record.CreatedAt.UnixMilli(), record.ID),
		ExpiresAt:   record.CreatedAt.Add(types.AuditRetention).Unix(),
		AuditRecord: record,
	})
	if err != nil {
		return err
	}
	_, err = s.cli.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: &s.table,
		Item:      av,
	})
	return err
}

// RecentAudit reads newest first up to limit, bounded by the retention horizon since TTL deletion
// lags, and returns the page oldest first.
func (s *AuditStore) RecentAudit(ctx context.Context, userID string, limit int) ([]types.AuditRecord, error) {
	if limit <= 0 {
		return nil, nil
	}
	cutoff := s.now().Add(-types.AuditRetention)
	out, err := s.cli.Query(ctx, &dynamodb.QueryInput{
		TableName:              &s.table,
		KeyConditionExpression: awsString("PK = :pk AND SK BETWEEN :from AND :to"),
		ExpressionAttributeValues: map[string]ddbTypes.AttributeValue{
			":pk":   &ddbTypes.AttributeValueMemberS{Value: pkUser(userID)},
			":from": &ddbTypes.AttributeValueMemberS{Value: skAuditFrom(cutoff.UnixMilli())},
			":to":   &ddbTypes.AttributeValueMemberS{Value: skAuditPrefix() + "~"},
		},
		ScanIndexForward: aws.Bool(false),
		Limit:            aws.Int32(int32(limit)),
		ConsistentRead:   awsBool(true),
	})
	if err != nil {
		return nil, err
	}
	records := make([]types.AuditRecord, 0, len(out.Items))
	for _, item := range out.Items {
		var it auditItem
		if err := attributevalue.UnmarshalMap(item, &it); err != nil {
			return nil, err
		}
		records = append(records, it.AuditRecord)
	}
	slices.Reverse(records)
	return records, nil
}
