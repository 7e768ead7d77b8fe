package ddb

import (
	"context"
	"errors"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	ddbTypes "github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	log "github.com/sirupsen/logrus"
)

const (
	SRules  = "RULES"
	SActive = "ACTIVE"
	SUser   = "USER"
	SAudit  = "AUDIT"

	ttlAttribute = "ttl"
)

func pkRules() string                 { return SRules }
func skActive() string                { return SActive }
func pkUser(userID string) string     { return fmt.Sprintf("%s#%s", SUser, userID) }
func skAuditPrefix() string           { return SAudit + "#" }
func skAuditFrom(unixMs int64) string { return fmt.Sprintf("%s#%020d", SAudit, unixMs) }

// skAudit sorts lexically by creation time; the id keeps records of the same millisecond apart.
func skAudit(unixMs int64, id string) string {
	return fmt.Sprintf("%s#%s", skAuditFrom(unixMs), id)
}

func createTableIfNotExists(client *dynamodb.Client, table string) {
	_, err := client.CreateTable(context.Background(), &dynamodb.CreateTableInput{
		TableName: &table,
		AttributeDefinitions: []ddbTypes.AttributeDefinition{
			{AttributeName: awsString("PK"), AttributeType: ddbTypes.ScalarAttributeTypeS},
			{AttributeName: awsString("SK"), AttributeType: ddbTypes.ScalarAttributeTypeS},
		},
		KeySchema: []ddbTypes.KeySchemaElement{
			{AttributeName: awsString("PK"), KeyType: ddbTypes.KeyTypeHash},
			{AttributeName: awsString("SK"), KeyType: ddbTypes.KeyTypeRange},
		},
		BillingMode: ddbTypes.BillingModePayPerRequest,
	})
	var re *ddbTypes.ResourceInUseException
	if err != nil && !errors.As(err, &re) {
		log.Fatalf("Failed to create table %s: %v", table, err)
	}
	if err == nil {
		enableTTL(client, table)
	}
}

// enableTTL lets DynamoDB expire audit rows on its own. Failure only means rows outlive the horizon;
// reads still bound by creation time.
func enableTTL(client *dynamodb.Client, table string) {
	err := dynamodb.NewTableExistsWaiter(client).Wait(context.Background(), &dynamodb.DescribeTableInput{
		TableName: &table,
	}, tableWaitTimeout)
	if err == nil {
		_, err = client.UpdateTimeToLive(context.Background(), &dynamodb.UpdateTimeToLiveInput{
			TableName: &table,
			TimeToLiveSpecification: &ddbTypes.TimeToLiveSpecification{
				AttributeName: awsString(ttlAttribute),
				Enabled:       awsBool(true),
			},
		})
	}
	if err != nil {
		log.WithError(err).Warnf("could not enable ttl on table %s", table)
	}
}

func awsString(s string) *string { return &s }
func awsBool(b bool) *bool       { return &b }
