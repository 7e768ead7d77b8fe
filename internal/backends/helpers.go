package backends

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"fmt"
	"notigate/internal/backends/ddb"
	"notigate/internal/backends/memory"
	"notigate/internal/config"
	"notigate/internal/flow"
	"notigate/internal/ports"
	"notigate/internal/types"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/redis/go-redis/v9"
	log "github.com/sirupsen/logrus"

	redisbackend "notigate/internal/backends/redis"
)

const AmazonRootCA1PEM = `-----BEGIN CERTIFICATE-----
MIIDQTCCAimgAwIBAgITBmyfz5m/jAo54vB4ikPmljZbyjANBgkqhkiG9w0BAQsF
ADA5MQswCQYDVQQGEwJVUzEPMA0GA1UEChMGQW1hem9uMRkwFwYDVQQDExBBbWF6
b24gUm9vdCBDQSAxMB4XDTE1MDUyNjAwMDAwMFoXDTM4MDExNzAwMDAwMFowOTEL
MAkGA1UEBhMCVVMxDzANBgNVBAoTBkFtYXpvbjEZMBcGA1UEAxMQQW1hem9uIFJv
b3QgQ0EgMTCCASIwDQYJKoZIhvcNAQEBBQADggEPADCCAQoCggEBALJ4gHHKeNXj
ca9HgFB0fW7Y14h29Jlo91ghYPl0hAEvrAIthtOgQ3pOsqTQNroBvo3bSMgHFzZM
9O6II8c+6zf1tRn4SWiw3te5djgdYZ6k/oI2peVKVuRF4fn9tBb6dNqcmzU5L/qw
IFAGbHrQgLKm+a/sRxmPUDgH3KKHOVj4utWp+UhnMJbulHheb4mjUcAwhmahRWa6
VOujw5H5SNz/0egwLX0tdHA114gk957EWW67c4cX8jJGKLhD+rcdqsq08p8kDi1L
93FcXmn/6pUCyziKrlA4b9v7LWIbxcceVOF34GfID5yHI9Y/QCB/IIDEgEw+OyQm
jgSubJrIqg0CAwEAAaNCMEAwDwYDVR0TAQH/BAUwAwEB/zAOBgNVHQ8BAf8EBAMC
AYYwHQYDVR0OBBYEFIQYzIU07LwMlJQuCFmcx7IQTgoIMA0GCSqGSIb3DQEBCwUA
A4IBAQCY8jdaQZChGsV2USggNiMOruYou6r4lK5IpDB/G/wkjUu0yKGX9rbxenDI
U5PMCCjjmCXPI6T53iHTfIUJrU6adTrCC2qJeHZERxhlbI1Bjjt/msv0tadQ1wUs
N+gDS63pYaACbvXy8MWy7Vu33PqUXHeeE6V/Uq2V8viTO96LXFvKWlJbYK8U90vv
o/ufQJVtMVT8QtPHRh8jrdkPSHCa2XV4cdFyQzR1bldZwgJcJmApzyMZFo6IQ6XU
5MsI+yMRQ+hDKXJioaldXgjUkK642M4UwtBV8ob2xJNDd2ZhwLnoQdeXeGADbkpy
rqXRfboQnoZsG4q5WTP468SQvvG5
-----END CERTIFICATE-----`

// factory builds each client at most once so backends that share a kind share a connection.
type factory struct {
	s     config.Settings
	mem   *memory.StateStore
	rdb   *redisbackend.StateStore
	ddbCl *dynamodb.Client
}

// StateStoreFromSettings assembles the StateStore the settings describe. Windows live in memory or
// Redis; rules and audit may each be placed on memory, Redis or DynamoDB. Remote rule stores are
// fronted by a CachedRuleStore.
func StateStoreFromSettings(ctx context.Context, s config.Settings) (ports.StateStore, error) {
	f := &factory{s: s}

	window, err := f.window(ctx)
	if err != nil {
		return nil, err
	}
	rules, err := f.rules(ctx)
	if err != nil {
		return nil, err
	}
	audit, err := f.audit(ctx)
	if err != nil {
		return nil, err
	}
	log.WithFields(log.Fields{
		"state": s.StateBackend,
		"rules": s.RulesBackendOrDefault(),
		"audit": s.AuditBackendOrDefault(),
	}).Info("backends ready")
	return Compose(rules, window, audit), nil
}

func (f *factory) window(ctx context.Context) (ports.WindowStore, error) {
	switch f.s.StateBackend {
	case config.BackendMemory, "":
		return f.memory(), nil
	case config.BackendRedis:
		return f.redis(ctx)
	default:
		return nil, types.Err(types.ErrInvalidBackend, nil, "state backend %q", f.s.StateBackend)
	}
}

func (f *factory) rules(ctx context.Context) (ports.RuleStore, error) {
	switch kind := f.s.RulesBackendOrDefault(); kind {
	case config.BackendMemory, "":
		return f.memory(), nil
	case config.BackendRedis:
		r, err := f.redis(ctx)
		if err != nil {
			return nil, err
		}
		return flow.NewCachedRuleStore(r, f.s.RulesCacheTTL), nil
	case config.BackendDDB:
		cli, err := f.dynamo(ctx)
		if err != nil {
			return nil, err
		}
		return flow.NewCachedRuleStore(ddb.NewRuleStore(f.s.DDBTable, cli), f.s.RulesCacheTTL), nil
	default:
		return nil, types.Err(types.ErrInvalidBackend, nil, "rules backend %q", kind)
	}
}

func (f *factory) audit(ctx context.Context) (ports.AuditStore, error) {
	switch kind := f.s.AuditBackendOrDefault(); kind {
	case config.BackendMemory, "":
		return f.memory(), nil
	case config.BackendRedis:
		return f.redis(ctx)
	case config.BackendDDB:
		cli, err := f.dynamo(ctx)
		if err != nil {
			return nil, err
		}
		return ddb.NewAuditStore(f.s.DDBTable, cli), nil
	default:
		return nil, types.Err(types.ErrInvalidBackend, nil, "audit backend %q", kind)
	}
}

func (f *factory) memory() *memory.StateStore {
	if f.mem == nil {
		f.mem = memory.NewStateStore(memory.WithDedupeSweep(f.s.DedupeSweepInterval))
	}
	return f.mem
}

func (f *factory) redis(ctx context.Context) (*redisbackend.StateStore, error) {
	if f.rdb == nil {
		cli, err := redisClient(ctx, f.s)
		if err != nil {
			return nil, err
		}
		f.rdb = redisbackend.NewStateStore(cli)
	}
	return f.rdb, nil
}

func (f *factory) dynamo(ctx context.Context) (*dynamodb.Client, error) {
	if f.ddbCl == nil {
		cli, err := dynamoClient(ctx, f.s)
		if err != nil {
			return nil, err
		}
		f.ddbCl = cli
	}
	return f.ddbCl, nil
}

// AWSConfig loads the default AWS config; the region setting applies when the chain has none.
func AWSConfig(ctx context.Context, s config.Settings) (aws.Config, error) {
	return awsconfig.LoadDefaultConfig(ctx, awsconfig.WithDefaultRegion(s.AWSRegion))
}

// dynamoClient creates a DynamoDB client. A DDB_ENDPOINT points it at a local emulator with
// static credentials.
func dynamoClient(ctx context.Context, s config.Settings) (*dynamodb.Client, error) {
	awsCfg, err := AWSConfig(ctx, s)
	if err != nil {
		return nil, err
	}
	return dynamodb.NewFromConfig(awsCfg, func(o *dynamodb.Options) {
		if s.DDBEndpoint != "" {
			// This is used for testing only locally
			o.BaseEndpoint = aws.String(s.DDBEndpoint)
			o.Region = s.AWSRegion
			o.Credentials = credentials.NewStaticCredentialsProvider("x", "x", "")
		}
	}), nil
}

func redisClient(ctx context.Context, s config.Settings) (*redis.Client, error) {
	var tlsConfig *tls.Config
	if s.RedisSSL {
		// Create a CA certificate pool and add our CA certificate
		caCerts := x509.NewCertPool()
		if !caCerts.AppendCertsFromPEM([]byte(AmazonRootCA1PEM)) {
			return nil, fmt.Errorf("failed to retrieve CA certificate")
		}
		tlsConfig = &tls.Config{
			MinVersion: tls.VersionTLS12,
			RootCAs:    caCerts,
		}
	}

	cli := redis.NewClient(&redis.Options{
		Addr:      fmt.Sprintf("%s:%s", s.RedisHost, s.RedisPort),
		Username:  s.RedisUser,
		Password:  s.RedisPass,
		DB:        s.RedisDBNum,
		TLSConfig: tlsConfig,
	})
	if _, err := cli.Ping(ctx).Result(); err != nil {
		return nil, types.Err(types.ErrDataStoreAccess, err, "failed to ping Redis")
	}
	return cli, nil
}
