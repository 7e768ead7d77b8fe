package main

import (
	"context"
	"notigate/cmd/notigate/cmds"
	"notigate/internal/api"
	"notigate/internal/backends"
	"notigate/internal/config"
	"notigate/internal/flow"
	"notigate/internal/metrics"
	"notigate/internal/ports"
	"notigate/internal/pub"
	"os"
	"os/signal"
	"syscall"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/sns"
	log "github.com/sirupsen/logrus"
)

func main() {
	settings, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to read settings: %v", err)
	}
	settings.ConfigureLogging()

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	store, err := backends.StateStoreFromSettings(ctx, settings)
	if err != nil {
		log.Fatalf("Failed to initialize state store: %v", err)
	}

	if settings.RulesFile != "" {
		cfg, err := cmds.PutRules(ctx, store, settings.RulesFile)
		if err != nil {
			log.Fatalf("Failed to seed rules: %v", err)
		}
		log.WithField("policy_version", cfg.PolicyVersion).Info("rules seeded from file")
		if settings.RulesWatch {
			go func() {
				if err := cmds.WatchRules(ctx, store, settings.RulesFile, cmds.DefaultReloadDebounce); err != nil {
					log.WithError(err).Error("rules watcher stopped")
				}
			}()
		}
	}

	var stats ports.StatsReporter
	if r, ok := store.(ports.StatsReporter); ok {
		stats = r
	}
	m := metrics.New(stats)

	opts := []api.ServiceOption{api.WithMetrics(m)}
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
		publisher, err := snsPublisher(ctx, settings)
		if err != nil {
			log.Fatalf("Failed to initialize SNS publisher: %v", err)
		}
		opts = append(opts, api.WithPublisher(publisher, settings.DecisionTopicARN))
	}

	svc := api.NewService(flow.NewEngine(store), opts...)
	h := api.NewHandler(svc, m.Handler(), api.NewLimiter(settings.RateLimitRPS, settings.RateLimitBurst))

	stop, done := api.RunServerInterruptible(settings.Port, h)
	select {
	case <-ctx.Done():
		log.Info("shutting down")
		close(stop)
		if err := <-done; err != nil {
			log.WithError(err).Error("server stopped with error")
		}
	case err := <-done:
		if err != nil {
			log.Fatalf("Server failed: %v", err)
		}
	}
}

func snsPublisher(ctx context.Context, s config.Settings) (*pub.SNS, error) {
	awsCfg, err := backends.AWSConfig(ctx, s)
	if err != nil {
		return nil, err
	}
	cli := sns.NewFromConfig(awsCfg, func(o *sns.Options) {
		if s.SNSEndpoint != "" {
			o.BaseEndpoint = aws.String(s.SNSEndpoint)
			o.Credentials = credentials.NewStaticCredentialsProvider("test", "test", "")
		}
	})
	return pub.NewSNS(cli), nil
}
