package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/socialdistance/socialdistance/activitypub"
	"github.com/socialdistance/socialdistance/cache"
	"github.com/socialdistance/socialdistance/db"
	"github.com/socialdistance/socialdistance/events"
	"github.com/socialdistance/socialdistance/logging"
	"github.com/socialdistance/socialdistance/service"
	"github.com/socialdistance/socialdistance/util"
	"github.com/socialdistance/socialdistance/web"
)

func main() {
	conf, err := util.ReadConf()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	logging.Init(logging.Config{
		Level:       conf.Conf.LogLevel,
		Pretty:      conf.Conf.LogPretty,
		ServiceName: util.Name,
	})
	logger := logging.L()
	logger.Info().
		Str("version", util.GetNameAndVersion()).
		Str("public_url", conf.Conf.PublicUrl).
		Bool("federation", conf.Conf.WithFederation).
		Msg("starting")

	if err := run(conf); err != nil {
		logger.Fatal().Err(err).Msg("server stopped")
	}
}

func run(conf *util.AppConfig) error {
	logger := logging.L()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	database, err := db.Open(conf.Conf.Database)
	if err != nil {
		return err
	}
	defer database.Close()
	logger.Info().Str("path", conf.Conf.Database).Msg("database ready")

	var followers cache.FollowerCounts
	if addr := conf.Conf.Redis.Address; addr != "" {
		rc, err := cache.NewRedisFollowerCounts(ctx, addr, conf.Conf.Redis.Password, conf.Conf.Redis.DB, cache.DefaultTTL)
		if err != nil {
			return err
		}
		followers = rc
		logger.Info().Str("address", addr).Msg("follower counts cached in redis")
	} else {
		followers = cache.NewMemoryFollowerCounts(cache.DefaultTTL)
	}
	defer followers.Close()

	var publisher events.Publisher
	if brokers := conf.Conf.Kafka.Brokers; len(brokers) > 0 {
		kp, err := events.NewKafkaPublisher(events.KafkaConfig{Brokers: brokers, Topic: conf.Conf.Kafka.Topic})
		if err != nil {
			return err
		}
		publisher = kp
		logger.Info().Strs("brokers", brokers).Str("topic", conf.Conf.Kafka.Topic).Msg("publishing events to kafka")
	} else {
		publisher = events.NewLogPublisher(logging.Component("events"))
	}
	defer publisher.Close()

	client := activitypub.NewClient(conf, 30*time.Second)
	svc := service.New(service.Options{
		DB:             database,
		BaseURL:        conf.Conf.PublicUrl,
		Federate:       conf.Conf.WithFederation,
		Fetcher:        client,
		FollowerCounts: followers,
		Events:         publisher,
	})

	if conf.Conf.WithFederation {
		worker := activitypub.NewDeliveryWorker(database, client, conf.Conf.DeliveryInterval)
		go worker.Run(ctx)
	}

	srv := &http.Server{
		Addr:              fmt.Sprintf("%s:%d", conf.Conf.Host, conf.Conf.HttpPort),
		Handler:           web.Router(ctx, conf, svc),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info().Str("addr", srv.Addr).Msg("http server listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	logger.Info().Msg("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}
