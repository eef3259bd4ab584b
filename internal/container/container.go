// Package container assembles the service object graph and registers the
// pieces routes resolve through dependency injection. Construction is pure;
// connections are opened by the caller and passed in.
package container

import (
	"github.com/Gobusters/ectoinject"
	"github.com/Gobusters/ectologger"

	"github.com/Ramsey-B/clover/config"
	"github.com/Ramsey-B/clover/internal/repositories/lineitems"
	"github.com/Ramsey-B/clover/internal/repositories/matchaudit"
	"github.com/Ramsey-B/clover/internal/repositories/orders"
	"github.com/Ramsey-B/clover/pkg/database"
	"github.com/Ramsey-B/clover/pkg/events"
	"github.com/Ramsey-B/clover/pkg/kafka"
	"github.com/Ramsey-B/clover/pkg/matching"
	"github.com/Ramsey-B/clover/pkg/processor"
	"github.com/Ramsey-B/clover/pkg/redis"
	"github.com/Ramsey-B/clover/pkg/refindex"
)

// Container holds every constructed service dependency.
type Container struct {
	Config *config.Config
	Logger ectologger.Logger

	DB    database.DB
	Redis *redis.Client

	Orders     *orders.Repository
	LineItems  *lineitems.Repository
	MatchAudit *matchaudit.Repository

	Engine      *matching.Engine
	Loader      *refindex.Loader
	Manager     *refindex.Manager
	Producer    *kafka.Producer
	Emitter     *events.Emitter
	Idempotency *redis.Idempotency
	Processor   *processor.Processor
}

// Build wires the object graph from already-open connections. redisClient
// and Kafka brokers are optional: without redis there is no rebuild lock or
// claim deduplication, without brokers no events are published. The concrete
// nils must not reach the processor's interface fields.
func Build(cfg *config.Config, logger ectologger.Logger, db database.DB, redisClient *redis.Client) *Container {
	c := &Container{
		Config: cfg,
		Logger: logger,
		DB:     db,
		Redis:  redisClient,
	}

	c.Orders = orders.NewRepository(db, logger)
	c.LineItems = lineitems.NewRepository(db, logger)
	c.MatchAudit = matchaudit.NewRepository(db, logger)

	c.Engine = matching.NewEngine(logger)
	c.Loader = refindex.NewLoader(c.Orders, c.LineItems, logger)

	var locker refindex.Locker
	if redisClient != nil {
		locker = redisClient
		c.Idempotency = redis.NewIdempotency(redisClient, cfg.RedisIdempotencyTTL)
	}
	c.Manager = refindex.NewManager(c.Loader, logger, locker)

	if len(cfg.KafkaBrokers) > 0 {
		c.Producer = kafka.NewProducer(kafka.ProducerConfig{
			Brokers:      cfg.KafkaBrokers,
			Topic:        cfg.KafkaEventsTopic,
			BatchSize:    cfg.KafkaBatchSize,
			BatchTimeout: cfg.KafkaBatchTimeout,
			RequiredAcks: cfg.KafkaRequiredAcks,
			Compression:  cfg.KafkaCompression,
		}, logger)
		c.Emitter = events.NewEmitter(c.Producer, logger)
	}

	var emitter processor.EventEmitter
	if c.Emitter != nil {
		emitter = c.Emitter
	}
	var guard processor.IdempotencyGuard
	if c.Idempotency != nil {
		guard = c.Idempotency
	}

	c.Processor = processor.NewProcessor(
		logger,
		c.Engine,
		c.Manager,
		c.MatchAudit,
		emitter,
		guard,
		cfg.MatchWorkerCount,
		cfg.BatchReportRetention,
	)

	return c
}

// RegisterDI exposes the dependencies routes resolve from request context.
func (c *Container) RegisterDI() error {
	di, err := ectoinject.NewDIDefaultContainer()
	if err != nil {
		return err
	}

	if err := ectoinject.AddSingletonInstance[*processor.Processor](di, c.Processor); err != nil {
		return err
	}
	if err := ectoinject.AddSingletonInstance[*refindex.Manager](di, c.Manager); err != nil {
		return err
	}
	if err := ectoinject.AddSingletonInstance[*matchaudit.Repository](di, c.MatchAudit); err != nil {
		return err
	}
	return nil
}
