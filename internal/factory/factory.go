package factory

import (
	"context"
	"fmt"
	"sync"
	"time"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/kms"
	"github.com/go-playground/validator/v10"

	"expense-bff/internal/audit"
	"expense-bff/internal/bucketing"
	"expense-bff/internal/client"
	"expense-bff/internal/config"
	"expense-bff/internal/encryption"
	"expense-bff/internal/hashing"
	"expense-bff/internal/oauthstate"
	"expense-bff/internal/provider"
	"expense-bff/internal/provider/google"
	"expense-bff/internal/provider/salesforce"
	"expense-bff/internal/repository"
	"expense-bff/internal/repository/memory"
	"expense-bff/internal/repository/redischal"
	"expense-bff/internal/repository/scylla"
	"expense-bff/internal/service"
	"expense-bff/internal/util"
)

// Factory manages the lifecycle of all application dependencies. Optional
// backends (Redis, Scylla, Kafka, KMS, Resend) are attached when configured
// and replaced by in-process fallbacks when not.
type Factory struct {
	config *config.Config

	// Clients
	redisClient   *client.RedisClient
	scyllaClient  *scylla.ScyllaClient
	kafkaProducer *client.KafkaProducer
	resendClient  *client.ResendClient

	// Managers
	hasher            *hashing.Hasher
	encryptionManager *encryption.EncryptionManager
	bucketingManager  *bucketing.BucketingManager

	// Stores
	memoryStore    *memory.Store
	profileStore   repository.ProfileStore
	connectionStore repository.ConnectionStore
	challengeStore repository.ChallengeStore

	// Domain
	auditPublisher *audit.Publisher
	stateCodec     *oauthstate.Codec
	googleClient   *google.Client
	sfdcClient     *salesforce.Client
	validate       *validator.Validate

	services *service.ServiceFactory

	closeOnce sync.Once
	closed    chan struct{}
}

// NewFactory creates and initializes all application dependencies
func NewFactory() (*Factory, error) {
	cfg := config.LoadConfig()

	util.Init(cfg.Environment, cfg.Logging.Level, cfg.Logging.Format)

	factory := &Factory{
		config: cfg,
		closed: make(chan struct{}),
	}

	if err := factory.initializeClients(); err != nil {
		return nil, fmt.Errorf("failed to initialize clients: %w", err)
	}

	factory.initializeManagers()
	factory.initializeStores()
	factory.initializeDomain()

	util.Info("Factory initialized successfully",
		util.String("environment", cfg.Environment),
		util.Bool("persistent_store", cfg.HasPersistentStore()),
		util.Bool("mail_enabled", cfg.MailEnabled()),
		util.Bool("kms_enabled", cfg.KMS.Enabled),
	)

	return factory, nil
}

// initializeClients initializes the configured external clients with health
// checks. In development a failing optional backend degrades to the
// in-process fallback instead of aborting startup.
func (f *Factory) initializeClients() error {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	var initErrors []error

	if f.config.Redis.URL != "" {
		if redisClient, err := client.NewRedisClient(f.config, util.Get()); err != nil {
			initErrors = append(initErrors, fmt.Errorf("redis: %w", err))
		} else {
			f.redisClient = redisClient
			if err := f.redisClient.HealthCheck(ctx); err != nil {
				initErrors = append(initErrors, fmt.Errorf("redis health check: %w", err))
				f.redisClient = nil
			} else {
				util.Info("Redis client initialized and healthy")
			}
		}
	}

	if f.config.HasPersistentStore() {
		if scyllaClient, err := scylla.NewScyllaClient(f.config, util.Get()); err != nil {
			initErrors = append(initErrors, fmt.Errorf("scylla: %w", err))
		} else {
			f.scyllaClient = scyllaClient
			if err := f.scyllaClient.HealthCheck(); err != nil {
				initErrors = append(initErrors, fmt.Errorf("scylla health check: %w", err))
				f.scyllaClient = nil
			} else {
				util.Info("ScyllaDB client initialized and healthy")
			}
		}
	}

	if len(f.config.Kafka.Brokers) > 0 {
		if producer, err := client.NewKafkaProducer(f.config, util.Get()); err != nil {
			util.Warn("Kafka producer initialization failed - proceeding without audit events", util.ErrorField(err))
		} else {
			f.kafkaProducer = producer
		}
	}

	if f.config.MailEnabled() {
		f.resendClient = client.NewResendClient(f.config, util.Get())
		util.Info("Resend client initialized")
	} else {
		util.Warn("RESEND_API_KEY not set - passcodes will be logged, not emailed")
	}

	if len(initErrors) > 0 {
		if f.config.IsProduction() {
			return fmt.Errorf("critical service initialization failed: %v", initErrors)
		}
		for _, err := range initErrors {
			util.Warn("Service initialization warning, falling back to in-memory store", util.ErrorField(err))
		}
	}

	return nil
}

// initializeManagers initializes hashing, encryption, and bucketing managers
func (f *Factory) initializeManagers() {
	f.hasher = hashing.NewHasher(f.config)

	var kmsClient *kms.Client
	if f.config.KMS.Enabled {
		awsCfg, err := awsconfig.LoadDefaultConfig(context.Background(),
			awsconfig.WithRegion(f.config.KMS.Region))
		if err != nil {
			util.Warn("Failed to load AWS config - using local encryption keys", util.ErrorField(err))
		} else {
			kmsClient = kms.NewFromConfig(awsCfg)
			util.Info("KMS client initialized", util.String("region", f.config.KMS.Region))
		}
	}

	f.encryptionManager = encryption.NewEncryptionManager(f.config, kmsClient)
	f.bucketingManager = bucketing.NewBucketingManager(f.config)
}

// initializeStores selects the persistent implementations where backends
// are available and the process-local memory store otherwise.
func (f *Factory) initializeStores() {
	f.memoryStore = memory.NewStore()

	if f.scyllaClient != nil {
		f.profileStore = scylla.NewProfileRepository(f.scyllaClient, f.bucketingManager, util.Get())
		f.connectionStore = scylla.NewConnectionRepository(f.scyllaClient, f.bucketingManager, util.Get())
	} else {
		f.profileStore = f.memoryStore
		f.connectionStore = f.memoryStore
	}

	if f.redisClient != nil {
		f.challengeStore = redischal.NewChallengeCache(f.redisClient)
	} else {
		f.challengeStore = f.memoryStore
	}
}

func (f *Factory) initializeDomain() {
	f.auditPublisher = audit.NewPublisher(f.kafkaProducer, f.config.Kafka.AuditTopic, util.Get())
	f.stateCodec = oauthstate.NewCodec(f.config.StateSecret)
	f.googleClient = google.NewClient(f.config.Google, util.Get())
	f.sfdcClient = salesforce.NewClient(f.config.Salesforce, util.Get())
	f.validate = validator.New()
}

// ServiceFactory lazily assembles the service layer.
func (f *Factory) ServiceFactory() *service.ServiceFactory {
	if f.services == nil {
		var mailer service.Mailer
		if f.resendClient != nil {
			mailer = f.resendClient
		}

		googleRunner := provider.NewRunner(f.googleClient, util.Get())
		sfdcRunner := provider.NewRunner(f.sfdcClient, util.Get())

		f.services = service.NewServiceFactory(service.Deps{
			Config:          f.config,
			Profiles:        f.profileStore,
			Connections:     f.connectionStore,
			Challenges:      f.challengeStore,
			Hasher:          f.hasher,
			Encryption:      f.encryptionManager,
			Mailer:          mailer,
			Audit:           f.auditPublisher,
			StateCodec:      f.stateCodec,
			Google:          f.googleClient,
			Salesforce:      f.sfdcClient,
			GoogleRunner:    googleRunner,
			SalesforceRunner: sfdcRunner,
			Logger:          util.Get(),
		})
	}
	return f.services
}

func (f *Factory) HealthCheck(ctx context.Context) map[string]error {
	healthErrors := make(map[string]error)

	if f.redisClient != nil {
		if err := f.redisClient.HealthCheck(ctx); err != nil {
			healthErrors["redis"] = err
		}
	}
	if f.scyllaClient != nil {
		if err := f.scyllaClient.HealthCheck(); err != nil {
			healthErrors["scylla"] = err
		}
	}
	if f.kafkaProducer != nil {
		if err := f.kafkaProducer.HealthCheck(ctx); err != nil {
			healthErrors["kafka"] = err
		}
	}

	return healthErrors
}

func (f *Factory) IsHealthy(ctx context.Context) bool {
	healthErrors := f.HealthCheck(ctx)
	delete(healthErrors, "kafka")
	return len(healthErrors) == 0
}

func (f *Factory) Close() error {
	f.closeOnce.Do(func() {
		close(f.closed)
		util.Info("Shutting down factory...")

		if f.kafkaProducer != nil {
			if err := f.kafkaProducer.Close(); err != nil {
				util.Error("Failed to close Kafka producer", util.ErrorField(err))
			}
		}

		if f.scyllaClient != nil {
			f.scyllaClient.Close()
			util.Info("ScyllaDB client closed")
		}

		if f.redisClient != nil {
			if err := f.redisClient.Close(); err != nil {
				util.Error("Failed to close Redis client", util.ErrorField(err))
			} else {
				util.Info("Redis client closed")
			}
		}

		if f.encryptionManager != nil {
			f.encryptionManager.ClearCache()
		}

		util.Sync()
		util.Info("Factory shutdown completed")
	})

	return nil
}

func (f *Factory) WaitForClose() {
	<-f.closed
}

func (f *Factory) Config() *config.Config {
	return f.config
}

func (f *Factory) Validator() *validator.Validate {
	return f.validate
}
