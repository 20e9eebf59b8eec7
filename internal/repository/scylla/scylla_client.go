package scylla

import (
	"fmt"
	"sync"
	"time"

	"github.com/gocql/gocql"
	"go.uber.org/zap"

	"expense-bff/internal/config"
	"expense-bff/internal/util"
)

// PreparedStatements holds prepared statements used by the repositories.
type PreparedStatements struct {
	UpsertProfile *gocql.Query
	GetProfile    *gocql.Query

	SaveToken  *gocql.Query
	GetToken   *gocql.Query
	ClearToken *gocql.Query
}

type ScyllaClient struct {
	Session      *gocql.Session
	config       *config.ScyllaConfig
	Prepared     *PreparedStatements
	prepareMutex sync.Mutex
	isPrepared   bool
}

func NewScyllaClient(cfg *config.Config, logger *zap.Logger) (*ScyllaClient, error) {
	scyllaConfig := cfg.Scylla

	cluster := gocql.NewCluster(scyllaConfig.Nodes...)
	cluster.Keyspace = scyllaConfig.Keyspace
	cluster.Consistency = gocql.LocalQuorum
	cluster.Timeout = 10 * time.Second
	cluster.ConnectTimeout = 10 * time.Second
	cluster.NumConns = 4
	cluster.SocketKeepalive = 30 * time.Second
	cluster.RetryPolicy = &gocql.ExponentialBackoffRetryPolicy{
		Min:        time.Second,
		Max:        10 * time.Second,
		NumRetries: 3,
	}

	if scyllaConfig.Username != "" && scyllaConfig.Password != "" {
		cluster.Authenticator = gocql.PasswordAuthenticator{
			Username: scyllaConfig.Username,
			Password: scyllaConfig.Password,
		}
	}

	session, err := cluster.CreateSession()
	if err != nil {
		return nil, fmt.Errorf("failed to create scylla session: %w", err)
	}

	client := &ScyllaClient{
		Session: session,
		config:  &scyllaConfig,
	}

	if err := client.prepareStatements(); err != nil {
		session.Close()
		return nil, fmt.Errorf("failed to prepare statements: %w", err)
	}

	util.Info("ScyllaDB client initialized with prepared statements",
		zap.Strings("nodes", scyllaConfig.Nodes),
		zap.String("keyspace", scyllaConfig.Keyspace))

	return client, nil
}

func (s *ScyllaClient) prepareStatements() error {
	s.prepareMutex.Lock()
	defer s.prepareMutex.Unlock()

	if s.isPrepared {
		return nil
	}

	prepared := &PreparedStatements{}

	prepared.UpsertProfile = s.Session.Query(`
        INSERT INTO profiles (
            email_bucket, email, name_kanji, name_alphabet, default_timing,
            created_at, updated_at
        ) VALUES (?, ?, ?, ?, ?, ?, ?)`)

	prepared.GetProfile = s.Session.Query(`
        SELECT email, name_kanji, name_alphabet, default_timing, created_at, updated_at
        FROM profiles WHERE email_bucket = ? AND email = ?`)

	prepared.SaveToken = s.Session.Query(`
        INSERT INTO provider_tokens (email_bucket, email, provider, payload, updated_at)
        VALUES (?, ?, ?, ?, ?)`)

	prepared.GetToken = s.Session.Query(`
        SELECT payload FROM provider_tokens
        WHERE email_bucket = ? AND email = ? AND provider = ?`)

	prepared.ClearToken = s.Session.Query(`
        DELETE FROM provider_tokens
        WHERE email_bucket = ? AND email = ? AND provider = ?`)

	s.Prepared = prepared
	s.isPrepared = true
	return nil
}

func (s *ScyllaClient) HealthCheck() error {
	if s.Session == nil {
		return fmt.Errorf("scylla session not initialized")
	}
	return s.Session.Query("SELECT release_version FROM system.local").Exec()
}

func (s *ScyllaClient) Close() {
	if s.Session != nil {
		s.Session.Close()
	}
}
