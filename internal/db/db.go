// Package db bootstraps the Scylla/Cassandra keyspace used by the settings store.
package db

import (
	"fmt"
	"strings"
	"time"

	"github.com/gocql/gocql"
	"github.com/rs/zerolog"
)

type ScyllaConfig struct {
	Hosts       []string
	Port        int
	Keyspace    string
	Consistency string
	Replication int
}

// Connect ensures the keyspace exists and returns a session bound to it.
func Connect(cfg ScyllaConfig, log zerolog.Logger) (*gocql.Session, error) {
	cluster := gocql.NewCluster(cfg.Hosts...)
	if cfg.Port > 0 {
		cluster.Port = cfg.Port
	}
	cluster.Timeout = 5 * time.Second
	cluster.Consistency = ParseConsistency(cfg.Consistency)

	tmpSession, err := cluster.CreateSession()
	if err != nil {
		return nil, err
	}
	defer tmpSession.Close()

	created := false
	for i := 0; i < 10; i++ {
		if err := EnsureKeyspace(tmpSession, cfg.Keyspace, cfg.Replication); err != nil {
			log.Warn().Err(err).Int("attempt", i+1).Msg("ensure keyspace retry")
			time.Sleep(3 * time.Second)
			continue
		}
		created = true
		break
	}
	if !created {
		return nil, fmt.Errorf("unable to ensure keyspace %s", cfg.Keyspace)
	}

	cluster.Keyspace = cfg.Keyspace
	return cluster.CreateSession()
}

func EnsureKeyspace(session *gocql.Session, keyspace string, replicationFactor int) error {
	if replicationFactor <= 0 {
		replicationFactor = 3
	}
	stmt := fmt.Sprintf("CREATE KEYSPACE IF NOT EXISTS %s WITH replication = {'class': 'SimpleStrategy', 'replication_factor': %d}", keyspace, replicationFactor)
	return session.Query(stmt).Exec()
}

// SettingsTable is the CQL for the single-row settings table.
func SettingsTable(keyspace string) string {
	return fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s.app_settings (
			id int PRIMARY KEY,
			latest_movie_ids list<bigint>,
			updated_at timestamp
		)`, keyspace)
}

func EnsureSchema(session *gocql.Session, keyspace string) error {
	return session.Query(SettingsTable(keyspace)).Exec()
}

func ParseConsistency(c string) gocql.Consistency {
	switch strings.ToUpper(strings.TrimSpace(c)) {
	case "ONE":
		return gocql.One
	case "LOCAL_ONE":
		return gocql.LocalOne
	case "LOCAL_QUORUM":
		return gocql.LocalQuorum
	case "ALL":
		return gocql.All
	default:
		return gocql.Quorum
	}
}
