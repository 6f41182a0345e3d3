// Package test runs a disposable postgres container for store tests.
package test

import (
	"database/sql"
	"fmt"
	"net"
	"strconv"
	"time"

	"github.com/ory/dockertest/v3"
	"github.com/ory/dockertest/v3/docker"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	pg "github.com/code-payments/code-escrow/pkg/database/postgres"
	"github.com/code-payments/code-escrow/pkg/retry"
	"github.com/code-payments/code-escrow/pkg/retry/backoff"
)

const (
	repository = "postgres"
	tag        = "15-alpine"

	// Containers outliving a crashed test binary are killed after this long.
	expiry = 120 * time.Second

	port     = 5432
	user     = "localtest"
	password = "localpassword"
	dbname   = "escrowdb"
)

// StartPostgresDB starts a postgres container and returns a connection to it
// once it accepts queries, along with the settings to reach it. closeFunc
// removes the container.
func StartPostgresDB(pool *dockertest.Pool) (db *sql.DB, cfg *pg.Config, closeFunc func(), err error) {
	closeFunc = func() {}

	resource, err := pool.RunWithOptions(&dockertest.RunOptions{
		Repository: repository,
		Tag:        tag,
		Env: []string{
			"POSTGRES_USER=" + user,
			"POSTGRES_PASSWORD=" + password,
			"POSTGRES_DB=" + dbname,
		},
	}, func(config *docker.HostConfig) {
		config.AutoRemove = true
		config.RestartPolicy = docker.RestartPolicy{Name: "no"}
	})
	if err != nil {
		return nil, nil, closeFunc, errors.Wrap(err, "failed to start postgres container")
	}

	closeFunc = func() {
		if err := pool.Purge(resource); err != nil {
			logrus.StandardLogger().WithError(err).Warn("failed to purge postgres container")
		}
	}

	// Expire never fails
	_ = resource.Expire(uint(expiry.Seconds()))

	host, rawPort, err := net.SplitHostPort(resource.GetHostPort(fmt.Sprintf("%d/tcp", port)))
	if err != nil {
		closeFunc()
		return nil, nil, func() {}, errors.Wrap(err, "invalid postgres host address")
	}
	hostPort, err := strconv.Atoi(rawPort)
	if err != nil {
		closeFunc()
		return nil, nil, func() {}, errors.Wrap(err, "invalid postgres host port")
	}

	cfg = &pg.Config{
		Host:     host,
		Port:     hostPort,
		User:     user,
		Password: password,
		DbName:   dbname,
		SslMode:  "disable",
	}

	_, err = retry.Retry(
		func() error {
			db, err = pg.Open(cfg)
			return err
		},
		retry.Limit(60),
		retry.Backoff(backoff.Constant(500*time.Millisecond), time.Second),
	)
	if err != nil {
		closeFunc()
		return nil, nil, func() {}, errors.Wrap(err, "timed out waiting for postgres container")
	}

	return db, cfg, closeFunc, nil
}
