// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Playgate Contributors

//go:build integration

package store_test

import (
	"context"
	"time"

	. "github.com/onsi/ginkgo/v2" //nolint:revive // ginkgo convention
	. "github.com/onsi/gomega"    //nolint:revive // gomega convention
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/mysql"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/playgate/playgate/internal/store"
)

// startPostgres starts a PostgreSQL container and returns its URL.
func startPostgres(ctx context.Context) (string, func(), error) {
	container, err := postgres.Run(ctx,
		"postgres:16-alpine",
		postgres.WithDatabase("playgate_test"),
		postgres.WithUsername("playgate"),
		postgres.WithPassword("playgate"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(30*time.Second),
		),
	)
	if err != nil {
		return "", nil, err
	}
	connStr, err := container.ConnectionString(ctx, "sslmode=disable")
	if err != nil {
		_ = container.Terminate(ctx)
		return "", nil, err
	}
	return connStr, func() { _ = container.Terminate(ctx) }, nil
}

// startMySQL starts a MySQL container and returns its DSN.
func startMySQL(ctx context.Context) (string, func(), error) {
	container, err := mysql.Run(ctx,
		"mysql:8.4",
		mysql.WithDatabase("playgate_test"),
		mysql.WithUsername("playgate"),
		mysql.WithPassword("playgate"),
	)
	if err != nil {
		return "", nil, err
	}
	dsn, err := container.ConnectionString(ctx, "parseTime=true", "loc=UTC")
	if err != nil {
		_ = container.Terminate(ctx)
		return "", nil, err
	}
	return dsn, func() { _ = container.Terminate(ctx) }, nil
}

type dialect struct {
	driver store.Driver
	start  func(context.Context) (string, func(), error)
}

var _ = Describe("Migrator", func() {
	for _, d := range []dialect{
		{store.DriverPostgres, startPostgres},
		{store.DriverMySQL, startMySQL},
	} {
		Context(string(d.driver), Ordered, func() {
			var (
				migrator *store.Migrator
				cleanup  func()
				latest   uint
			)

			BeforeAll(func() {
				url, stop, err := d.start(context.Background())
				Expect(err).NotTo(HaveOccurred())
				cleanup = stop

				migrator, err = store.NewMigrator(d.driver, url)
				Expect(err).NotTo(HaveOccurred())
			})

			AfterAll(func() {
				if migrator != nil {
					Expect(migrator.Close()).To(Succeed())
				}
				if cleanup != nil {
					cleanup()
				}
			})

			It("starts at version 0", func() {
				version, dirty, err := migrator.Version()
				Expect(err).NotTo(HaveOccurred())
				Expect(version).To(BeZero())
				Expect(dirty).To(BeFalse())

				pending, err := migrator.PendingMigrations()
				Expect(err).NotTo(HaveOccurred())
				Expect(pending).To(Equal([]uint{1, 2}))
			})

			It("applies all migrations", func() {
				Expect(migrator.Up()).To(Succeed())

				version, dirty, err := migrator.Version()
				Expect(err).NotTo(HaveOccurred())
				Expect(version).To(BeNumerically(">", 0))
				Expect(dirty).To(BeFalse())
				latest = version

				applied, err := migrator.AppliedMigrations()
				Expect(err).NotTo(HaveOccurred())
				Expect(applied).To(HaveLen(int(latest)))
			})

			It("treats a repeated Up as a no-op", func() {
				Expect(migrator.Up()).To(Succeed())
			})

			It("steps down and back up", func() {
				Expect(migrator.Steps(-1)).To(Succeed())
				version, _, err := migrator.Version()
				Expect(err).NotTo(HaveOccurred())
				Expect(version).To(Equal(latest - 1))

				Expect(migrator.Steps(1)).To(Succeed())
				version, _, err = migrator.Version()
				Expect(err).NotTo(HaveOccurred())
				Expect(version).To(Equal(latest))
			})

			It("rolls everything back with Down", func() {
				Expect(migrator.Down()).To(Succeed())
				version, dirty, err := migrator.Version()
				Expect(err).NotTo(HaveOccurred())
				Expect(version).To(BeZero())
				Expect(dirty).To(BeFalse())
			})

			It("forces a version without running migrations", func() {
				Expect(migrator.Up()).To(Succeed())
				Expect(migrator.Force(1)).To(Succeed())

				version, dirty, err := migrator.Version()
				Expect(err).NotTo(HaveOccurred())
				Expect(version).To(Equal(uint(1)))
				Expect(dirty).To(BeFalse())
			})
		})
	}
})

var _ = Describe("Open", func() {
	It("connects to PostgreSQL", func(ctx SpecContext) {
		url, stop, err := startPostgres(context.Background())
		Expect(err).NotTo(HaveOccurred())
		DeferCleanup(stop)

		pool, err := store.OpenPostgres(ctx, url)
		Expect(err).NotTo(HaveOccurred())
		pool.Close()
	})

	It("connects to MySQL", func(ctx SpecContext) {
		dsn, stop, err := startMySQL(context.Background())
		Expect(err).NotTo(HaveOccurred())
		DeferCleanup(stop)

		db, err := store.OpenMySQL(ctx, dsn)
		Expect(err).NotTo(HaveOccurred())
		Expect(db.Close()).To(Succeed())
	})
})
