// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Lostfound Contributors

//go:build integration

package store_test

import (
	"context"
	"time"

	. "github.com/onsi/ginkgo/v2" //nolint:revive // ginkgo convention
	. "github.com/onsi/gomega"    //nolint:revive // gomega convention
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/lostfound/lostfound/internal/store"
)

var _ = Describe("Postgres store", func() {
	var (
		ctx       context.Context
		container *postgres.PostgresContainer
		connStr   string
	)

	BeforeEach(func() {
		ctx = context.Background()
		var err error
		container, err = postgres.Run(ctx,
			"postgres:16-alpine",
			postgres.WithDatabase("lostfound_test"),
			postgres.WithUsername("lostfound"),
			postgres.WithPassword("lostfound"),
			testcontainers.WithWaitStrategy(
				wait.ForLog("database system is ready to accept connections").
					WithOccurrence(2).
					WithStartupTimeout(30*time.Second),
			),
		)
		Expect(err).NotTo(HaveOccurred())

		connStr, err = container.ConnectionString(ctx, "sslmode=disable")
		Expect(err).NotTo(HaveOccurred())
	})

	AfterEach(func() {
		_ = container.Terminate(ctx)
	})

	Describe("Migrator", func() {
		It("applies and rolls back the schema", func() {
			m, err := store.NewMigrator(connStr)
			Expect(err).NotTo(HaveOccurred())
			defer m.Close()

			st, err := m.Status()
			Expect(err).NotTo(HaveOccurred())
			Expect(st.Version).To(BeZero())
			Expect(st.Pending).To(Equal([]uint{1, 2}))

			Expect(m.Up()).To(Succeed())
			version, dirty, err := m.Version()
			Expect(err).NotTo(HaveOccurred())
			Expect(version).To(Equal(uint(2)))
			Expect(dirty).To(BeFalse())

			Expect(m.Up()).To(Succeed(), "second Up is a no-op")

			Expect(m.Down()).To(Succeed())
			version, _, err = m.Version()
			Expect(err).NotTo(HaveOccurred())
			Expect(version).To(BeZero())
		})
	})

	Describe("Connect", func() {
		It("pings a live server", func() {
			pg, err := store.Connect(ctx, connStr, store.ConnectOptions{})
			Expect(err).NotTo(HaveOccurred())
			defer pg.Close()

			Expect(pg.Ping(ctx)).To(Succeed())
			Expect(pg.Pool()).NotTo(BeNil())
		})

		It("returns a usable handle when the server goes away", func() {
			pg, err := store.Connect(ctx, connStr, store.ConnectOptions{})
			Expect(err).NotTo(HaveOccurred())
			defer pg.Close()

			Expect(container.Stop(ctx, nil)).To(Succeed())
			Expect(pg.Ping(ctx)).NotTo(Succeed())
		})
	})
})
