// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Lostfound Contributors

//go:build integration

package api_test

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	. "github.com/onsi/ginkgo/v2" //nolint:revive // ginkgo convention
	. "github.com/onsi/gomega"    //nolint:revive // gomega convention

	"github.com/lostfound/lostfound/internal/auth"
	"github.com/lostfound/lostfound/internal/auth/postgres"
	"github.com/lostfound/lostfound/internal/auth/redisstore"
	"github.com/lostfound/lostfound/internal/clock"
	"github.com/lostfound/lostfound/internal/web"
)

type apiClient struct {
	router http.Handler
	clock  *clock.FakeClock
	svc    *auth.Service
}

func (c *apiClient) do(method, path string, body any, cookies ...*http.Cookie) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		Expect(json.NewEncoder(&buf).Encode(body)).To(Succeed())
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	for _, ck := range cookies {
		req.AddCookie(ck)
	}
	rec := httptest.NewRecorder()
	c.router.ServeHTTP(rec, req)
	return rec
}

func sessionCookie(rec *httptest.ResponseRecorder) *http.Cookie {
	for _, ck := range rec.Result().Cookies() {
		if ck.Name == auth.SessionCookieName {
			return ck
		}
	}
	return nil
}

func authenticated(rec *httptest.ResponseRecorder) bool {
	var body struct {
		Authenticated bool `json:"authenticated"`
	}
	Expect(json.Unmarshal(rec.Body.Bytes(), &body)).To(Succeed())
	return body.Authenticated
}

func newClient(sessions auth.SessionRepository) *apiClient {
	gin.SetMode(gin.TestMode)
	c := &apiClient{clock: clock.Fake(time.Now().UTC().Truncate(time.Millisecond))}
	svc, err := auth.NewAuthService(
		postgres.NewUserRepository(env.db.Pool()),
		sessions,
		auth.NewPBKDF2Hasher(),
		auth.WithClock(c.clock),
	)
	Expect(err).NotTo(HaveOccurred())
	c.svc = svc
	c.router = web.NewRouter(svc, web.Options{})
	return c
}

var _ = Describe("Auth API", func() {
	backends := map[string]func() auth.SessionRepository{
		"postgres sessions": func() auth.SessionRepository {
			return postgres.NewSessionRepository(env.db.Pool())
		},
		"redis sessions": func() auth.SessionRepository {
			return redisstore.NewSessionRepository(env.rdb, redisstore.DefaultKeyPrefix)
		},
	}

	for name, newSessions := range backends {
		Describe("with "+name, func() {
			var c *apiClient

			BeforeEach(func() {
				env.truncate()
				c = newClient(newSessions())
			})

			It("registers, signs in, restores and signs out", func() {
				rec := c.do(http.MethodPost, "/api/auth/register", map[string]string{
					"username": "alice", "password": "secretpw", "contact": "alice@example.com",
				})
				Expect(rec.Code).To(Equal(http.StatusCreated))

				rec = c.do(http.MethodPost, "/api/auth/login", map[string]string{
					"username": "alice", "password": "secretpw",
				})
				Expect(rec.Code).To(Equal(http.StatusOK))
				cookie := sessionCookie(rec)
				Expect(cookie).NotTo(BeNil())
				Expect(cookie.Value).To(HaveLen(64))

				rec = c.do(http.MethodGet, "/api/auth/session", nil, cookie)
				Expect(authenticated(rec)).To(BeTrue())

				rec = c.do(http.MethodGet, "/api/users/alice/contact", nil, cookie)
				Expect(rec.Code).To(Equal(http.StatusOK))
				Expect(rec.Body.String()).To(ContainSubstring("alice@example.com"))

				rec = c.do(http.MethodPost, "/api/auth/logout", nil, cookie)
				Expect(rec.Code).To(Equal(http.StatusNoContent))

				rec = c.do(http.MethodGet, "/api/auth/session", nil, cookie)
				Expect(authenticated(rec)).To(BeFalse())
			})

			It("rejects a duplicate username and keeps the original password", func() {
				body := map[string]string{"username": "alice", "password": "secretpw", "contact": "alice@example.com"}
				Expect(c.do(http.MethodPost, "/api/auth/register", body).Code).To(Equal(http.StatusCreated))

				body["password"] = "otherpw1"
				Expect(c.do(http.MethodPost, "/api/auth/register", body).Code).To(Equal(http.StatusConflict))

				rec := c.do(http.MethodPost, "/api/auth/login", map[string]string{"username": "alice", "password": "secretpw"})
				Expect(rec.Code).To(Equal(http.StatusOK))
			})

			It("lets exactly one of many concurrent registrations win", func() {
				const attempts = 8
				codes := make([]int, attempts)
				var wg sync.WaitGroup
				for i := range attempts {
					wg.Add(1)
					go func() {
						defer GinkgoRecover()
						defer wg.Done()
						codes[i] = c.do(http.MethodPost, "/api/auth/register", map[string]string{
							"username": "bob", "password": "secretpw", "contact": "bob@example.com",
						}).Code
					}()
				}
				wg.Wait()

				created := 0
				for _, code := range codes {
					if code == http.StatusCreated {
						created++
					} else {
						Expect(code).To(Equal(http.StatusConflict))
					}
				}
				Expect(created).To(Equal(1))
			})

			It("signs out expired sessions and clears the cookie", func() {
				Expect(c.svc.Register(env.ctx, "carol", "secretpw", "carol@example.com")).To(Succeed())
				token, err := c.svc.Login(env.ctx, "carol", "secretpw")
				Expect(err).NotTo(HaveOccurred())
				cookie := &http.Cookie{Name: auth.SessionCookieName, Value: token}

				c.clock.Advance(auth.DefaultSessionTTL)

				rec := c.do(http.MethodGet, "/api/auth/session", nil, cookie)
				Expect(authenticated(rec)).To(BeFalse())
				cleared := sessionCookie(rec)
				Expect(cleared).NotTo(BeNil())
				Expect(cleared.MaxAge).To(BeNumerically("<", 0))
			})

			It("upgrades a legacy credential on login", func() {
				users := postgres.NewUserRepository(env.db.Pool())
				legacy, err := auth.NewUser("dave", auth.LegacyDigest("secretpw"), "dave@example.com", c.clock.Now())
				Expect(err).NotTo(HaveOccurred())
				Expect(users.Create(env.ctx, legacy)).To(Succeed())

				rec := c.do(http.MethodPost, "/api/auth/login", map[string]string{"username": "dave", "password": "secretpw"})
				Expect(rec.Code).To(Equal(http.StatusOK))

				stored, err := users.GetByUsername(env.ctx, "dave")
				Expect(err).NotTo(HaveOccurred())
				Expect(auth.ParseCredential(stored.CredentialHash).Kind).To(Equal(auth.CredentialSalted))

				rec = c.do(http.MethodPost, "/api/auth/login", map[string]string{"username": "dave", "password": "secretpw"})
				Expect(rec.Code).To(Equal(http.StatusOK))
			})
		})
	}
})
