// Package gatewaytest runs the real API gateway routes over an in-memory directory
// for client-side tests.
package gatewaytest

import (
	"context"
	"fmt"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/crypto/bcrypt"

	"github.com/noah-isme/rbac-console/internal/dto"
	"github.com/noah-isme/rbac-console/internal/models"
	"github.com/noah-isme/rbac-console/internal/repository"
	"github.com/noah-isme/rbac-console/internal/router"
	"github.com/noah-isme/rbac-console/internal/service"
	"github.com/noah-isme/rbac-console/pkg/config"
)

// Seeded accounts, created by NewServer.
const (
	PrincipalEmail    = "principal@school.com"
	PrincipalPassword = "principal123"
	TeacherEmail      = "teacher@school.com"
	TeacherPassword   = "teacher123"
	StudentEmail      = "student@school.com"
	StudentPassword   = "student123"
)

// Server is a running gateway backed by a MemoryUserRepository.
type Server struct {
	*httptest.Server
	Repo  *repository.MemoryUserRepository
	Users *service.UserService
	Auth  *service.AuthService
}

// NewServer starts a gateway seeded with the default accounts. It is closed when the
// test ends.
func NewServer(tb testing.TB) *Server {
	tb.Helper()
	gin.SetMode(gin.TestMode)

	repo := repository.NewMemoryUserRepository()
	auth := service.NewAuthService(repo, nil, nil, service.AuthConfig{
		AccessTokenSecret: "gatewaytest-secret",
		AccessTokenExpiry: time.Hour,
		Issuer:            "gatewaytest",
	})
	users := service.NewUserService(repo, nil, nil, nil, service.UserServiceConfig{PasswordCost: bcrypt.MinCost})
	reports := service.NewReportService(repo, nil, nil, 0)

	if _, err := users.SeedDefaults(context.Background()); err != nil {
		tb.Fatalf("seed default users: %v", err)
	}

	engine := router.New(router.Dependencies{
		Config:  &config.Config{Env: config.EnvProduction},
		Auth:    auth,
		Users:   users,
		Reports: reports,
		Metrics: service.NewMetricsService(),
	})

	srv := &Server{Server: httptest.NewServer(engine), Repo: repo, Users: users, Auth: auth}
	tb.Cleanup(srv.Close)
	return srv
}

// AddUser creates a user directly in the directory.
func (s *Server) AddUser(tb testing.TB, name, email, password string, role models.Role) *models.User {
	tb.Helper()
	user, err := s.Users.Create(context.Background(), dto.CreateUserRequest{
		Name:     name,
		Email:    email,
		Password: password,
		Role:     role,
	}, "", models.RequestMeta{})
	if err != nil {
		tb.Fatalf("add user %s: %v", email, err)
	}
	return user
}

// AddStudents creates n students named student-01, student-02 and so on.
func (s *Server) AddStudents(tb testing.TB, n int) {
	tb.Helper()
	for i := 1; i <= n; i++ {
		s.AddUser(tb, fmt.Sprintf("student-%02d", i), fmt.Sprintf("student-%02d@school.com", i), "password1", models.RoleStudent)
	}
}

// Token signs in and returns an access token.
func (s *Server) Token(tb testing.TB, email, password string) string {
	tb.Helper()
	resp, err := s.Auth.Login(context.Background(), models.LoginRequest{Email: email, Password: password})
	if err != nil {
		tb.Fatalf("login %s: %v", email, err)
	}
	return resp.AccessToken
}
