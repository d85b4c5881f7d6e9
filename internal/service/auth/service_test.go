package auth

import (
	"context"
	"database/sql"
	"io"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/clinicore/booking-api/internal/model"
	"github.com/clinicore/booking-api/pkg/auth"
	"github.com/clinicore/booking-api/pkg/logger"
	"github.com/clinicore/booking-api/pkg/security"
)

type fakeDoctorRepo struct {
	byEmail map[string]*model.Doctor
}

func (r *fakeDoctorRepo) Create(ctx context.Context, d *model.Doctor) error { return nil }
func (r *fakeDoctorRepo) Get(ctx context.Context, id uuid.UUID) (*model.Doctor, error) {
	return nil, sql.ErrNoRows
}
func (r *fakeDoctorRepo) GetByEmail(ctx context.Context, email string) (*model.Doctor, error) {
	if d, ok := r.byEmail[email]; ok {
		return d, nil
	}
	return nil, sql.ErrNoRows
}
func (r *fakeDoctorRepo) Update(ctx context.Context, d *model.Doctor) error { return nil }
func (r *fakeDoctorRepo) List(ctx context.Context) ([]*model.Doctor, error) { return nil, nil }

func newTestService(t *testing.T, doctors ...*model.Doctor) *Service {
	t.Helper()

	repo := &fakeDoctorRepo{byEmail: make(map[string]*model.Doctor)}
	for _, d := range doctors {
		repo.byEmail[d.Email] = d
	}

	log := logger.NewLogger(&logger.Config{Level: logger.ErrorLevel, Output: io.Discard})
	jwtSvc := auth.NewJWTService("test-secret", time.Hour, "clinicore-test")
	return NewService(repo, jwtSvc, security.NewBcryptHasher(0), log)
}

func testDoctor(t *testing.T, email, password string, active bool) *model.Doctor {
	t.Helper()

	hash, err := security.NewBcryptHasher(0).Hash(password)
	require.NoError(t, err)

	d := &model.Doctor{
		Name:         "Dr. Imani",
		Email:        email,
		Active:       active,
		PasswordHash: hash,
	}
	d.ID = uuid.New()
	return d
}

func TestLoginSuccess(t *testing.T) {
	svc := newTestService(t, testDoctor(t, "imani@clinic.example", "open-sesame", true))

	resp, err := svc.Login(context.Background(), "imani@clinic.example", "open-sesame")
	require.NoError(t, err)
	assert.NotEmpty(t, resp.AccessToken)
	assert.Equal(t, "imani@clinic.example", resp.Doctor.Email)
}

func TestLoginWrongPassword(t *testing.T) {
	svc := newTestService(t, testDoctor(t, "imani@clinic.example", "open-sesame", true))

	_, err := svc.Login(context.Background(), "imani@clinic.example", "wrong")
	assert.ErrorIs(t, err, ErrInvalidCredentials)
}

func TestLoginUnknownEmail(t *testing.T) {
	svc := newTestService(t)

	_, err := svc.Login(context.Background(), "nobody@clinic.example", "whatever")
	assert.ErrorIs(t, err, ErrInvalidCredentials)
}

func TestLoginInactiveDoctor(t *testing.T) {
	svc := newTestService(t, testDoctor(t, "imani@clinic.example", "open-sesame", false))

	_, err := svc.Login(context.Background(), "imani@clinic.example", "open-sesame")
	assert.ErrorIs(t, err, ErrInvalidCredentials)
}
