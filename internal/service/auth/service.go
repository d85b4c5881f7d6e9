package auth

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/clinicore/booking-api/internal/model"
	"github.com/clinicore/booking-api/internal/repository"
	"github.com/clinicore/booking-api/pkg/auth"
	"github.com/clinicore/booking-api/pkg/logger"
	"github.com/clinicore/booking-api/pkg/security"
)

var ErrInvalidCredentials = errors.New("invalid credentials")

// Service issues access tokens for clinic staff. Doctors are the only
// password-bearing principals in this system.
type Service struct {
	doctors repository.DoctorRepository
	jwt     auth.JWTService
	hasher  security.PasswordHasher
	logger  *logger.Logger
}

func NewService(doctors repository.DoctorRepository, jwtSvc auth.JWTService, hasher security.PasswordHasher, log *logger.Logger) *Service {
	return &Service{
		doctors: doctors,
		jwt:     jwtSvc,
		hasher:  hasher,
		logger:  log,
	}
}

type TokenResponse struct {
	AccessToken string        `json:"access_token"`
	Doctor      *model.Doctor `json:"doctor"`
}

func (s *Service) Login(ctx context.Context, email, password string) (*TokenResponse, error) {
	doctor, err := s.doctors.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrInvalidCredentials
		}
		return nil, fmt.Errorf("failed to look up doctor: %w", err)
	}

	if !doctor.Active {
		return nil, ErrInvalidCredentials
	}

	if err := s.hasher.Compare(doctor.PasswordHash, password); err != nil {
		s.logger.WithFields(map[string]interface{}{"email": email}).Warn("failed login attempt")
		return nil, ErrInvalidCredentials
	}

	token, err := s.jwt.GenerateToken(doctor.ID, doctor.Email, "doctor")
	if err != nil {
		return nil, fmt.Errorf("failed to generate token: %w", err)
	}

	return &TokenResponse{AccessToken: token, Doctor: doctor}, nil
}
