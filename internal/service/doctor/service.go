package doctor

import (
	"context"
	"database/sql"
	"errors"

	"github.com/google/uuid"

	"github.com/clinicore/booking-api/internal/model"
	"github.com/clinicore/booking-api/internal/repository"
	apperrors "github.com/clinicore/booking-api/pkg/errors"
	"github.com/clinicore/booking-api/pkg/security"
	"github.com/clinicore/booking-api/pkg/validator"
)

type Service struct {
	repo       repository.DoctorRepository
	hasher     security.PasswordHasher
	validate   *validator.Validator
	invalidate func(uuid.UUID)
}

// NewService wires the doctor roster. invalidate is called after any update
// so booking's lookup cache drops the stale row; pass nil to skip.
func NewService(repo repository.DoctorRepository, hasher security.PasswordHasher, invalidate func(uuid.UUID)) *Service {
	if invalidate == nil {
		invalidate = func(uuid.UUID) {}
	}
	return &Service{
		repo:       repo,
		hasher:     hasher,
		validate:   validator.New(),
		invalidate: invalidate,
	}
}

func (s *Service) Create(ctx context.Context, req *model.CreateDoctorRequest) (*model.Doctor, error) {
	if err := s.validate.Validate(req); err != nil {
		return nil, apperrors.BadRequest(err.Error(), err)
	}

	hash, err := s.hasher.Hash(req.Password)
	if err != nil {
		return nil, apperrors.BadRequest("invalid password", err)
	}

	doctor := &model.Doctor{
		Name:         req.Name,
		Email:        req.Email,
		Phone:        req.Phone,
		Specialty:    model.Specialty(req.Specialty),
		Active:       true,
		PasswordHash: hash,
	}
	if err := s.repo.Create(ctx, doctor); err != nil {
		return nil, apperrors.Internal(err)
	}
	return doctor, nil
}

func (s *Service) Get(ctx context.Context, id uuid.UUID) (*model.Doctor, error) {
	doctor, err := s.repo.Get(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperrors.NotFound("doctor", err)
		}
		return nil, apperrors.Internal(err)
	}
	return doctor, nil
}

func (s *Service) Update(ctx context.Context, id uuid.UUID, req *model.UpdateDoctorRequest) (*model.Doctor, error) {
	if err := s.validate.Validate(req); err != nil {
		return nil, apperrors.BadRequest(err.Error(), err)
	}

	doctor, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	if req.Name != nil {
		doctor.Name = *req.Name
	}
	if req.Phone != nil {
		doctor.Phone = *req.Phone
	}
	if req.Specialty != nil {
		doctor.Specialty = model.Specialty(*req.Specialty)
	}
	if req.Active != nil {
		doctor.Active = *req.Active
	}

	if err := s.repo.Update(ctx, doctor); err != nil {
		return nil, apperrors.Internal(err)
	}

	s.invalidate(id)
	return doctor, nil
}

func (s *Service) List(ctx context.Context) ([]*model.Doctor, error) {
	doctors, err := s.repo.List(ctx)
	if err != nil {
		return nil, apperrors.Internal(err)
	}
	return doctors, nil
}
