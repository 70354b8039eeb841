package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"vcard-wallet-go/internal/models"
	"vcard-wallet-go/internal/store"
)

func (s *Service) GetProfile(ctx context.Context, userId string) (*models.Profile, error) {
	current, err := s.currentUserId()
	if err != nil {
		return nil, err
	}
	if current != userId {
		return nil, nil
	}

	var p models.Profile
	var fullName, phone sql.NullString
	err = s.db.QueryRowContext(ctx, queryGetProfile, userId).Scan(
		&p.Id, &p.Email, &fullName, &phone, &p.KycStatus, &p.CreatedAt, &p.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("unable to query profile: %w", err)
	}
	p.FullName = stringPtr(fullName)
	p.PhoneNumber = stringPtr(phone)
	return &p, nil
}

func (s *Service) UpdateProfile(ctx context.Context, userId string, patch models.ProfilePatch) (*models.Profile, error) {
	current, err := s.currentUserId()
	if err != nil {
		return nil, err
	}
	if current != userId {
		return nil, store.ErrProfileNotFound
	}

	result, err := s.db.ExecContext(ctx, queryUpdateProfile,
		nullString(patch.FullName), nullString(patch.PhoneNumber), s.timestamp(), userId)
	if err != nil {
		return nil, fmt.Errorf("unable to update profile: %w", err)
	}
	if n, err := result.RowsAffected(); err != nil {
		return nil, fmt.Errorf("unable to get rows affected: %w", err)
	} else if n == 0 {
		return nil, store.ErrProfileNotFound
	}
	return s.GetProfile(ctx, userId)
}
