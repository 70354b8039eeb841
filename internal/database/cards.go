package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"vcard-wallet-go/internal/models"
	"vcard-wallet-go/internal/store"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

type rowScanner interface {
	Scan(dest ...any) error
}

func scanCard(row rowScanner) (*models.VirtualCard, error) {
	var c models.VirtualCard
	if err := row.Scan(&c.Id, &c.UserId, &c.CardToken, &c.CardNumber, &c.ExpiryDate,
		&c.Status, &c.Balance, &c.CreatedAt, &c.UpdatedAt); err != nil {
		return nil, err
	}
	return &c, nil
}

func (s *Service) ListCards(ctx context.Context) ([]models.VirtualCard, error) {
	userId, err := s.currentUserId()
	if err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx, queryListCards, userId)
	if err != nil {
		return nil, fmt.Errorf("unable to query cards: %w", err)
	}
	defer closeRows(rows)

	var cards []models.VirtualCard
	for rows.Next() {
		card, err := scanCard(rows)
		if err != nil {
			return nil, fmt.Errorf("unable to scan card row: %w", err)
		}
		cards = append(cards, *card)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating card rows: %w", err)
	}
	return cards, nil
}

func (s *Service) GetCard(ctx context.Context, cardId string) (*models.VirtualCard, error) {
	userId, err := s.currentUserId()
	if err != nil {
		return nil, err
	}
	card, err := scanCard(s.db.QueryRowContext(ctx, queryGetCard, cardId, userId))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, store.ErrCardNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("unable to query card: %w", err)
	}
	return card, nil
}

func (s *Service) InsertCard(ctx context.Context, params store.InsertCardParams) (*models.VirtualCard, error) {
	userId, err := s.currentUserId()
	if err != nil {
		return nil, err
	}
	if params.UserId != userId {
		return nil, fmt.Errorf("card owner %s does not match the signed-in user", params.UserId)
	}

	now := s.timestamp()
	card, err := scanCard(s.db.QueryRowContext(ctx, queryInsertCard,
		uuid.New().String(), userId, params.CardToken, params.CardNumber, params.ExpiryDate, now, now))
	if err != nil {
		return nil, fmt.Errorf("unable to insert card: %w", err)
	}

	zap.L().Info("Card stored", zap.String("user_id", userId), zap.String("card_id", card.Id))
	return card, nil
}

// UpdateCardStatus only touches the row while its status is one the target
// may be reached from; the schema trigger backs this up for cancelled cards.
func (s *Service) UpdateCardStatus(ctx context.Context, cardId string, to models.CardStatus) (*models.VirtualCard, error) {
	userId, err := s.currentUserId()
	if err != nil {
		return nil, err
	}
	sources := models.TransitionSources(to)
	if len(sources) == 0 {
		return nil, store.ErrInvalidCardTransition
	}

	args := []any{to, s.timestamp(), cardId, userId}
	placeholders := make([]string, len(sources))
	for i, from := range sources {
		placeholders[i] = "?"
		args = append(args, from)
	}
	query := fmt.Sprintf(queryUpdateCardStatus, strings.Join(placeholders, ", "))

	card, err := scanCard(s.db.QueryRowContext(ctx, query, args...))
	switch {
	case err == nil:
		zap.L().Info("Card status updated",
			zap.String("card_id", cardId),
			zap.String("status", string(to)))
		return card, nil
	case errors.Is(err, sql.ErrNoRows):
	case strings.Contains(err.Error(), "card_cancelled"):
		return nil, store.ErrCardCancelled
	default:
		return nil, fmt.Errorf("unable to update card status: %w", err)
	}

	current, err := s.GetCard(ctx, cardId)
	if err != nil {
		return nil, err
	}
	if current.Status == models.CardCancelled {
		return nil, store.ErrCardCancelled
	}
	return nil, fmt.Errorf("%w: %s to %s", store.ErrInvalidCardTransition, current.Status, to)
}
