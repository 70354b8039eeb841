package api

import (
	"context"
	"fmt"
	"sync"

	"vcard-wallet-go/internal/models"
	"vcard-wallet-go/internal/store"

	"go.uber.org/zap"
)

// CardIssuer requests a new card from the relay for the given user.
type CardIssuer interface {
	CreateCard(ctx context.Context, userId, accessToken string) (*models.IssuedCard, error)
}

type CardState struct {
	Cards   []models.VirtualCard
	Loading bool
	Error   string
}

// CardService caches the signed-in user's cards and drives their lifecycle.
type CardService struct {
	cards  store.CardStore
	auth   store.Authenticator
	issuer CardIssuer

	mu    sync.RWMutex
	state CardState
}

func NewCardService(cards store.CardStore, auth store.Authenticator, issuer CardIssuer) *CardService {
	return &CardService{cards: cards, auth: auth, issuer: issuer}
}

// State returns a snapshot; the card slice is a copy.
func (s *CardService) State() CardState {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := s.state
	out.Cards = append([]models.VirtualCard(nil), s.state.Cards...)
	return out
}

func (s *CardService) begin() {
	s.mu.Lock()
	s.state.Loading = true
	s.state.Error = ""
	s.mu.Unlock()
}

func (s *CardService) end(err error, fallback string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state.Loading = false
	if err != nil {
		s.state.Error = describe(err, fallback)
	}
	return err
}

// FetchCards replaces the cache with every card visible to the session,
// newest first.
func (s *CardService) FetchCards(ctx context.Context) error {
	s.begin()
	err := s.fetchCards(ctx)
	if err != nil {
		zap.L().Error("Error fetching cards", zap.Error(err))
		s.mu.Lock()
		s.state.Loading = false
		s.state.Error = MsgFetchCards
		s.mu.Unlock()
		return err
	}
	return s.end(nil, "")
}

func (s *CardService) fetchCards(ctx context.Context) error {
	cards, err := s.cards.ListCards(ctx)
	if err != nil {
		return err
	}
	s.mu.Lock()
	s.state.Cards = cards
	s.mu.Unlock()
	return nil
}

// CreateCard issues a card through the relay, stores it and refreshes.
func (s *CardService) CreateCard(ctx context.Context) (*models.VirtualCard, error) {
	s.begin()
	card, err := s.createCard(ctx)
	return card, s.end(err, "Failed to create card")
}

func (s *CardService) createCard(ctx context.Context) (*models.VirtualCard, error) {
	session, err := s.auth.Session(ctx)
	if err != nil {
		return nil, err
	}
	if session == nil || session.User == nil {
		return nil, store.ErrNotLoggedIn
	}
	userId := session.User.Id

	issued, err := s.issuer.CreateCard(ctx, userId, session.AccessToken)
	if err != nil {
		zap.L().Error("Card issuance failed", zap.String("user_id", userId), zap.Error(err))
		return nil, err
	}
	if issued == nil || issued.Token == "" {
		return nil, &InputError{Message: MsgInvalidCardData}
	}

	card, err := s.cards.InsertCard(ctx, store.InsertCardParams{
		UserId:     userId,
		CardToken:  issued.Token,
		CardNumber: models.MaskCardNumber(issued.LastFour),
		ExpiryDate: issued.ExpiryDate,
	})
	if err != nil {
		// The issuer already holds this card; the token is needed to reconcile it.
		zap.L().Error("Issued card could not be stored",
			zap.String("user_id", userId),
			zap.String("card_token", issued.Token),
			zap.Error(err))
		return nil, fmt.Errorf("store issued card %s: %w", issued.Token, err)
	}

	zap.L().Info("Card created",
		zap.String("user_id", userId),
		zap.String("card_id", card.Id),
		zap.String("card_number", card.CardNumber))

	if err := s.fetchCards(ctx); err != nil {
		zap.L().Warn("Card list refresh failed", zap.Error(err))
	}
	return card, nil
}

func (s *CardService) FreezeCard(ctx context.Context, cardId string) error {
	return s.changeStatus(ctx, cardId, models.CardFrozen, "Failed to freeze card")
}

func (s *CardService) UnfreezeCard(ctx context.Context, cardId string) error {
	return s.changeStatus(ctx, cardId, models.CardActive, "Failed to unfreeze card")
}

func (s *CardService) CancelCard(ctx context.Context, cardId string) error {
	return s.changeStatus(ctx, cardId, models.CardCancelled, "Failed to cancel card")
}

// changeStatus validates the transition against the stored card before the
// conditional write, so a cancelled card is rejected without any update.
func (s *CardService) changeStatus(ctx context.Context, cardId string, to models.CardStatus, fallback string) error {
	s.begin()
	err := s.applyStatus(ctx, cardId, to)
	if err != nil {
		zap.L().Warn("Card status change rejected",
			zap.String("card_id", cardId),
			zap.String("status", string(to)),
			zap.Error(err))
	}
	return s.end(err, fallback)
}

func (s *CardService) applyStatus(ctx context.Context, cardId string, to models.CardStatus) error {
	current, err := s.cards.GetCard(ctx, cardId)
	if err != nil {
		return err
	}
	if current.Status == models.CardCancelled {
		return store.ErrCardCancelled
	}
	if !current.Status.CanTransitionTo(to) {
		return fmt.Errorf("%w: %s to %s", store.ErrInvalidCardTransition, current.Status, to)
	}

	if _, err := s.cards.UpdateCardStatus(ctx, cardId, to); err != nil {
		return err
	}
	zap.L().Info("Card status changed",
		zap.String("card_id", cardId),
		zap.String("from", string(current.Status)),
		zap.String("to", string(to)))

	return s.fetchCards(ctx)
}
