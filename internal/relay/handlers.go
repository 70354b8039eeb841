/**
 * Copyright 2025-present Coinbase Global, Inc.
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *  http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

package relay

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"vcard-wallet-go/internal/issuer"
	"vcard-wallet-go/internal/models"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

const IdempotencyHeader = "Idempotency-Key"

// defaultIssueTimeout bounds a create-card call shared between concurrent
// requests with the same idempotency key.
const defaultIssueTimeout = time.Minute

// CardIssuer is the issuer API surface the relay depends on.
type CardIssuer interface {
	Ping(ctx context.Context) (json.RawMessage, error)
	GetUser(ctx context.Context, token string) (*models.IssuerUser, error)
	CreateUser(ctx context.Context, user models.IssuerUser) (*models.IssuerUser, error)
	CreateCard(ctx context.Context, req models.IssuerCardRequest, idempotencyKey string) (*models.IssuerCard, error)
}

type Handler struct {
	issuer  CardIssuer
	program models.CardProgram
	cache   ResponseCache
	metrics *Metrics
	flights singleflight.Group

	issueTimeout time.Duration
}

func NewHandler(issuer CardIssuer, program models.CardProgram, cache ResponseCache, metrics *Metrics) *Handler {
	return &Handler{
		issuer:  issuer,
		program: program,
		cache:   cache,
		metrics: metrics,

		issueTimeout: defaultIssueTimeout,
	}
}

// Test checks issuer connectivity.
func (h *Handler) Test(c *gin.Context) {
	msg, err := h.issuer.Ping(c.Request.Context())
	h.metrics.observeIssuer("ping", err)
	if err != nil {
		zap.L().Error("Issuer ping failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, rawError(upstreamPayload(err)))
		return
	}
	c.JSON(http.StatusOK, models.PingResponse{Success: true, Message: msg})
}

// CreateCard provisions the issuer user when missing and issues a card for it.
func (h *Handler) CreateCard(c *gin.Context) {
	var req models.CreateCardRequest
	// An empty body is a missing userId, not a malformed request.
	if err := c.ShouldBindJSON(&req); err != nil && c.Request.ContentLength != 0 && !errors.Is(err, io.EOF) {
		c.JSON(http.StatusBadRequest, errorBody("invalid request body"))
		return
	}
	req.UserId = strings.TrimSpace(req.UserId)
	if verrs := ValidateRequest(req); len(verrs) > 0 {
		c.JSON(http.StatusBadRequest, errorBody("userId is required"))
		return
	}

	if caller, ok := c.Get(userIdKey); ok && caller != req.UserId {
		zap.L().Warn("Create card requested for another user",
			zap.Any("caller", caller),
			zap.String("user_id", req.UserId))
		c.JSON(http.StatusForbidden, errorBody("userId does not match the authenticated user"))
		return
	}

	ctx := c.Request.Context()
	key := strings.TrimSpace(c.GetHeader(IdempotencyHeader))
	cacheKey := "create-card:" + req.UserId + ":" + key

	if key != "" {
		if cached, ok := h.cache.Get(ctx, cacheKey); ok {
			h.metrics.replays.Inc()
			zap.L().Info("Replaying create card response", zap.String("user_id", req.UserId))
			c.JSON(http.StatusOK, cached)
			return
		}
	}

	var (
		card *models.IssuedCard
		err  error
	)
	if key != "" {
		var v any
		v, err, _ = h.flights.Do(cacheKey, func() (any, error) {
			// Shared by every caller holding the key, so one client
			// disconnecting must not fail the others.
			shared, cancel := context.WithTimeout(context.WithoutCancel(ctx), h.issueTimeout)
			defer cancel()
			return h.issueCard(shared, req.UserId, key)
		})
		if err == nil {
			card = v.(*models.IssuedCard)
		}
	} else {
		card, err = h.issueCard(ctx, req.UserId, "")
	}
	if err != nil {
		zap.L().Error("Create card failed", zap.String("user_id", req.UserId), zap.Error(err))
		c.JSON(http.StatusInternalServerError, rawError(upstreamPayload(err)))
		return
	}

	if key != "" {
		h.cache.Set(ctx, cacheKey, replayRecord(card))
	}
	c.JSON(http.StatusOK, card)
}

// replayRecord is what the idempotency cache keeps for a response. The
// security code is returned once and never stored.
func replayRecord(card *models.IssuedCard) *models.IssuedCard {
	record := *card
	record.Cvv = ""
	return &record
}

func (h *Handler) issueCard(ctx context.Context, userId, idempotencyKey string) (*models.IssuedCard, error) {
	_, err := h.issuer.GetUser(ctx, userId)
	switch {
	case errors.Is(err, issuer.ErrUserNotFound):
		h.metrics.observeIssuer("get_user", nil)
		zap.L().Info("Creating issuer user", zap.String("user_id", userId))
		_, err = h.issuer.CreateUser(ctx, defaultIssuerUser(h.program, userId))
		h.metrics.observeIssuer("create_user", err)
		if err != nil {
			return nil, fmt.Errorf("create issuer user: %w", err)
		}
	case err != nil:
		h.metrics.observeIssuer("get_user", err)
		return nil, fmt.Errorf("look up issuer user: %w", err)
	default:
		h.metrics.observeIssuer("get_user", nil)
	}

	issued, err := h.issuer.CreateCard(ctx, cardRequest(h.program, userId), idempotencyKey)
	h.metrics.observeIssuer("create_card", err)
	if err != nil {
		return nil, fmt.Errorf("create issuer card: %w", err)
	}

	zap.L().Info("Card issued",
		zap.String("user_id", userId),
		zap.String("card_token", issued.Token),
		zap.String("last_four", issued.LastFour))

	return &models.IssuedCard{
		Success:    true,
		Token:      issued.Token,
		LastFour:   issued.LastFour,
		ExpiryDate: issued.ExpiryDate(),
		Cvv:        issued.CvvNumber,
	}, nil
}

func defaultIssuerUser(p models.CardProgram, userId string) models.IssuerUser {
	return models.IssuerUser{
		Token:     userId,
		FirstName: p.DefaultUser.FirstName,
		LastName:  p.DefaultUser.LastName,
		Email:     fmt.Sprintf("user_%s@%s", userId, p.DefaultUser.EmailDomain),
		Active:    true,
		Address: &models.IssuerUserAddress{
			Address1:    p.Address.Address1,
			City:        p.Address.City,
			State:       p.Address.State,
			PostalCode:  p.Address.PostalCode,
			CountryCode: p.Address.Country,
		},
	}
}

func cardRequest(p models.CardProgram, userId string) models.IssuerCardRequest {
	return models.IssuerCardRequest{
		UserToken:        userId,
		CardProductToken: p.CardProductToken,
		Fulfillment: models.Fulfillment{
			CardFulfillmentReason: p.FulfillmentReason,
			Shipping: models.Shipping{
				RecipientAddress: models.RecipientAddress{
					Address1:   p.Address.Address1,
					City:       p.Address.City,
					State:      p.Address.State,
					PostalCode: p.Address.PostalCode,
					Country:    p.Address.Country,
				},
			},
		},
	}
}

// upstreamPayload returns the issuer's raw error body when there is one,
// otherwise the error text as a JSON string.
func upstreamPayload(err error) json.RawMessage {
	var apiErr *issuer.Error
	if errors.As(err, &apiErr) && len(apiErr.Body) > 0 {
		return apiErr.Body
	}
	msg, _ := json.Marshal(err.Error())
	return msg
}

func (h *Handler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}
