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

package models

import "time"

// User is the authenticated identity owned by the hosted auth service
type User struct {
	Id        string    `json:"id" db:"id"`
	Email     string    `json:"email" db:"email"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
}

// Session is an authenticated session. ExpiresAt is in unix seconds.
type Session struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	TokenType    string `json:"token_type,omitempty"`
	ExpiresIn    int64  `json:"expires_in,omitempty"`
	ExpiresAt    int64  `json:"expires_at,omitempty"`
	User         *User  `json:"user"`
}

// Expired reports whether the session access token is past its expiry,
// allowing a small skew so refreshes happen before the server rejects it.
func (s *Session) Expired(now time.Time) bool {
	if s == nil || s.ExpiresAt == 0 {
		return false
	}
	return now.Add(30 * time.Second).Unix() >= s.ExpiresAt
}

type KycStatus string

const (
	KycPending  KycStatus = "pending"
	KycApproved KycStatus = "approved"
	KycRejected KycStatus = "rejected"
)

// Profile holds per-user descriptive data, keyed by the auth user id
type Profile struct {
	Id          string    `json:"id" db:"id"`
	Email       string    `json:"email,omitempty" db:"email"`
	FullName    *string   `json:"full_name" db:"full_name"`
	PhoneNumber *string   `json:"phone_number" db:"phone_number"`
	KycStatus   KycStatus `json:"kyc_status" db:"kyc_status"`
	CreatedAt   time.Time `json:"created_at" db:"created_at"`
	UpdatedAt   time.Time `json:"updated_at" db:"updated_at"`
}

// ProfilePatch is a partial profile update; nil fields are left unchanged
type ProfilePatch struct {
	FullName    *string `json:"full_name,omitempty"`
	PhoneNumber *string `json:"phone_number,omitempty"`
}

func (p ProfilePatch) Empty() bool {
	return p.FullName == nil && p.PhoneNumber == nil
}
