// Package identity resolves the protocol identity a user signs requests with.
package identity

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/go-exchange-reconciler/internal/domain/user"
)

// ErrInvalidDID indicates a stored portable DID that cannot be used
var ErrInvalidDID = errors.New("invalid portable DID")

// Identity is the requester a counterparty sees on fetched and submitted messages
type Identity struct {
	URI string
}

// portableDID is the subset of the stored DID document needed to act as the user
type portableDID struct {
	URI string `json:"uri"`
}

// Resolver reads identities from the DID document stored with each user
type Resolver struct{}

func NewResolver() *Resolver {
	return &Resolver{}
}

func (r *Resolver) Resolve(ctx context.Context, u *user.User) (Identity, error) {
	if len(u.DID) == 0 {
		return Identity{}, fmt.Errorf("%w: user %s has no DID", ErrInvalidDID, u.ID)
	}

	var doc portableDID
	if err := json.Unmarshal(u.DID, &doc); err != nil {
		return Identity{}, fmt.Errorf("%w: user %s: %v", ErrInvalidDID, u.ID, err)
	}
	if doc.URI == "" {
		return Identity{}, fmt.Errorf("%w: user %s DID has no uri", ErrInvalidDID, u.ID)
	}

	return Identity{URI: doc.URI}, nil
}
