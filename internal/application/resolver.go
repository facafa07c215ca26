// Package application contains use-case orchestration services.
package application

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"

	"github.com/ericfisherdev/assetusers/internal/domain/model"
	"github.com/ericfisherdev/assetusers/internal/domain/port/driven"
)

var (
	// ErrBindingNotFound is returned when no credential applies to the
	// requested asset and username, or a preference is foreign to the asset.
	ErrBindingNotFound = errors.New("asset user not found")

	// ErrAmbiguous is returned when two distinct credentials tie on rank and
	// priority for the same asset and username. It signals broken inventory
	// data and is never resolved silently.
	ErrAmbiguous = errors.New("ambiguous asset user")

	// ErrInvalidArgument is returned for malformed input.
	ErrInvalidArgument = errors.New("invalid argument")
)

// rank orders binding sources; a higher rank wins.
type rank int

const (
	rankAdmin rank = iota
	rankSystemNode
	rankSystemDirect
	rankAuthBook
)

func rankOf(b model.Binding) rank {
	switch b.Kind {
	case model.BindingKindAuthBook:
		return rankAuthBook
	case model.BindingKindSystem:
		if b.Origin == model.BindingOriginAsset {
			return rankSystemDirect
		}
		return rankSystemNode
	default:
		return rankAdmin
	}
}

// compareBindings orders a before b when a takes precedence.
func compareBindings(a, b model.Binding) int {
	if c := cmp.Compare(rankOf(b), rankOf(a)); c != 0 {
		return c
	}
	if c := cmp.Compare(b.Priority, a.Priority); c != 0 {
		return c
	}
	// Stable tie order so ambiguity errors name candidates consistently.
	return cmp.Compare(a.CredentialID, b.CredentialID)
}

// dedupe keeps one binding per credential and asset, at its best rank.
func dedupe(candidates []model.Binding) []model.Binding {
	best := make(map[string]int, len(candidates))
	out := make([]model.Binding, 0, len(candidates))

	for _, c := range candidates {
		key := string(c.Kind) + ":" + c.ID()
		if i, ok := best[key]; ok {
			if compareBindings(c, out[i]) < 0 {
				out[i] = c
			}
			continue
		}
		best[key] = len(out)
		out = append(out, c)
	}
	return out
}

func sameTier(a, b model.Binding) bool {
	return rankOf(a) == rankOf(b) && a.Priority == b.Priority
}

// Resolver applies credential precedence to the candidates produced by a
// BindingStore.
//
// Default precedence, highest first: latest authbook entry, system user
// attached to the asset, system user inherited from a node, admin user.
// Among system users of the same origin the higher priority wins.
type Resolver struct {
	inventory driven.InventoryStore
	bindings  driven.BindingStore
	logger    *slog.Logger
}

// NewResolver creates a Resolver.
func NewResolver(inventory driven.InventoryStore, bindings driven.BindingStore, logger *slog.Logger) *Resolver {
	return &Resolver{inventory: inventory, bindings: bindings, logger: logger}
}

// Resolve returns the single binding to use for username on assetID.
//
// A set preference is a hard match: the credential it names must be bound to
// the asset (and to username, when one is given), otherwise
// ErrBindingNotFound. Without a preference username is required.
func (r *Resolver) Resolve(ctx context.Context, username, assetID string, pref model.Preference) (model.Binding, error) {
	if assetID == "" {
		return model.Binding{}, fmt.Errorf("resolve asset user: asset id is required: %w", ErrInvalidArgument)
	}
	if !pref.IsSet() && username == "" {
		return model.Binding{}, fmt.Errorf("resolve asset user: username or preference is required: %w", ErrInvalidArgument)
	}

	if _, err := r.inventory.GetAsset(ctx, assetID); err != nil {
		return model.Binding{}, fmt.Errorf("resolve asset user: %w", err)
	}

	candidates, err := r.bindings.Candidates(ctx, model.BindingCriteria{
		AssetIDs: []string{assetID},
		Username: username,
	})
	if err != nil {
		return model.Binding{}, fmt.Errorf("resolve asset user: %w", err)
	}
	candidates = dedupe(candidates)

	if pref.IsSet() {
		matched := slices.DeleteFunc(candidates, func(b model.Binding) bool { return !pref.Matches(b) })
		if len(matched) == 0 {
			return model.Binding{}, fmt.Errorf("resolve asset user: %s %s on asset %s: %w",
				pref.Kind, pref.ID, assetID, ErrBindingNotFound)
		}
		slices.SortFunc(matched, compareBindings)
		return matched[0], nil
	}

	if len(candidates) == 0 {
		return model.Binding{}, fmt.Errorf("resolve asset user: %s on asset %s: %w", username, assetID, ErrBindingNotFound)
	}

	b, err := r.effective(candidates)
	if err != nil {
		return model.Binding{}, fmt.Errorf("resolve asset user: %w", err)
	}
	return b, nil
}

// Filter returns one effective binding per asset and username across every
// candidate matching criteria, ordered by hostname, username and asset id.
// criteria.Preference only breaks ties: it picks among the candidates that
// share the group's best rank and never displaces a higher-ranked one.
// Groups without such a match fall back to default precedence. No match
// yields an empty slice, as does an unknown criteria.NodeID.
func (r *Resolver) Filter(ctx context.Context, criteria model.BindingCriteria) ([]model.Binding, error) {
	if criteria.NodeID != "" {
		if _, err := r.inventory.GetNode(ctx, criteria.NodeID); err != nil {
			if errors.Is(err, driven.ErrNodeNotFound) {
				return []model.Binding{}, nil
			}
			return nil, fmt.Errorf("filter asset users: %w", err)
		}
	}

	candidates, err := r.bindings.Candidates(ctx, criteria)
	if err != nil {
		return nil, fmt.Errorf("filter asset users: %w", err)
	}

	var (
		order  []string
		groups = make(map[string][]model.Binding)
	)
	for _, c := range dedupe(candidates) {
		key := c.GroupKey()
		if _, ok := groups[key]; !ok {
			order = append(order, key)
		}
		groups[key] = append(groups[key], c)
	}

	result := make([]model.Binding, 0, len(order))
	for _, key := range order {
		group := groups[key]

		if b, ok := preferredInTopRank(group, criteria.Preference); ok {
			result = append(result, b)
			continue
		}

		b, err := r.effective(group)
		if err != nil {
			return nil, fmt.Errorf("filter asset users: %w", err)
		}
		result = append(result, b)
	}

	slices.SortStableFunc(result, func(a, b model.Binding) int {
		return cmp.Or(
			cmp.Compare(a.Hostname, b.Hostname),
			cmp.Compare(a.Username, b.Username),
			cmp.Compare(a.AssetID, b.AssetID),
		)
	})
	return result, nil
}

// preferredInTopRank returns the candidate pref names when it ranks as high
// as the best candidate of the group. Priority is ignored within the rank.
func preferredInTopRank(group []model.Binding, pref model.Preference) (model.Binding, bool) {
	if !pref.IsSet() || len(group) == 0 {
		return model.Binding{}, false
	}
	slices.SortFunc(group, compareBindings)

	top := rankOf(group[0])
	for _, b := range group {
		if rankOf(b) != top {
			break
		}
		if pref.Matches(b) {
			return b, true
		}
	}
	return model.Binding{}, false
}

// effective picks the winner of one (asset, username) group of deduplicated
// candidates.
func (r *Resolver) effective(group []model.Binding) (model.Binding, error) {
	slices.SortFunc(group, compareBindings)

	if len(group) > 1 && sameTier(group[0], group[1]) {
		tied := []any{}
		for _, b := range group {
			if sameTier(b, group[0]) {
				tied = append(tied, slog.Group(b.ID(), b.AsLogFields()...))
			}
		}
		r.logger.Error("ambiguous credential precedence",
			"asset_id", group[0].AssetID,
			"username", group[0].Username,
			"priority", group[0].Priority,
			slog.Group("candidates", tied...),
		)
		return model.Binding{}, fmt.Errorf("%s on asset %s: %w", group[0].Username, group[0].AssetID, ErrAmbiguous)
	}

	return group[0], nil
}
