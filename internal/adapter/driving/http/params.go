package httphandler

import (
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"github.com/ericfisherdev/assetusers/internal/application"
	"github.com/ericfisherdev/assetusers/internal/domain/model"
)

// parsePreference reads at most one of system_user_id, admin_user_id and
// prefer_id. prefer qualifies prefer_id and accepts admin_user or
// system_user; without it prefer_id matches any credential.
func parsePreference(q url.Values) (model.Preference, error) {
	var (
		pref model.Preference
		set  []string
	)

	if id := q.Get("system_user_id"); id != "" {
		pref = model.PreferSystem(id)
		set = append(set, "system_user_id")
	}
	if id := q.Get("admin_user_id"); id != "" {
		pref = model.PreferAdmin(id)
		set = append(set, "admin_user_id")
	}
	if id := q.Get("prefer_id"); id != "" {
		switch q.Get("prefer") {
		case "":
			pref = model.PreferCredential(id)
		case "admin_user":
			pref = model.PreferAdmin(id)
		case "system_user":
			pref = model.PreferSystem(id)
		default:
			return model.Preference{}, fmt.Errorf("invalid prefer %q: %w", q.Get("prefer"), application.ErrInvalidArgument)
		}
		set = append(set, "prefer_id")
	} else if q.Get("prefer") != "" {
		return model.Preference{}, fmt.Errorf("prefer requires prefer_id: %w", application.ErrInvalidArgument)
	}

	if len(set) > 1 {
		return model.Preference{}, fmt.Errorf("only one of %s may be set: %w",
			strings.Join(set, ", "), application.ErrInvalidArgument)
	}
	return pref, nil
}

// parseCriteria builds list and export filters. username matches as a
// substring here.
func parseCriteria(q url.Values) (model.BindingCriteria, error) {
	pref, err := parsePreference(q)
	if err != nil {
		return model.BindingCriteria{}, err
	}

	c := model.BindingCriteria{
		NodeID:           strings.TrimSpace(q.Get("node_id")),
		Address:          strings.TrimSpace(q.Get("ip")),
		Hostname:         strings.TrimSpace(q.Get("hostname")),
		UsernameContains: strings.TrimSpace(q.Get("username")),
		Search:           strings.TrimSpace(q.Get("search")),
		BindingIDs:       splitList(q.Get("ids")),
		Preference:       pref,
	}
	if id := strings.TrimSpace(q.Get("asset_id")); id != "" {
		c.AssetIDs = []string{id}
	}
	return c, nil
}

// splitList splits a comma separated value, dropping blanks.
func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func parseBool(q url.Values, key string) (bool, error) {
	v := q.Get(key)
	if v == "" {
		return false, nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return false, fmt.Errorf("invalid %s %q: %w", key, v, application.ErrInvalidArgument)
	}
	return b, nil
}
