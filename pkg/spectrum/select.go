// Field selection
//
// Copyright (C) 2026 Go Migration Team
//
// This file may be distributed under the terms of the GNU GPLv3 license.

package spectrum

import (
	"sort"
	"strings"

	"cosmo-powerspec/pkg/errors"
)

// SelectAll is the selection key matching every field
const SelectAll = "all"

// Selection maps lower-cased field names to whether their spectrum is
// wanted. A named entry overrides the "all" entry.
type Selection map[string]bool

// NewSelection copies m with lower-cased keys
func NewSelection(m map[string]bool) Selection {
	s := make(Selection, len(m))
	for k, v := range m {
		s[strings.ToLower(k)] = v
	}
	return s
}

// Wants reports whether the spectrum of the named field is selected
func (s Selection) Wants(name string) bool {
	if v, ok := s[strings.ToLower(name)]; ok {
		return v
	}
	return s[SelectAll]
}

// Any reports whether anything at all is selected
func (s Selection) Any() bool {
	for _, v := range s {
		if v {
			return true
		}
	}
	return false
}

// Check returns a config error for the first requested name, in sorted
// order, that none of the given fields carry.
func (s Selection) Check(names []string) error {
	known := make(map[string]bool, len(names))
	for _, n := range names {
		known[strings.ToLower(n)] = true
	}
	requested := make([]string, 0, len(s))
	for k, v := range s {
		if v && k != SelectAll {
			requested = append(requested, k)
		}
	}
	sort.Strings(requested)
	for _, k := range requested {
		if !known[k] {
			return errors.UnknownFieldError(k)
		}
	}
	return nil
}
