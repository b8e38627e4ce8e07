package importer

import (
	"fmt"
	"strings"
)

// Scope is the operator's requested import scope: everything in the file, or
// one specific collection.
type Scope string

const ScopeAll Scope = "all"

func (s Scope) valid() bool {
	if s == ScopeAll {
		return true
	}
	for _, entity := range knownEntityTypes() {
		if Scope(entity) == s {
			return true
		}
	}
	return false
}

type AvailabilityResult struct {
	IsValid        bool               `json:"is_valid"`
	AvailableTypes []EntityType       `json:"available_types"`
	DetailedCounts map[EntityType]int `json:"detailed_counts"`
	Message        string             `json:"message,omitempty"`
}

// CheckAvailability reports which known collections are present and
// non-empty, and whether the requested scope has anything to import.
// Importing "all data" from an empty file, or requesting a collection the
// file does not carry, fails here with the list of types actually present so
// the operator can retry with a correct scope.
func CheckAvailability(payload Payload, scope Scope) AvailabilityResult {
	result := AvailabilityResult{
		AvailableTypes: make([]EntityType, 0, len(importOrder)),
		DetailedCounts: make(map[EntityType]int, len(importOrder)),
	}
	for _, entity := range knownEntityTypes() {
		count := payload.Count(entity)
		result.DetailedCounts[entity] = count
		if count > 0 {
			result.AvailableTypes = append(result.AvailableTypes, entity)
		}
	}

	if scope == "" {
		scope = ScopeAll
	}
	if !scope.valid() {
		result.Message = fmt.Sprintf("unknown data type %q; file contains: %s", scope, joinTypes(result.AvailableTypes))
		return result
	}

	if scope == ScopeAll {
		if len(result.AvailableTypes) == 0 {
			result.Message = "file contains no importable records"
			return result
		}
		result.IsValid = true
		return result
	}

	if result.DetailedCounts[EntityType(scope)] == 0 {
		result.Message = fmt.Sprintf("file contains no %s; available: %s", scope, joinTypes(result.AvailableTypes))
		return result
	}
	result.IsValid = true
	return result
}

func joinTypes(types []EntityType) string {
	if len(types) == 0 {
		return "nothing"
	}
	names := make([]string, len(types))
	for i, t := range types {
		names[i] = string(t)
	}
	return strings.Join(names, ", ")
}
