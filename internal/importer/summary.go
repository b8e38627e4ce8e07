package importer

// TypeConflictStats counts conflicts of one entity type by classification.
type TypeConflictStats struct {
	Total            int `json:"total"`
	Duplicate        int `json:"duplicate"`
	ReferenceMissing int `json:"reference_missing"`
	ValidationFailed int `json:"validation_failed"`
}

type ConflictSummary struct {
	TotalConflicts  int                              `json:"total_conflicts"`
	Stats           map[EntityType]TypeConflictStats `json:"per_entity_type_statistics"`
	ConflictsByType map[EntityType][]DataConflict    `json:"conflicts_by_entity_type"`
}

// BuildSummary groups conflicts by entity type and counts them by
// classification. Conflict order within each group is preserved as produced,
// so repeated runs over the same payload yield an identical summary.
func BuildSummary(conflicts []DataConflict) ConflictSummary {
	summary := ConflictSummary{
		TotalConflicts:  len(conflicts),
		Stats:           make(map[EntityType]TypeConflictStats),
		ConflictsByType: make(map[EntityType][]DataConflict),
	}
	for _, conflict := range conflicts {
		stats := summary.Stats[conflict.EntityType]
		stats.Total++
		switch conflict.Classification {
		case ClassDuplicate:
			stats.Duplicate++
		case ClassReferenceMissing:
			stats.ReferenceMissing++
		case ClassValidationFailed:
			stats.ValidationFailed++
		}
		summary.Stats[conflict.EntityType] = stats
		summary.ConflictsByType[conflict.EntityType] = append(summary.ConflictsByType[conflict.EntityType], conflict)
	}
	return summary
}
