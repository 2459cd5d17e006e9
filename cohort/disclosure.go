package cohort

// ApplyDisclosureControl removes every dataset with fewer matching subjects
// than minCellSize.  Datasets are dropped whole rather than truncated, since
// a suppressed but nonzero count would itself leak information.  A
// minCellSize of 0 or 1 disables suppression.  The input is not modified.
func ApplyDisclosureControl(datasets []*DatasetRecord, minCellSize int) []*DatasetRecord {
	kept := make([]*DatasetRecord, 0, len(datasets))
	for _, ds := range datasets {
		if minCellSize > 1 && ds.NumMatchingSubjects() < minCellSize {
			continue
		}
		kept = append(kept, ds)
	}
	return kept
}
