// Package folders flattens cached folder trees so a stored selection can be
// checked against the folders a site currently reports.
package folders

import "github.com/itchan-dev/crosspost/shared/domain"

// Flatten returns every non-empty folder id in pre-order.
func Flatten(tree []domain.Folder) []string {
	var ids []string
	var walk func([]domain.Folder)
	walk = func(nodes []domain.Folder) {
		for _, f := range nodes {
			if f.ID != "" {
				ids = append(ids, f.ID)
			}
			walk(f.Subfolders)
		}
	}
	walk(tree)
	return ids
}

// Stale returns the selected ids that no longer exist in tree, in the order
// they were selected. Empty selections are ignored.
func Stale(selected []string, tree []domain.Folder) []string {
	valid := make(map[string]struct{})
	for _, id := range Flatten(tree) {
		valid[id] = struct{}{}
	}
	var stale []string
	for _, id := range selected {
		if id == "" {
			continue
		}
		if _, ok := valid[id]; !ok {
			stale = append(stale, id)
		}
	}
	return stale
}
