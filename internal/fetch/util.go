package fetch

import "strings"

// containsFold reports whether s contains substr, ignoring case — used by
// the index-backed fetchers (Helm, APT, APK, repomd, git-clone) whose Search
// has no server-side query.
func containsFold(s, substr string) bool {
	return strings.Contains(strings.ToLower(s), strings.ToLower(substr))
}
