package config

import (
	"errors"
	"fmt"

	"gopkg.in/yaml.v3"
)

// CheckUnknownKeys walks the document's top-level mapping and, for "sync"
// and "auth", their own sub-mappings, flagging any key close enough to a
// known key to be a likely typo (rather than a deliberate forward-compat
// extension, which extraKeys preserves silently in Config.Extra). Mirrors
// the teacher's checkUnknownKeys, adapted from TOML undecoded-key metadata
// to a walked YAML node tree.
func CheckUnknownKeys(doc *yaml.Node) error {
	if doc.Kind != yaml.DocumentNode || len(doc.Content) == 0 {
		return nil
	}
	root := doc.Content[0]
	if root.Kind != yaml.MappingNode {
		return nil
	}

	var errs []error
	for i := 0; i+1 < len(root.Content); i += 2 {
		key := root.Content[i].Value
		switch {
		case knownTopLevelKeys[key]:
			if key == "sync" || key == "auth" {
				errs = append(errs, checkSubKeys(key, root.Content[i+1])...)
			}
		default:
			if suggestion := SuggestTopLevel(key); suggestion != "" {
				errs = append(errs, fmt.Errorf("%w: %q — did you mean %q?", ErrUnknownKey, key, suggestion))
			}
		}
	}

	if len(errs) == 0 {
		return nil
	}
	return errors.Join(errs...)
}

// checkSubKeys flags unrecognized keys under the "sync"/"auth" sections.
func checkSubKeys(section string, node *yaml.Node) []error {
	if node.Kind != yaml.MappingNode {
		return nil
	}

	known := knownSyncKeys
	suggest := SuggestSyncKey
	if section == "auth" {
		known, suggest = knownAuthKeys, SuggestAuthKey
	}
	knownSet := make(map[string]bool, len(known))
	for _, k := range known {
		knownSet[k] = true
	}

	var errs []error
	for i := 0; i+1 < len(node.Content); i += 2 {
		key := node.Content[i].Value
		if knownSet[key] {
			continue
		}
		if suggestion := suggest(key); suggestion != "" {
			errs = append(errs, fmt.Errorf("%w: %s.%s — did you mean %s.%s?", ErrUnknownKey, section, key, section, suggestion))
		}
	}
	return errs
}

// knownSyncKeys and knownAuthKeys list every recognized key under sync/auth,
// used to suggest the likely intended key for a near-miss typo (e.g.
// "pol_interval_sec" instead of "poll_interval_sec"), which fails Load.
var (
	knownSyncKeys = []string{
		"local_root", "remote_folder_token", "poll_interval_sec",
		"default_sync_direction", "initial_sync_strategy",
		"remote_recycle_bin", "local_trash_dir", "remote_delete_mode",
		"cleanup_empty_remote_dirs", "cleanup_remote_missing_dirs_recursive",
		"exclude_dirs", "exclude_hidden_dirs", "exclude_hidden_files",
		"event_callback_enabled", "event_verify_token", "event_encrypt_key",
		"event_debounce_sec", "event_trigger_types",
	}
	knownAuthKeys = []string{"app_id", "app_secret", "user_token_file", "timeout_sec"}
)

// SuggestTopLevel returns the closest known top-level key to an unrecognized
// one, or "" if nothing is close enough to be worth suggesting.
func SuggestTopLevel(key string) string {
	return closestMatch(key, []string{"state_db_path", "log_level", "auth", "sync"})
}

// SuggestSyncKey and SuggestAuthKey do the same within their sub-sections.
func SuggestSyncKey(key string) string { return closestMatch(key, knownSyncKeys) }
func SuggestAuthKey(key string) string { return closestMatch(key, knownAuthKeys) }

// closestMatch returns the candidate with the smallest Levenshtein distance
// to key, provided that distance is small relative to the key's length;
// otherwise it returns "" rather than suggesting something unrelated.
func closestMatch(key string, candidates []string) string {
	best := ""
	bestDist := -1

	for _, c := range candidates {
		d := levenshtein(key, c)
		if bestDist == -1 || d < bestDist {
			best = c
			bestDist = d
		}
	}

	if bestDist == -1 || bestDist > maxSuggestDistance(key) {
		return ""
	}
	return best
}

// maxSuggestDistance scales the acceptable edit distance with key length so
// short keys require a near-exact match and long keys tolerate more typos.
func maxSuggestDistance(key string) int {
	n := len(key) / 3
	if n < 1 {
		return 1
	}
	if n > 4 {
		return 4
	}
	return n
}

// levenshtein computes the classic edit distance between two strings.
func levenshtein(a, b string) int {
	ra, rb := []rune(a), []rune(b)
	n, m := len(ra), len(rb)

	prev := make([]int, m+1)
	curr := make([]int, m+1)
	for j := 0; j <= m; j++ {
		prev[j] = j
	}

	for i := 1; i <= n; i++ {
		curr[0] = i
		for j := 1; j <= m; j++ {
			cost := 1
			if ra[i-1] == rb[j-1] {
				cost = 0
			}
			curr[j] = min3(curr[j-1]+1, prev[j]+1, prev[j-1]+cost)
		}
		prev, curr = curr, prev
	}

	return prev[m]
}

func min3(a, b, c int) int {
	m := a
	if b < m {
		m = b
	}
	if c < m {
		m = c
	}
	return m
}
