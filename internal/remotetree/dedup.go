package remotetree

import (
	"context"
	"fmt"
	"sort"

	"github.com/shiver1514/feishu-sync/internal/feishu"
)

// ListerDeleter is what Dedup needs: list a folder's children and hard-delete
// a redundant sibling (which, for a folder, deletes its entire subtree).
type ListerDeleter interface {
	Lister
	HardDelete(ctx context.Context, remoteID string, kind feishu.ItemKind) error
}

// DedupResult reports what Dedup did, for RunSummary bookkeeping.
type DedupResult struct {
	GroupsDeduped int
	Deleted       int
}

// Dedup implements §4.5 P1. It walks from rootID exactly like Walk, but at
// every folder level it first groups children (files AND folders) by name;
// for any group with more than one member it keeps one and hard-deletes the
// rest (a folder's hard-delete removes its entire subtree), then descends
// only into the kept folders — mirroring the original provider's
// "group-by-name, keep newest, delete the rest, continue traversal into the
// kept folder" walk. The recycle folder at the root is never touched.
//
// Tie-break (§9 open question, resolved here): sort descending by
// ModifiedTime; among exact ties, keep the lexicographically smallest
// RemoteID. Deterministic across platforms and re-runs, unlike the
// "first encountered after sort" rule the source left undefined.
func Dedup(ctx context.Context, rd ListerDeleter, rootID string, opts Options) (DedupResult, error) {
	var result DedupResult
	if err := dedupFolder(ctx, rd, rootID, true, opts, &result); err != nil {
		return result, err
	}
	return result, nil
}

func dedupFolder(ctx context.Context, rd ListerDeleter, folderID string, isRoot bool, opts Options, result *DedupResult) error {
	children, err := rd.ListChildren(ctx, folderID)
	if err != nil {
		return fmt.Errorf("listing children of %s: %w", folderID, err)
	}

	groups := map[string][]feishu.Item{}
	for _, c := range children {
		if isRoot && opts.RecycleBinName != "" && c.Name == opts.RecycleBinName && c.Kind == feishu.KindFolder {
			continue
		}
		groups[c.Name] = append(groups[c.Name], c)
	}

	for _, group := range groups {
		if len(group) > 1 {
			result.GroupsDeduped++
			sort.Slice(group, func(i, j int) bool {
				if !group[i].ModifiedTime.Equal(group[j].ModifiedTime) {
					return group[i].ModifiedTime.After(group[j].ModifiedTime)
				}
				return group[i].RemoteID < group[j].RemoteID
			})

			for _, dup := range group[1:] {
				if err := rd.HardDelete(ctx, dup.RemoteID, dup.Kind); err != nil {
					if !isBenignAlreadyDeleted(err) {
						return fmt.Errorf("deduping %s under %s: %w", dup.RemoteID, folderID, err)
					}
				}
				result.Deleted++
			}
		}

		winner := group[0]
		if winner.Kind == feishu.KindFolder {
			if err := dedupFolder(ctx, rd, winner.RemoteID, false, opts, result); err != nil {
				return err
			}
		}
	}

	return nil
}

// isBenignAlreadyDeleted swallows "already deleted" errors during dedup
// (§4.5 P1: "benign 'already deleted' errors on removal are swallowed").
func isBenignAlreadyDeleted(err error) bool {
	var apiErr *feishu.APIError
	return asAPIError(err, &apiErr) && apiErr.Kind == feishu.KindRemoteGone
}

func asAPIError(err error, target **feishu.APIError) bool {
	for err != nil {
		if ae, ok := err.(*feishu.APIError); ok {
			*target = ae
			return true
		}
		u, ok := err.(interface{ Unwrap() error })
		if !ok {
			return false
		}
		err = u.Unwrap()
	}
	return false
}
