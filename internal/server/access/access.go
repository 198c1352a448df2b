// Package access implements the file-access decision logic: the download
// permission check and the non-administrative listing filter.
//
// The two rules are intentionally NOT the same. A file with empty
// AllowedGroups and IsPublic=false shows up in no listing, yet any
// authenticated caller who knows its ID may download it. The policy came
// over from the system this one replaced and callers depend on it, so the
// asymmetry is preserved here rather than unified.
package access

import "github.com/dkovalov/filegate/internal/server/models"

// DenyReason says why a download was refused.
type DenyReason int

const (
	DenyNone DenyReason = iota
	// DenyUnauthenticated: caller identity could not be resolved.
	DenyUnauthenticated
	// DenyForbidden: identity is fine but no group overlap exists.
	DenyForbidden
)

func (r DenyReason) String() string {
	switch r {
	case DenyNone:
		return "allowed"
	case DenyUnauthenticated:
		return "unauthenticated"
	case DenyForbidden:
		return "forbidden"
	default:
		return "unknown"
	}
}

// Decision is the outcome of a download permission check.
type Decision struct {
	Allowed bool
	Reason  DenyReason
}

var allow = Decision{Allowed: true, Reason: DenyNone}

func deny(r DenyReason) Decision { return Decision{Allowed: false, Reason: r} }

// CanDownload evaluates the download rule in order:
//
//  1. identity must be resolved, else DenyUnauthenticated;
//  2. non-empty AllowedGroups requires a group intersection, else
//     DenyForbidden;
//  3. empty AllowedGroups allows any resolved identity.
func CanDownload(identityResolved bool, userGroups []int64, file *models.FileRecord) Decision {
	if !identityResolved {
		return deny(DenyUnauthenticated)
	}

	if len(file.AllowedGroups) > 0 {
		if intersects(userGroups, file.AllowedGroups) {
			return allow
		}
		return deny(DenyForbidden)
	}

	return allow
}

// ListAccessible filters the full file set down to what a non-administrative
// caller may see: public files plus files with a group intersection. Note
// the narrower rule compared to CanDownload (see the package comment).
func ListAccessible(userGroups []int64, files []*models.FileRecord) []*models.FileRecord {
	result := make([]*models.FileRecord, 0, len(files))
	for _, f := range files {
		if f.IsPublic || intersects(userGroups, f.AllowedGroups) {
			result = append(result, f)
		}
	}
	return result
}

func intersects(a, b []int64) bool {
	if len(a) == 0 || len(b) == 0 {
		return false
	}
	set := make(map[int64]struct{}, len(a))
	for _, v := range a {
		set[v] = struct{}{}
	}
	for _, v := range b {
		if _, ok := set[v]; ok {
			return true
		}
	}
	return false
}
