// Package acl decodes Windows Security Identifiers embedded in an ACL byte
// blob and classifies the principals they name. Binary layout follows
// MS-DTYP §2.4.2: revision(1) + sub_authority_count(1) +
// identifier_authority(6, big-endian) + sub_authorities(4*N, little-endian).
package acl

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/frijswijk/intellistor-migration/internal/bincodec"
)

const (
	sidRevision   = 1
	minSubAuth    = 1
	maxSubAuth    = 15
	everyoneSID   = "S-1-1-0"
	builtinPrefix = "S-1-5-32-"
	domainTopSub  = 21
	userRIDFloor  = 1000
)

// SIDInfo is one discovered security identifier.
type SIDInfo struct {
	SID        string
	RID        uint32
	HasRID     bool
	IsEveryone bool
}

// PrincipalType classifies a SID for reporting purposes.
type PrincipalType int

const (
	PrincipalUnknown PrincipalType = iota
	PrincipalEveryone
	PrincipalBuiltinGroup
	PrincipalUser
	PrincipalGroup
)

func (p PrincipalType) String() string {
	switch p {
	case PrincipalEveryone:
		return "Everyone"
	case PrincipalBuiltinGroup:
		return "BUILTIN_GROUP"
	case PrincipalUser:
		return "USER"
	case PrincipalGroup:
		return "GROUP"
	default:
		return "UNKNOWN"
	}
}

// ClassifyPrincipal maps a discovered SID to its principal type: the
// well-known Everyone SID, a BUILTIN group, or a domain USER/GROUP split
// on the RID floor.
func ClassifyPrincipal(info SIDInfo) PrincipalType {
	switch {
	case info.IsEveryone:
		return PrincipalEveryone
	case strings.HasPrefix(info.SID, builtinPrefix):
		return PrincipalBuiltinGroup
	case info.HasRID && info.RID >= userRIDFloor:
		return PrincipalUser
	case info.HasRID:
		return PrincipalGroup
	default:
		return PrincipalUnknown
	}
}

// Scan walks data looking for plausible SID structures at every offset:
// a revision byte of 1 followed by a sub-authority count in [1,15] and
// enough remaining bytes to hold the full structure. Results are
// deduplicated by SID string and returned in discovery order.
func Scan(data []byte) []SIDInfo {
	seen := make(map[string]bool)
	var results []SIDInfo

	for i := 0; i+8 <= len(data); i++ {
		if data[i] != sidRevision {
			continue
		}
		subAuthCount := int(data[i+1])
		if subAuthCount < minSubAuth || subAuthCount > maxSubAuth {
			continue
		}
		expectedLen := 8 + 4*subAuthCount
		if i+expectedLen > len(data) {
			continue
		}

		c := bincodec.NewCursor(data[i:])
		c.Seek(2)
		authority, err := c.U48BE()
		if err != nil {
			continue
		}

		subAuths := make([]uint32, subAuthCount)
		ok := true
		for k := 0; k < subAuthCount; k++ {
			v, err := c.U32LE()
			if err != nil {
				ok = false
				break
			}
			subAuths[k] = v
		}
		if !ok {
			continue
		}

		sidStr := formatSID(sidRevision, authority, subAuths)
		if seen[sidStr] {
			continue
		}
		seen[sidStr] = true

		info := SIDInfo{
			SID:        sidStr,
			IsEveryone: sidStr == everyoneSID,
		}
		if subAuthCount >= 5 && subAuths[0] == domainTopSub {
			info.RID = subAuths[len(subAuths)-1]
			info.HasRID = true
		}
		results = append(results, info)
	}
	return results
}

func formatSID(revision int, authority uint64, subAuths []uint32) string {
	var b strings.Builder
	fmt.Fprintf(&b, "S-%d-%d", revision, authority)
	for _, sa := range subAuths {
		b.WriteByte('-')
		b.WriteString(strconv.FormatUint(uint64(sa), 10))
	}
	return b.String()
}
