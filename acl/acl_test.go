package acl_test

import (
	"testing"

	"github.com/frijswijk/intellistor-migration/acl"
)

// buildSID encodes a SID per MS-DTYP §2.4.2: revision, sub-authority count,
// 6-byte big-endian authority, then little-endian sub-authorities.
func buildSID(authority uint64, subAuths ...uint32) []byte {
	buf := make([]byte, 8+4*len(subAuths))
	buf[0] = 1
	buf[1] = byte(len(subAuths))
	for i := 5; i >= 0; i-- {
		buf[2+i] = byte(authority)
		authority >>= 8
	}
	for i, sa := range subAuths {
		off := 8 + i*4
		buf[off] = byte(sa)
		buf[off+1] = byte(sa >> 8)
		buf[off+2] = byte(sa >> 16)
		buf[off+3] = byte(sa >> 24)
	}
	return buf
}

func TestScanFindsEveryone(t *testing.T) {
	data := buildSID(1, 0)
	results := acl.Scan(data)
	if len(results) != 1 {
		t.Fatalf("got %d results, want 1", len(results))
	}
	if results[0].SID != "S-1-1-0" || !results[0].IsEveryone {
		t.Fatalf("result = %+v", results[0])
	}
}

func TestScanDomainUserRID(t *testing.T) {
	data := buildSID(5, 21, 111111, 222222, 333333, 1001)
	results := acl.Scan(data)
	if len(results) != 1 {
		t.Fatalf("got %d results, want 1", len(results))
	}
	if !results[0].HasRID || results[0].RID != 1001 {
		t.Fatalf("result = %+v", results[0])
	}
	if acl.ClassifyPrincipal(results[0]) != acl.PrincipalUser {
		t.Fatalf("classify = %v, want USER", acl.ClassifyPrincipal(results[0]))
	}
}

func TestScanDomainGroupBelowRIDFloor(t *testing.T) {
	data := buildSID(5, 21, 111111, 222222, 333333, 513)
	results := acl.Scan(data)
	if acl.ClassifyPrincipal(results[0]) != acl.PrincipalGroup {
		t.Fatalf("classify = %v, want GROUP", acl.ClassifyPrincipal(results[0]))
	}
}

func TestScanBuiltinGroup(t *testing.T) {
	data := buildSID(5, 32, 544)
	results := acl.Scan(data)
	if len(results) != 1 {
		t.Fatalf("got %d results", len(results))
	}
	if acl.ClassifyPrincipal(results[0]) != acl.PrincipalBuiltinGroup {
		t.Fatalf("classify = %v, want BUILTIN_GROUP", acl.ClassifyPrincipal(results[0]))
	}
}

func TestScanDeduplicates(t *testing.T) {
	sid := buildSID(1, 0)
	data := append(append([]byte{}, sid...), sid...)
	results := acl.Scan(data)
	if len(results) != 1 {
		t.Fatalf("got %d results, want 1 (deduplicated)", len(results))
	}
}

func TestScanRejectsBadSubAuthCount(t *testing.T) {
	data := []byte{1, 0, 0, 0, 0, 0, 0, 0} // sub_auth_count = 0, invalid
	if results := acl.Scan(data); len(results) != 0 {
		t.Fatalf("got %d results, want 0", len(results))
	}
}
