package types

import (
	"strconv"
	"strings"
	"testing"
)

func TestVersion_IsSemver(t *testing.T) {
	core, _, _ := strings.Cut(Version, "-")
	parts := strings.Split(core, ".")
	if len(parts) != 3 {
		t.Fatalf("Version %q should have major.minor.patch", Version)
	}
	for _, p := range parts {
		if _, err := strconv.Atoi(p); err != nil {
			t.Errorf("Version %q: %q is not numeric", Version, p)
		}
	}
}

// Host shims check the frame contract against the binary version.
func TestContractVersion_Lockstep(t *testing.T) {
	if ContractVersion != Version {
		t.Errorf("ContractVersion = %q, Version = %q", ContractVersion, Version)
	}
}
