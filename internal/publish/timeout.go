package publish

import (
	"time"

	"github.com/ReemX/pnpm-airgap/internal/artifact"
)

// slowArtifactFloor is the minimum timeout granted to artifacts on the
// known-slow list, regardless of their measured size.
const slowArtifactFloor = 5 * time.Minute

// TimeoutPolicy computes per-artifact upload timeouts.
type TimeoutPolicy struct {
	// Base is granted to every upload.
	Base time.Duration
	// PerMiB is added for each mebibyte of tarball, rounded up.
	PerMiB time.Duration
	// Max caps the computed timeout.
	Max time.Duration
	// SlowArtifacts lists package names with a history of slow uploads;
	// they get a raised floor.
	SlowArtifacts []string
}

// For returns the upload timeout for one artifact.
func (p TimeoutPolicy) For(h artifact.Handle) time.Duration {
	mib := (h.Size + (1 << 20) - 1) >> 20
	timeout := p.Base + time.Duration(mib)*p.PerMiB

	if p.isSlow(h.Identity.Name) && timeout < slowArtifactFloor {
		timeout = slowArtifactFloor
	}
	if p.Max > 0 && timeout > p.Max {
		timeout = p.Max
	}
	return timeout
}

func (p TimeoutPolicy) isSlow(name string) bool {
	for _, slow := range p.SlowArtifacts {
		if name == slow {
			return true
		}
	}
	return false
}
