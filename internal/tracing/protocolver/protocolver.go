// Package protocolver negotiates the persisted region layout version
// between a producer and the consuming daemon using semantic
// version constraints, so an incompatible producer can be rejected before
// its offsets are read. Callers invoke Negotiate themselves (cmd/tracing-demo
// does so before mapping its region); region.Open validates only the header
// magic and checksum and does not check the layout version.
package protocolver

import (
	"github.com/Masterminds/semver/v3"

	"github.com/qorix-group/baselibs-sub006/internal/tracing/tracerrors"
)

// Current is the layout version this module writes.
const Current = "1.0.0"

// Negotiate reports whether producerVersion satisfies the consumer's
// constraint (e.g. ">=1.0.0, <2.0.0"). Both strings must parse as valid
// semver inputs; a parse failure or constraint violation is an
// InvalidArgument error naming which side failed.
func Negotiate(producerVersion, consumerConstraint string) error {
	v, err := semver.NewVersion(producerVersion)
	if err != nil {
		return tracerrors.InvalidArgument("protocolver.Negotiate", "producer version is not valid semver: "+producerVersion)
	}

	c, err := semver.NewConstraint(consumerConstraint)
	if err != nil {
		return tracerrors.InvalidArgument("protocolver.Negotiate", "consumer constraint is not valid semver: "+consumerConstraint)
	}

	if !c.Check(v) {
		return tracerrors.InvalidArgument("protocolver.Negotiate", "producer version "+producerVersion+" does not satisfy "+consumerConstraint)
	}

	return nil
}

// Compatible is a convenience wrapper that reports a bool instead of an
// error, for call sites that only care about the yes/no outcome.
func Compatible(producerVersion, consumerConstraint string) bool {
	return Negotiate(producerVersion, consumerConstraint) == nil
}
