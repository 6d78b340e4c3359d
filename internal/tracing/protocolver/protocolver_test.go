package protocolver

import "testing"

func TestNegotiateAcceptsSatisfyingVersion(t *testing.T) {
	if err := Negotiate(Current, ">=1.0.0, <2.0.0"); err != nil {
		t.Fatalf("Negotiate: %v", err)
	}
}

func TestNegotiateRejectsIncompatibleVersion(t *testing.T) {
	if err := Negotiate("2.5.0", ">=1.0.0, <2.0.0"); err == nil {
		t.Fatal("expected an incompatible major version to be rejected")
	}
}

func TestNegotiateRejectsUnparsableInput(t *testing.T) {
	if err := Negotiate("not-a-version", ">=1.0.0"); err == nil {
		t.Fatal("expected a parse failure on the producer version")
	}

	if err := Negotiate("1.0.0", "not-a-constraint!!"); err == nil {
		t.Fatal("expected a parse failure on the consumer constraint")
	}
}

func TestCompatibleMirrorsNegotiate(t *testing.T) {
	if !Compatible(Current, ">=1.0.0, <2.0.0") {
		t.Fatal("Compatible should agree with Negotiate on a satisfying version")
	}

	if Compatible("9.9.9", ">=1.0.0, <2.0.0") {
		t.Fatal("Compatible should agree with Negotiate on an incompatible version")
	}
}
