package configmanager

import "testing"

func TestSupportsPlatform_NoConstraintAlwaysSupported(t *testing.T) {
	if !SupportsPlatform("apt", nil) {
		t.Fatal("expected no platform constraint to be supported by any provider")
	}
}

func TestSupportsPlatform_DisjointIsUnsupported(t *testing.T) {
	if SupportsPlatform("winget", []string{"linux", "macos"}) {
		t.Fatal("expected winget to be unsupported for linux/macos-only software")
	}
}

func TestSupportsPlatform_OverlapIsSupported(t *testing.T) {
	if !SupportsPlatform("brew", []string{"linux"}) {
		t.Fatal("expected brew to support linux")
	}
}

func TestSupportsPlatform_UnknownProviderAssumedSupported(t *testing.T) {
	if !SupportsPlatform("some_future_provider", []string{"linux"}) {
		t.Fatal("expected an unlisted provider to default to supported")
	}
}
