package security

import (
	"testing"
	"time"
)

func testThresholds() Thresholds {
	return Thresholds{
		MaxAttempts:   5,
		Window:        15 * time.Minute,
		Permanent:     15,
		AuthTolerance: 8,
		Grace:         60 * time.Millisecond,
		GC:            24 * time.Hour,
	}
}

func TestRecordSuspicious_AutoBanAtMaxAttempts(t *testing.T) {
	l := New(testThresholds())
	ip := "10.0.0.1"

	for i := 0; i < 4; i++ {
		l.RecordSuspicious(ip, InvalidProtocol)
		if l.IsBanned(ip) {
			t.Fatalf("banned too early at attempt %d", i+1)
		}
	}
	l.RecordSuspicious(ip, InvalidProtocol)
	if !l.IsBanned(ip) {
		t.Fatalf("expected ban after MaxAttempts reached")
	}
}

func TestRecordSuspicious_AuthFailedUsesAuthTolerance(t *testing.T) {
	l := New(testThresholds())
	ip := "10.0.0.2"

	for i := 0; i < 7; i++ {
		l.RecordSuspicious(ip, AuthFailed)
	}
	if l.IsBanned(ip) {
		t.Fatalf("should not ban before AuthTolerance reached (7 attempts)")
	}
	l.RecordSuspicious(ip, AuthFailed)
	if !l.IsBanned(ip) {
		t.Fatalf("expected ban at 8th AUTH_FAILED attempt")
	}
}

func TestRecordSuspicious_PermanentThresholdIgnoresWindow(t *testing.T) {
	thresholds := testThresholds()
	thresholds.Window = time.Nanosecond // force window to always be exceeded
	l := New(thresholds)
	ip := "10.0.0.3"

	for i := 0; i < 14; i++ {
		l.RecordSuspicious(ip, InvalidProtocol)
	}
	if l.IsBanned(ip) {
		t.Fatalf("should not ban purely from window-exceeded attempts below PERMANENT")
	}
	l.RecordSuspicious(ip, InvalidProtocol)
	if !l.IsBanned(ip) {
		t.Fatalf("expected ban once PERMANENT threshold reached regardless of window")
	}
}

func TestUnban_ReportsPriorMembership(t *testing.T) {
	l := New(testThresholds())
	ip := "10.0.0.4"

	if l.Unban(ip) {
		t.Fatalf("expected false for an IP never banned")
	}

	l.Ban(ip)
	if !l.Unban(ip) {
		t.Fatalf("expected true for an IP that was banned")
	}
	if l.IsBanned(ip) {
		t.Fatalf("expected ip to no longer be banned")
	}
}

func TestUnban_GracePeriodSuppressesAutoBan(t *testing.T) {
	l := New(testThresholds())
	ip := "10.0.0.5"

	l.Ban(ip)
	l.Unban(ip)

	for i := 0; i < 20; i++ {
		l.RecordSuspicious(ip, AuthFailed)
	}
	if l.IsBanned(ip) {
		t.Fatalf("expected no re-ban during grace period")
	}

	time.Sleep(100 * time.Millisecond) // grace window (60ms) has elapsed

	for i := 0; i < 8; i++ {
		l.RecordSuspicious(ip, AuthFailed)
	}
	if !l.IsBanned(ip) {
		t.Fatalf("expected re-ban once grace period has elapsed")
	}
}

func TestAutoBanStatus_IsReadOnly(t *testing.T) {
	l := New(testThresholds())
	ip := "10.0.0.6"

	l.RecordSuspicious(ip, InvalidProtocol)
	before := l.AutoBanStatus(ip)
	if before.Attempts != 1 {
		t.Fatalf("expected 1 tracked attempt, got %d", before.Attempts)
	}

	// Calling AutoBanStatus repeatedly must not itself increment attempts.
	l.AutoBanStatus(ip)
	l.AutoBanStatus(ip)
	after := l.AutoBanStatus(ip)
	if after.Attempts != 1 {
		t.Fatalf("AutoBanStatus mutated ledger state: attempts now %d", after.Attempts)
	}
}

func TestAutoBanStatus_NoTrackedAttempts(t *testing.T) {
	l := New(testThresholds())
	status := l.AutoBanStatus("10.0.0.7")
	if status.Attempts != 0 || status.WouldAutoBan {
		t.Fatalf("expected empty status for untracked IP, got %+v", status)
	}
}

func TestSweep_RemovesStaleAttemptsButNotBans(t *testing.T) {
	thresholds := testThresholds()
	thresholds.GC = time.Nanosecond
	l := New(thresholds)
	ip := "10.0.0.8"

	l.RecordSuspicious(ip, InvalidProtocol)
	l.Ban(ip)

	time.Sleep(5 * time.Millisecond)
	l.Sweep()

	status := l.AutoBanStatus(ip)
	if status.Attempts != 0 {
		t.Fatalf("expected attempts cleared after GC sweep, got %d", status.Attempts)
	}
	if !l.IsBanned(ip) {
		t.Fatalf("expected bannedIPs to never age out")
	}
}

func TestIsBanned_UnknownIP(t *testing.T) {
	l := New(testThresholds())
	if l.IsBanned("192.0.2.1") {
		t.Fatalf("unknown IP must not be reported as banned")
	}
}
