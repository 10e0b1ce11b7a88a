package domain

import (
	"testing"
	"time"

	"summercamp_backend/platform/apperr"
)

func TestParseStatusIsCaseInsensitive(t *testing.T) {
	tests := []struct {
		raw  string
		want Status
	}{
		{"OpenForRegistration", StatusOpenForRegistration},
		{"openforregistration", StatusOpenForRegistration},
		{"  INPROGRESS ", StatusInProgress},
		{"canceled", StatusCanceled},
	}
	for _, tc := range tests {
		got, err := ParseStatus(tc.raw)
		if err != nil {
			t.Fatalf("ParseStatus(%q) unexpected error: %v", tc.raw, err)
		}
		if got != tc.want {
			t.Errorf("ParseStatus(%q) = %s, want %s", tc.raw, got, tc.want)
		}
	}

	if _, err := ParseStatus("Archived"); err == nil {
		t.Fatalf("expected error for unknown status")
	}
}

func TestCanTransitionMatchesTable(t *testing.T) {
	allowed := map[[2]Status]bool{
		{StatusPublished, StatusOpenForRegistration}:          true,
		{StatusOpenForRegistration, StatusRegistrationClosed}: true,
		{StatusOpenForRegistration, StatusUnderEnrolled}:      true,
		{StatusRegistrationClosed, StatusInProgress}:          true,
		{StatusRegistrationClosed, StatusUnderEnrolled}:       true,
		{StatusUnderEnrolled, StatusOpenForRegistration}:      true,
		{StatusUnderEnrolled, StatusInProgress}:               true,
		{StatusInProgress, StatusCompleted}:                   true,
	}

	for _, from := range AllStatuses {
		for _, to := range AllStatuses {
			want := allowed[[2]Status{from, to}]
			if got := CanTransition(from, to); got != want {
				t.Errorf("CanTransition(%s, %s) = %v, want %v", from, to, got, want)
			}
		}
	}
}

func TestCanceledAndCompletedAreTerminal(t *testing.T) {
	for _, s := range []Status{StatusCanceled, StatusCompleted, StatusDraft} {
		for _, to := range AllStatuses {
			if CanTransition(s, to) {
				t.Errorf("expected no automatic edge from %s to %s", s, to)
			}
		}
	}
}

func TestValidateSchedule(t *testing.T) {
	now := time.Date(2026, time.June, 1, 12, 0, 0, 0, time.UTC)
	at := func(h int) *time.Time {
		v := now.Add(time.Duration(h) * time.Hour)
		return &v
	}

	tests := []struct {
		name    string
		camp    Camp
		wantErr bool
	}{
		{"valid", Camp{RegistrationStart: at(1), RegistrationEnd: at(2), Start: at(3), End: at(4)}, false},
		{"registration end equals start", Camp{RegistrationStart: at(1), RegistrationEnd: at(3), Start: at(3), End: at(4)}, false},
		{"missing end", Camp{RegistrationStart: at(1), RegistrationEnd: at(2), Start: at(3)}, true},
		{"registration window inverted", Camp{RegistrationStart: at(2), RegistrationEnd: at(1), Start: at(3), End: at(4)}, true},
		{"registration closes after start", Camp{RegistrationStart: at(1), RegistrationEnd: at(5), Start: at(3), End: at(6)}, true},
		{"end before start", Camp{RegistrationStart: at(1), RegistrationEnd: at(2), Start: at(4), End: at(3)}, true},
		{"registration start in the past", Camp{RegistrationStart: at(-1), RegistrationEnd: at(2), Start: at(3), End: at(4)}, true},
	}

	for _, tc := range tests {
		err := tc.camp.ValidateSchedule(now)
		if tc.wantErr {
			if !apperr.Is(err, apperr.KindValidation) {
				t.Errorf("%s: expected validation error, got %v", tc.name, err)
			}
			continue
		}
		if err != nil {
			t.Errorf("%s: unexpected error: %v", tc.name, err)
		}
	}
}

func TestJobNameRoundTrip(t *testing.T) {
	name := JobName(42, string(MilestoneRegistrationEnd))
	if name != "Camp_42_RegistrationEnd" {
		t.Fatalf("unexpected job name %q", name)
	}

	campID, kind, err := ParseJobName(name)
	if err != nil {
		t.Fatalf("ParseJobName: %v", err)
	}
	if campID != 42 || kind != "RegistrationEnd" {
		t.Fatalf("got (%d, %q)", campID, kind)
	}

	for _, bad := range []string{"Camp_x_Start", "Job_1_Start", "Camp_7", "Camp_0_End", "Camp_7_"} {
		if _, _, err := ParseJobName(bad); err == nil {
			t.Errorf("ParseJobName(%q) expected error", bad)
		}
	}
}

func TestOverlaps(t *testing.T) {
	day := func(d int) *time.Time {
		v := time.Date(2026, time.July, d, 0, 0, 0, 0, time.UTC)
		return &v
	}
	a := Camp{Start: day(1), End: day(10)}

	if !a.Overlaps(Camp{Start: day(10), End: day(15)}) {
		t.Errorf("touching ranges should overlap")
	}
	if !a.Overlaps(Camp{Start: day(3), End: day(4)}) {
		t.Errorf("contained range should overlap")
	}
	if a.Overlaps(Camp{Start: day(11), End: day(15)}) {
		t.Errorf("disjoint ranges should not overlap")
	}
}
