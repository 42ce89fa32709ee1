package api

import (
	"testing"

	"rental-ops/internal/domain"
)

func TestAddableApplicantType(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name string
		typ  domain.ApplicantType
		want bool
	}{
		{name: "co-applicant", typ: domain.ApplicantCoApplicant, want: true},
		{name: "guarantor", typ: domain.ApplicantGuarantor, want: true},
		{name: "primary is created with the application", typ: domain.ApplicantPrimary, want: false},
		{name: "empty", typ: domain.ApplicantType(""), want: false},
		{name: "unknown", typ: domain.ApplicantType("cosigner"), want: false},
	}

	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			got := addableApplicantType(tc.typ)
			if got != tc.want {
				t.Fatalf("addableApplicantType(%q) = %v, want %v", tc.typ, got, tc.want)
			}
		})
	}
}

func TestKnownVerificationStatus(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name   string
		status domain.VerificationStatus
		want   bool
	}{
		{name: "pending", status: domain.VerificationPending, want: true},
		{name: "verified", status: domain.VerificationVerified, want: true},
		{name: "rejected", status: domain.VerificationRejected, want: true},
		{name: "expired", status: domain.VerificationExpired, want: true},
		{name: "empty", status: domain.VerificationStatus(""), want: false},
		{name: "unknown", status: domain.VerificationStatus("approved"), want: false},
	}

	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			got := knownVerificationStatus(tc.status)
			if got != tc.want {
				t.Fatalf("knownVerificationStatus(%q) = %v, want %v", tc.status, got, tc.want)
			}
		})
	}
}

func TestFindItem(t *testing.T) {
	t.Parallel()

	items := []domain.ChecklistItem{
		{ID: domain.ItemApplicationReviewed, Manual: true},
		{ID: domain.ItemPrimaryContactInfo, Checked: true},
	}

	item, found := findItem(items, domain.ItemPrimaryContactInfo)
	if !found {
		t.Fatal("expected item to be found")
	}
	if !item.Checked {
		t.Fatal("expected the matching item, not a zero value")
	}

	if _, found := findItem(items, "no_such_item"); found {
		t.Fatal("expected lookup miss for unknown id")
	}
}
