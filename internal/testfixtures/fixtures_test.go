package testfixtures

import (
	"testing"

	"github.com/example/leaveflow/internal/application"
)

func TestUserFixtureOptions(t *testing.T) {
	t.Parallel()

	fixture := NewUserFixture(WithUserID("u-1"), WithName("Dana"), AsAdmin(), WithBalance(3))

	if fixture.ID != "u-1" || fixture.Name != "Dana" || fixture.LeaveBalance != 3 {
		t.Fatalf("unexpected fixture %+v", fixture)
	}
	if !fixture.Principal().IsAdmin() {
		t.Fatalf("expected admin principal")
	}
	if fixture.Persistence().Role != "admin" {
		t.Fatalf("expected persisted role admin, got %q", fixture.Persistence().Role)
	}
	if fixture.Application().Email != fixture.Email {
		t.Fatalf("application user lost email")
	}
}

func TestLeaveRequestFixtureDefaults(t *testing.T) {
	t.Parallel()

	fixture := NewLeaveRequestFixture("u-1")
	if fixture.Status != application.StatusPending || fixture.Days() != 3 {
		t.Fatalf("unexpected defaults %+v", fixture)
	}

	input := fixture.Input()
	if input.Reason == "" || input.LeaveType != application.LeaveAnnual {
		t.Fatalf("unexpected input %+v", input)
	}

	approved := NewLeaveRequestFixture("u-1", WithStatus(application.StatusApproved))
	if approved.Persistence().Status != "approved" {
		t.Fatalf("expected approved row, got %q", approved.Persistence().Status)
	}
}
