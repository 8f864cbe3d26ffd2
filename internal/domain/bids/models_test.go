package bids

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
)

func TestProject_Assigned(t *testing.T) {
	tests := []struct {
		name         string
		freelancerID uuid.UUID
		want         bool
	}{
		{
			name:         "unassigned project",
			freelancerID: uuid.Nil,
			want:         false,
		},
		{
			name:         "assigned project",
			freelancerID: uuid.New(),
			want:         true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			project := &Project{
				ID:           uuid.New(),
				OwnerID:      uuid.New(),
				FreelancerID: tt.freelancerID,
			}
			assert.Equal(t, tt.want, project.Assigned())
		})
	}
}

func TestInvalidBidError_Messages(t *testing.T) {
	// Reason is surfaced verbatim to API clients, so the wording is contractual
	assert.Equal(t, "projectId invalid", ErrProjectNotFound.Error())
	assert.Equal(t, "User already has a bid pending", ErrBidPending.Error())
	assert.Equal(t, "User doesn't have permission to accept this bid", ErrNotProjectOwner.Error())
	assert.Equal(t, "Project cannot be accepted as a freelancer has already been chosen", ErrProjectAssigned.Error())
}
