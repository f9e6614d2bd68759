package review

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/go-monolith/mono"
	"github.com/go-monolith/mono/pkg/helper"
)

// ReviewPort is the interface other modules use to query review
// eligibility.
type ReviewPort interface {
	Eligible(ctx context.Context, taskID, callerID string) (*EligibleResponse, error)
}

type reviewAdapter struct {
	container mono.ServiceContainer
}

// NewReviewAdapter creates an adapter over the review service container.
func NewReviewAdapter(container mono.ServiceContainer) ReviewPort {
	if container == nil {
		panic("review adapter requires non-nil ServiceContainer")
	}
	return &reviewAdapter{container: container}
}

func (a *reviewAdapter) Eligible(ctx context.Context, taskID, callerID string) (*EligibleResponse, error) {
	req := EligibleRequest{TaskID: taskID, CallerID: callerID}
	var resp EligibleResponse
	if err := helper.CallRequestReplyService(
		ctx, a.container, "eligible", json.Marshal, json.Unmarshal, &req, &resp,
	); err != nil {
		return nil, fmt.Errorf("eligible service call failed: %w", err)
	}
	return &resp, nil
}
