package app

import (
	"fmt"
	"time"

	"devhub/internal/util"
	"devhub/pkg/domain"
)

// FriendRequestView is a friend request with the counterpart profile
// resolved, shaped for the inbox and outbox listings.
type FriendRequestView struct {
	ID        string         `json:"id"`
	From      domain.Profile `json:"from"`
	To        domain.Profile `json:"to"`
	Status    string         `json:"status"`
	CreatedAt time.Time      `json:"createdAt"`
}

// SendFriendRequest creates a pending request from actor to the target
// user.
func (a *App) SendFriendRequest(actor domain.User, targetID string) (domain.FriendRequest, error) {
	if targetID == actor.ID {
		return domain.FriendRequest{}, invalid("cannot send a friend request to yourself")
	}
	target, ok, err := a.store.GetUserByID(targetID)
	if err != nil {
		return domain.FriendRequest{}, fmt.Errorf("fetch user: %w", err)
	}
	if !ok {
		return domain.FriendRequest{}, notFound("user not found")
	}
	if friends, err := a.store.AreFriends(actor.ID, target.ID); err != nil {
		return domain.FriendRequest{}, fmt.Errorf("check friendship: %w", err)
	} else if friends {
		return domain.FriendRequest{}, conflict("already friends")
	}
	if pending, err := a.store.HasPendingRequestBetween(actor.ID, target.ID); err != nil {
		return domain.FriendRequest{}, fmt.Errorf("check pending requests: %w", err)
	} else if pending {
		return domain.FriendRequest{}, conflict("a friend request is already pending")
	}
	now := time.Now().UTC()
	request := domain.FriendRequest{
		ID:        util.NewID(),
		FromID:    actor.ID,
		ToID:      target.ID,
		Status:    domain.RequestPending,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := a.store.SaveFriendRequest(request); err != nil {
		return domain.FriendRequest{}, fmt.Errorf("save friend request: %w", err)
	}
	return request, nil
}

// AcceptFriendRequest accepts a pending request addressed to the actor
// and records the friendship.
func (a *App) AcceptFriendRequest(actor domain.User, requestID string) error {
	request, err := a.pendingRequestTo(actor, requestID)
	if err != nil {
		return err
	}
	if err := a.store.AddFriendship(request.FromID, request.ToID); err != nil {
		return fmt.Errorf("add friendship: %w", err)
	}
	request.Status = domain.RequestAccepted
	request.UpdatedAt = time.Now().UTC()
	if err := a.store.SaveFriendRequest(request); err != nil {
		return fmt.Errorf("save friend request: %w", err)
	}
	return nil
}

// RejectFriendRequest declines a pending request addressed to the
// actor.
func (a *App) RejectFriendRequest(actor domain.User, requestID string) error {
	request, err := a.pendingRequestTo(actor, requestID)
	if err != nil {
		return err
	}
	request.Status = domain.RequestRejected
	request.UpdatedAt = time.Now().UTC()
	if err := a.store.SaveFriendRequest(request); err != nil {
		return fmt.Errorf("save friend request: %w", err)
	}
	return nil
}

// CancelFriendRequest withdraws a pending request the actor sent.
func (a *App) CancelFriendRequest(actor domain.User, requestID string) error {
	request, ok, err := a.store.GetFriendRequest(requestID)
	if err != nil {
		return fmt.Errorf("fetch friend request: %w", err)
	}
	if !ok {
		return notFound("friend request not found")
	}
	if request.FromID != actor.ID {
		return forbidden("cannot cancel someone else's friend request")
	}
	if request.Status != domain.RequestPending {
		return invalidState("friend request is no longer pending")
	}
	if err := a.store.DeleteFriendRequest(requestID); err != nil {
		return fmt.Errorf("delete friend request: %w", err)
	}
	return nil
}

// ListFriends returns the actor's friends as public profiles.
func (a *App) ListFriends(actor domain.User) ([]domain.Profile, error) {
	return a.friendProfiles(actor.ID)
}

// RemoveFriend ends the friendship between the actor and friendID.
// Removing a user who is not a friend succeeds.
func (a *App) RemoveFriend(actor domain.User, friendID string) error {
	if err := a.store.RemoveFriendship(actor.ID, friendID); err != nil {
		return fmt.Errorf("remove friendship: %w", err)
	}
	return nil
}

// IncomingRequests lists pending requests addressed to the actor.
func (a *App) IncomingRequests(actor domain.User) ([]FriendRequestView, error) {
	requests, err := a.store.ListRequestsTo(actor.ID)
	if err != nil {
		return nil, fmt.Errorf("list requests: %w", err)
	}
	return a.requestViews(requests)
}

// OutgoingRequests lists pending requests the actor sent.
func (a *App) OutgoingRequests(actor domain.User) ([]FriendRequestView, error) {
	requests, err := a.store.ListRequestsFrom(actor.ID)
	if err != nil {
		return nil, fmt.Errorf("list requests: %w", err)
	}
	return a.requestViews(requests)
}

func (a *App) pendingRequestTo(actor domain.User, requestID string) (domain.FriendRequest, error) {
	request, ok, err := a.store.GetFriendRequest(requestID)
	if err != nil {
		return domain.FriendRequest{}, fmt.Errorf("fetch friend request: %w", err)
	}
	if !ok {
		return domain.FriendRequest{}, notFound("friend request not found")
	}
	if request.ToID != actor.ID {
		return domain.FriendRequest{}, forbidden("friend request is not addressed to you")
	}
	if request.Status != domain.RequestPending {
		return domain.FriendRequest{}, invalidState("friend request is no longer pending")
	}
	return request, nil
}

func (a *App) requestViews(requests []domain.FriendRequest) ([]FriendRequestView, error) {
	views := make([]FriendRequestView, 0, len(requests))
	for _, r := range requests {
		from, _, err := a.store.GetUserByID(r.FromID)
		if err != nil {
			return nil, fmt.Errorf("fetch user: %w", err)
		}
		to, _, err := a.store.GetUserByID(r.ToID)
		if err != nil {
			return nil, fmt.Errorf("fetch user: %w", err)
		}
		views = append(views, FriendRequestView{
			ID:        r.ID,
			From:      domain.ProfileOf(from),
			To:        domain.ProfileOf(to),
			Status:    string(r.Status),
			CreatedAt: r.CreatedAt,
		})
	}
	return views, nil
}
