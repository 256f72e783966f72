package app

import (
	"context"
	"testing"
)

func TestFriendRequestFlow(t *testing.T) {
	e := newTestEnv(t)
	alice := e.signUp(t, "alice")
	bob := e.signUp(t, "bob")

	request, err := e.app.SendFriendRequest(alice, bob.ID)
	if err != nil {
		t.Fatalf("SendFriendRequest: %v", err)
	}

	incoming, err := e.app.IncomingRequests(bob)
	if err != nil {
		t.Fatalf("IncomingRequests: %v", err)
	}
	if len(incoming) != 1 || incoming[0].From.Username != "alice" {
		t.Fatalf("incoming = %+v", incoming)
	}
	outgoing, err := e.app.OutgoingRequests(alice)
	if err != nil {
		t.Fatalf("OutgoingRequests: %v", err)
	}
	if len(outgoing) != 1 || outgoing[0].To.Username != "bob" {
		t.Fatalf("outgoing = %+v", outgoing)
	}

	if err := e.app.AcceptFriendRequest(bob, request.ID); err != nil {
		t.Fatalf("AcceptFriendRequest: %v", err)
	}
	friends, err := e.app.ListFriends(alice)
	if err != nil {
		t.Fatalf("ListFriends: %v", err)
	}
	if len(friends) != 1 || friends[0].Username != "bob" {
		t.Fatalf("friends = %+v", friends)
	}

	// Accepted requests no longer show up in the inbox.
	incoming, err = e.app.IncomingRequests(bob)
	if err != nil {
		t.Fatalf("IncomingRequests: %v", err)
	}
	if len(incoming) != 0 {
		t.Fatalf("incoming after accept = %+v", incoming)
	}
}

func TestFriendRequestGuards(t *testing.T) {
	e := newTestEnv(t)
	alice := e.signUp(t, "alice")
	bob := e.signUp(t, "bob")

	_, err := e.app.SendFriendRequest(alice, alice.ID)
	kindOf(t, err, KindValidation)

	_, err = e.app.SendFriendRequest(alice, "missing-user")
	kindOf(t, err, KindNotFound)

	if _, err := e.app.SendFriendRequest(alice, bob.ID); err != nil {
		t.Fatalf("SendFriendRequest: %v", err)
	}
	// Duplicate, either direction.
	_, err = e.app.SendFriendRequest(alice, bob.ID)
	kindOf(t, err, KindConflict)
	_, err = e.app.SendFriendRequest(bob, alice.ID)
	kindOf(t, err, KindConflict)
}

func TestRejectAndCancelFriendRequest(t *testing.T) {
	e := newTestEnv(t)
	alice := e.signUp(t, "alice")
	bob := e.signUp(t, "bob")
	carol := e.signUp(t, "carol")

	request, err := e.app.SendFriendRequest(alice, bob.ID)
	if err != nil {
		t.Fatalf("SendFriendRequest: %v", err)
	}
	// Only the addressee may accept or reject.
	err = e.app.AcceptFriendRequest(carol, request.ID)
	kindOf(t, err, KindForbidden)
	if err := e.app.RejectFriendRequest(bob, request.ID); err != nil {
		t.Fatalf("RejectFriendRequest: %v", err)
	}
	err = e.app.RejectFriendRequest(bob, request.ID)
	kindOf(t, err, KindInvalidState)

	// Rejection allows a fresh request, which the sender can cancel.
	request, err = e.app.SendFriendRequest(alice, bob.ID)
	if err != nil {
		t.Fatalf("SendFriendRequest after reject: %v", err)
	}
	err = e.app.CancelFriendRequest(bob, request.ID)
	kindOf(t, err, KindForbidden)
	if err := e.app.CancelFriendRequest(alice, request.ID); err != nil {
		t.Fatalf("CancelFriendRequest: %v", err)
	}
	err = e.app.CancelFriendRequest(alice, request.ID)
	kindOf(t, err, KindNotFound)
}

func TestRemoveFriend(t *testing.T) {
	e := newTestEnv(t)
	alice := e.signUp(t, "alice")
	bob := e.signUp(t, "bob")

	request, err := e.app.SendFriendRequest(alice, bob.ID)
	if err != nil {
		t.Fatalf("SendFriendRequest: %v", err)
	}
	if err := e.app.AcceptFriendRequest(bob, request.ID); err != nil {
		t.Fatalf("AcceptFriendRequest: %v", err)
	}
	if err := e.app.RemoveFriend(alice, bob.ID); err != nil {
		t.Fatalf("RemoveFriend: %v", err)
	}
	friends, err := e.app.ListFriends(bob)
	if err != nil {
		t.Fatalf("ListFriends: %v", err)
	}
	if len(friends) != 0 {
		t.Fatalf("friends = %+v", friends)
	}
	// Removing a non-friend succeeds.
	if err := e.app.RemoveFriend(alice, bob.ID); err != nil {
		t.Fatalf("second RemoveFriend: %v", err)
	}
}

func TestHomeFeedFiltersToFriends(t *testing.T) {
	e := newTestEnv(t)
	alice := e.signUp(t, "alice")
	bob := e.signUp(t, "bob")
	carol := e.signUp(t, "carol")
	ctx := context.Background()

	request, err := e.app.SendFriendRequest(alice, bob.ID)
	if err != nil {
		t.Fatalf("SendFriendRequest: %v", err)
	}
	if err := e.app.AcceptFriendRequest(bob, request.ID); err != nil {
		t.Fatalf("AcceptFriendRequest: %v", err)
	}

	createProject(t, e, alice, "alices-app")
	createProject(t, e, bob, "bobs-app")
	createProject(t, e, carol, "carols-app")

	feed, err := e.app.HomeFeed(ctx, alice, 50)
	if err != nil {
		t.Fatalf("HomeFeed: %v", err)
	}
	if len(feed) != 2 {
		t.Fatalf("feed = %+v", feed)
	}
	// Newest first: bob's project was created after alice's.
	if feed[0].Actor.Username != "bob" || feed[1].Actor.Username != "alice" {
		t.Fatalf("feed order = %q, %q", feed[0].Actor.Username, feed[1].Actor.Username)
	}
	for _, entry := range feed {
		if entry.Actor.Username == "carol" {
			t.Fatal("non-friend activity leaked into feed")
		}
	}
}
